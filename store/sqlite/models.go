package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

type allowanceModel struct {
	grove.BaseModel `grove:"table:allowance_records"`

	ID        string    `grove:"id,pk"`
	Owner     string    `grove:"owner"`
	Spender   string    `grove:"spender"`
	Action    string    `grove:"action"`
	Remaining int64     `grove:"remaining"`
	ExpiresAt *int64    `grove:"expires_at"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toAllowanceModel(a *record.Allowance) *allowanceModel {
	m := &allowanceModel{
		ID:        a.ID.String(),
		Owner:     string(a.Owner),
		Spender:   string(a.Spender),
		Action:    string(a.Action),
		Remaining: int64(a.Remaining), //nolint:gosec // amounts are capped at MaxInt64
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.ExpiresAt != nil {
		exp := int64(*a.ExpiresAt) //nolint:gosec // heights fit in int64
		m.ExpiresAt = &exp
	}
	return m
}

func fromAllowanceModel(m *allowanceModel) (*record.Allowance, error) {
	allowanceID, err := id.ParseAllowanceID(m.ID)
	if err != nil {
		return nil, err
	}

	a := &record.Allowance{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        allowanceID,
		Owner:     types.Principal(m.Owner),
		Spender:   types.Principal(m.Spender),
		Action:    types.Action(m.Action),
		Remaining: uint64(m.Remaining), //nolint:gosec // never negative
	}
	if m.ExpiresAt != nil {
		a.ExpiresAt = types.HeightPtr(types.Height(*m.ExpiresAt)) //nolint:gosec // never negative
	}
	return a, nil
}
