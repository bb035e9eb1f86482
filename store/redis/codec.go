package redis

import (
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

// encMode uses Core Deterministic Encoding so the same record always
// produces identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("allowance/redis: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("allowance/redis: CBOR decoder initialization failed: " + err.Error())
	}
}

// allowanceRecord is the stored form of a record. Times are unix nanos.
type allowanceRecord struct {
	ID        string  `cbor:"1,keyasint"`
	Owner     string  `cbor:"2,keyasint"`
	Spender   string  `cbor:"3,keyasint"`
	Action    string  `cbor:"4,keyasint"`
	Remaining uint64  `cbor:"5,keyasint"`
	ExpiresAt *uint64 `cbor:"6,keyasint,omitempty"`
	CreatedAt int64   `cbor:"7,keyasint"`
	UpdatedAt int64   `cbor:"8,keyasint"`
}

func encodeAllowance(a *record.Allowance) ([]byte, error) {
	r := allowanceRecord{
		ID:        a.ID.String(),
		Owner:     string(a.Owner),
		Spender:   string(a.Spender),
		Action:    string(a.Action),
		Remaining: a.Remaining,
		CreatedAt: a.CreatedAt.UnixNano(),
		UpdatedAt: a.UpdatedAt.UnixNano(),
	}
	if a.ExpiresAt != nil {
		exp := uint64(*a.ExpiresAt)
		r.ExpiresAt = &exp
	}
	return encMode.Marshal(r)
}

func decodeAllowance(data []byte) (*record.Allowance, error) {
	var r allowanceRecord
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	allowanceID, err := id.ParseAllowanceID(r.ID)
	if err != nil {
		return nil, err
	}

	a := &record.Allowance{
		Entity: types.Entity{
			CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
			UpdatedAt: time.Unix(0, r.UpdatedAt).UTC(),
		},
		ID:        allowanceID,
		Owner:     types.Principal(r.Owner),
		Spender:   types.Principal(r.Spender),
		Action:    types.Action(r.Action),
		Remaining: r.Remaining,
	}
	if r.ExpiresAt != nil {
		a.ExpiresAt = types.HeightPtr(types.Height(*r.ExpiresAt))
	}
	return a, nil
}

// member is the injective string form of a key used as a redis key suffix
// and sorted-set member. Quoting keeps separators inside principals from
// colliding.
func member(key record.Key) string {
	return strconv.Quote(string(key.Owner)) + "|" +
		strconv.Quote(string(key.Spender)) + "|" +
		strconv.Quote(string(key.Action))
}
