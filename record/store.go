package record

import (
	"context"

	"github.com/xraph/allowance/types"
)

// Store is the persistence port for allowance records.
//
// GetAllowance returns allowance.ErrNoSuchAllowance when nothing is stored
// under the key. PutAllowance is an upsert keyed by (owner, spender, action).
type Store interface {
	GetAllowance(ctx context.Context, key Key) (*Allowance, error)
	PutAllowance(ctx context.Context, a *Allowance) error
	ListAllowances(ctx context.Context, opts ListOpts) ([]*Allowance, error)
	PurgeExpired(ctx context.Context, before types.Height) (int64, error)
}
