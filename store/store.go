package store

import (
	"context"

	"github.com/xraph/allowance/record"
)

// Store is the unified storage interface for the allowance ledger: the
// record port plus lifecycle methods every backend shares.
type Store interface {
	record.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
