package allowance

import (
	"context"
	"sync/atomic"

	"github.com/xraph/allowance/types"
)

// HeightSource reports the current execution height. The embedding
// environment owns it; heights must never decrease.
type HeightSource interface {
	CurrentHeight(ctx context.Context) (types.Height, error)
}

// HeightFunc is an adapter to use a plain function as a HeightSource.
type HeightFunc func(ctx context.Context) (types.Height, error)

// CurrentHeight implements HeightSource.
func (f HeightFunc) CurrentHeight(ctx context.Context) (types.Height, error) {
	return f(ctx)
}

// ManualHeight is a HeightSource advanced explicitly by its owner, e.g. a
// block producer after each block or a test.
type ManualHeight struct {
	h atomic.Uint64
}

// NewManualHeight creates a ManualHeight starting at h.
func NewManualHeight(h types.Height) *ManualHeight {
	m := &ManualHeight{}
	m.h.Store(uint64(h))
	return m
}

// CurrentHeight implements HeightSource.
func (m *ManualHeight) CurrentHeight(context.Context) (types.Height, error) {
	return types.Height(m.h.Load()), nil
}

// Advance moves the height forward by n and returns the new height.
func (m *ManualHeight) Advance(n uint64) types.Height {
	return types.Height(m.h.Add(n))
}

// Set moves the height to h. Values below the current height are ignored.
func (m *ManualHeight) Set(h types.Height) {
	for {
		cur := m.h.Load()
		if uint64(h) <= cur || m.h.CompareAndSwap(cur, uint64(h)) {
			return
		}
	}
}
