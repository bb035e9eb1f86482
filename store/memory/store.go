package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/store"
	"github.com/xraph/allowance/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store is an in-process store. Records are copied on the way in and out,
// so callers never alias stored state.
type Store struct {
	mu sync.RWMutex

	allowances map[record.Key]*record.Allowance
	closed     bool
}

func New() *Store {
	return &Store{
		allowances: make(map[record.Key]*record.Allowance),
	}
}

func (s *Store) GetAllowance(_ context.Context, key record.Key) (*record.Allowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, allowance.ErrStoreClosed
	}
	if a, ok := s.allowances[key]; ok {
		return a.Clone(), nil
	}
	return nil, allowance.ErrNoSuchAllowance
}

func (s *Store) PutAllowance(_ context.Context, a *record.Allowance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return allowance.ErrStoreClosed
	}
	s.allowances[a.Key()] = a.Clone()
	return nil
}

func (s *Store) ListAllowances(_ context.Context, opts record.ListOpts) ([]*record.Allowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, allowance.ErrStoreClosed
	}

	result := make([]*record.Allowance, 0)
	for _, a := range s.allowances {
		if opts.Matches(a) {
			result = append(result, a.Clone())
		}
	}

	slices.SortFunc(result, func(a, b *record.Allowance) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Key().String(), b.Key().String())
	})

	// Apply limit/offset
	// Negative offsets and limits mean no offset and no limit, as in
	// the SQL and document stores.
	start := max(opts.Offset, 0)
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit <= 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) PurgeExpired(_ context.Context, before types.Height) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, allowance.ErrStoreClosed
	}

	var n int64
	for key, a := range s.allowances {
		if a.ExpiresAt != nil && *a.ExpiresAt <= before {
			delete(s.allowances, key)
			n++
		}
	}
	return n, nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return allowance.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
