// Package redis implements the allowance store on Redis. Each record is a
// CBOR-encoded string value; a sorted set orders records by creation time
// and a second one indexes them by expiry height.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/record"
	allowancestore "github.com/xraph/allowance/store"
	"github.com/xraph/allowance/types"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "allowance:"

// compile-time interface check
var _ allowancestore.Store = (*Store)(nil)

// Store implements store.Store on a Redis client.
type Store struct {
	rdb   *goredis.Client
	keyNS string
}

// New creates a new Redis store. An empty prefix selects DefaultPrefix.
func New(rdb *goredis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultPrefix
	}
	return &Store{rdb: rdb, keyNS: keyPrefix}
}

// Client returns the underlying redis client.
func (s *Store) Client() *goredis.Client { return s.rdb }

func (s *Store) recKey(m string) string { return s.keyNS + "rec:" + m }
func (s *Store) allKey() string         { return s.keyNS + "idx:created" }
func (s *Store) expKey() string         { return s.keyNS + "idx:expiry" }

// Migrate is a no-op; redis needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) GetAllowance(ctx context.Context, key record.Key) (*record.Allowance, error) {
	val, err := s.rdb.Get(ctx, s.recKey(member(key))).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, allowance.ErrNoSuchAllowance
	}
	if err != nil {
		return nil, fmt.Errorf("allowance/redis: get allowance: %w", err)
	}
	return decodeAllowance(val)
}

// PutAllowance writes the record and its index entries in one transaction.
func (s *Store) PutAllowance(ctx context.Context, a *record.Allowance) error {
	b, err := encodeAllowance(a)
	if err != nil {
		return fmt.Errorf("allowance/redis: encode allowance: %w", err)
	}
	m := member(a.Key())

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.recKey(m), b, 0)
	pipe.ZAddNX(ctx, s.allKey(), goredis.Z{Score: float64(a.CreatedAt.UnixNano()), Member: m})
	if a.ExpiresAt != nil {
		// Exact as a score because the ledger caps expiries at allowance.MaxExpiry.
		pipe.ZAdd(ctx, s.expKey(), goredis.Z{Score: float64(*a.ExpiresAt), Member: m})
	} else {
		pipe.ZRem(ctx, s.expKey(), m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("allowance/redis: put allowance: %w", err)
	}
	return nil
}

// ListAllowances walks the creation index in order and filters in process.
func (s *Store) ListAllowances(ctx context.Context, opts record.ListOpts) ([]*record.Allowance, error) {
	members, err := s.rdb.ZRange(ctx, s.allKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("allowance/redis: list allowances: %w", err)
	}
	if len(members) == 0 {
		return []*record.Allowance{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.recKey(m)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("allowance/redis: list allowances: %w", err)
	}

	result := make([]*record.Allowance, 0)
	skipped := 0
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		a, err := decodeAllowance([]byte(raw))
		if err != nil {
			return nil, err
		}
		if !opts.Matches(a) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		result = append(result, a)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

// PurgeExpired removes every record whose expiry is at or below before.
func (s *Store) PurgeExpired(ctx context.Context, before types.Height) (int64, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.expKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatUint(uint64(before), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("allowance/redis: purge expired: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, len(members))
	idx := make([]any, len(members))
	for i, m := range members {
		keys[i] = s.recKey(m)
		idx[i] = m
	}

	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.allKey(), idx...)
	pipe.ZRem(ctx, s.expKey(), idx...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("allowance/redis: purge expired: %w", err)
	}
	return del.Val(), nil
}
