package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/record"
	allowancestore "github.com/xraph/allowance/store"
	"github.com/xraph/allowance/types"
)

// compile-time interface check
var _ allowancestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("allowance/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("allowance/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetAllowance(ctx context.Context, key record.Key) (*record.Allowance, error) {
	m := new(allowanceModel)
	err := s.sdb.NewSelect(m).
		Where("owner = ?", string(key.Owner)).
		Where("spender = ?", string(key.Spender)).
		Where("action = ?", string(key.Action)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, allowance.ErrNoSuchAllowance
		}
		return nil, err
	}
	return fromAllowanceModel(m)
}

// PutAllowance upserts on the (owner, spender, action) key. The id and
// created_at of an existing row are preserved.
func (s *Store) PutAllowance(ctx context.Context, a *record.Allowance) error {
	m := toAllowanceModel(a)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(owner, spender, action) DO UPDATE").
		Set("remaining = EXCLUDED.remaining").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListAllowances(ctx context.Context, opts record.ListOpts) ([]*record.Allowance, error) {
	var models []allowanceModel
	q := s.sdb.NewSelect(&models)

	if opts.Owner != "" {
		q = q.Where("owner = ?", string(opts.Owner))
	}
	if opts.Spender != "" {
		q = q.Where("spender = ?", string(opts.Spender))
	}
	if opts.Action != "" {
		q = q.Where("action = ?", string(opts.Action))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		// SQLite only accepts OFFSET after a LIMIT.
		if opts.Limit <= 0 {
			q = q.Limit(math.MaxInt)
		}
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, owner ASC, spender ASC, action ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*record.Allowance, len(models))
	for i := range models {
		a, err := fromAllowanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) PurgeExpired(ctx context.Context, before types.Height) (int64, error) {
	res, err := s.sdb.NewDelete((*allowanceModel)(nil)).
		Where("expires_at IS NOT NULL AND expires_at <= ?", int64(before)). //nolint:gosec // heights fit in int64
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
