package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/record"
	allowancestore "github.com/xraph/allowance/store"
	"github.com/xraph/allowance/types"
)

// Collection name constants.
const (
	colAllowances = "allowance_records"
)

// compile-time interface check
var _ allowancestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all allowance collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("allowance/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m allowanceModel
	err := s.mdb.NewFind(&m).
		Filter(keyFilter(key)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, allowance.ErrNoSuchAllowance
		}
		return nil, fmt.Errorf("allowance/mongo: get allowance: %w", err)
	}
	return fromAllowanceModel(&m)
}

// PutAllowance upserts on the (owner, spender, action) key. The _id and
// created_at of an existing document are preserved.
func (s *Store) PutAllowance(ctx context.Context, a *record.Allowance) error {
	m := toAllowanceModel(a)

	_, err := s.mdb.NewUpdate(m).
		Filter(keyFilter(a.Key())).
		SetUpdate(bson.M{
			"$set": bson.M{
				"remaining":  m.Remaining,
				"expires_at": m.ExpiresAt,
				"updated_at": m.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"owner":      m.Owner,
				"spender":    m.Spender,
				"action":     m.Action,
				"created_at": m.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("allowance/mongo: put allowance: %w", err)
	}
	return nil
}

func (s *Store) ListAllowances(ctx context.Context, opts record.ListOpts) ([]*record.Allowance, error) {
	var models []allowanceModel
	filter := bson.M{}
	if opts.Owner != "" {
		filter["owner"] = string(opts.Owner)
	}
	if opts.Spender != "" {
		filter["spender"] = string(opts.Spender)
	}
	if opts.Action != "" {
		filter["action"] = string(opts.Action)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{
			{Key: "created_at", Value: 1},
			{Key: "owner", Value: 1},
			{Key: "spender", Value: 1},
			{Key: "action", Value: 1},
		})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("allowance/mongo: list allowances: %w", err)
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
	res, err := s.mdb.NewDelete((*allowanceModel)(nil)).
		Filter(bson.M{"expires_at": bson.M{"$ne": nil, "$lte": int64(before)}}). //nolint:gosec // heights fit in int64
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("allowance/mongo: purge expired: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Helpers ====================

func keyFilter(key record.Key) bson.M {
	return bson.M{
		"owner":   string(key.Owner),
		"spender": string(key.Spender),
		"action":  string(key.Action),
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all allowance collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAllowances: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "spender", Value: 1}, {Key: "action", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "spender", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
	}
}
