package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/store/sqlite"
	"github.com/xraph/allowance/types"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	if err := drv.Open(ctx, filepath.Join(t.TempDir(), "allowance.db")); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatal(err)
	}
	s := sqlite.New(db)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func newRecord(owner, spender types.Principal, action types.Action, remaining uint64, exp *types.Height, created time.Time) *record.Allowance {
	return &record.Allowance{
		Entity:    types.Entity{CreatedAt: created, UpdatedAt: created},
		ID:        id.NewAllowanceID(),
		Owner:     owner,
		Spender:   spender,
		Action:    action,
		Remaining: remaining,
		ExpiresAt: exp,
	}
}

func TestMigrateTwice(t *testing.T) {
	s := newStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.GetAllowance(context.Background(), record.NewKey("A", "B", "transfer"))
	if !errors.Is(err, allowance.ErrNoSuchAllowance) {
		t.Fatalf("expected ErrNoSuchAllowance, got %v", err)
	}
}

func TestPutReplacesKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first := newRecord("A", "B", "transfer", 10, types.HeightPtr(50), epoch)
	if err := s.PutAllowance(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := newRecord("A", "B", "transfer", 5, nil, epoch.Add(time.Hour))
	if err := s.PutAllowance(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAllowance(ctx, record.NewKey("A", "B", "transfer"))
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != first.ID.String() {
		t.Errorf("expected id %s to survive, got %s", first.ID, got.ID)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("expected created_at %v to survive, got %v", first.CreatedAt, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("expected updated_at %v, got %v", second.UpdatedAt, got.UpdatedAt)
	}
	if got.Remaining != 5 {
		t.Errorf("expected remaining 5, got %d", got.Remaining)
	}
	if got.ExpiresAt != nil {
		t.Errorf("expected expiry cleared, got %d", *got.ExpiresAt)
	}

	all, err := s.ListAllowances(ctx, record.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected one row after replace, got %d", len(all))
	}
}

func TestBoundaryValues(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newRecord("A", "B", "transfer", allowance.MaxAmount, types.HeightPtr(allowance.MaxExpiry), epoch)
	if err := s.PutAllowance(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAllowance(ctx, a.Key())
	if err != nil {
		t.Fatal(err)
	}
	if got.Remaining != allowance.MaxAmount {
		t.Errorf("expected remaining %d, got %d", allowance.MaxAmount, got.Remaining)
	}
	if got.ExpiresAt == nil || *got.ExpiresAt != allowance.MaxExpiry {
		t.Errorf("expected expiry %d, got %v", allowance.MaxExpiry, got.ExpiresAt)
	}
}

func TestListOrderAndPaginate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// Inserted out of creation order.
	_ = s.PutAllowance(ctx, newRecord("A", "B", "mint", 3, nil, epoch.Add(2*time.Second)))
	_ = s.PutAllowance(ctx, newRecord("A", "B", "transfer", 1, nil, epoch))
	_ = s.PutAllowance(ctx, newRecord("D", "B", "transfer", 4, nil, epoch.Add(3*time.Second)))
	_ = s.PutAllowance(ctx, newRecord("A", "C", "transfer", 2, nil, epoch.Add(time.Second)))

	all, err := s.ListAllowances(ctx, record.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	var order []uint64
	for _, a := range all {
		order = append(order, a.Remaining)
	}
	want := []uint64{1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected creation order %v, got %v", want, order)
		}
	}

	tests := []struct {
		name  string
		opts  record.ListOpts
		first uint64
		want  int
	}{
		{"by owner", record.ListOpts{Owner: "A"}, 1, 3},
		{"by spender", record.ListOpts{Spender: "B"}, 1, 3},
		{"by owner and action", record.ListOpts{Owner: "A", Action: "transfer"}, 1, 2},
		{"limit", record.ListOpts{Limit: 2}, 1, 2},
		{"offset and limit", record.ListOpts{Offset: 1, Limit: 2}, 2, 2},
		{"offset only", record.ListOpts{Offset: 3}, 4, 1},
		{"offset past end", record.ListOpts{Offset: 10}, 0, 0},
		{"negative paging", record.ListOpts{Offset: -1, Limit: -1}, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAllowances(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d results, got %d", tt.want, len(got))
			}
			if tt.want > 0 && got[0].Remaining != tt.first {
				t.Errorf("expected first remaining %d, got %d", tt.first, got[0].Remaining)
			}
		})
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_ = s.PutAllowance(ctx, newRecord("A", "B", "transfer", 1, types.HeightPtr(10), epoch))
	_ = s.PutAllowance(ctx, newRecord("A", "C", "transfer", 1, types.HeightPtr(20), epoch))
	_ = s.PutAllowance(ctx, newRecord("A", "D", "transfer", 1, nil, epoch))

	n, err := s.PurgeExpired(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}

	if _, err := s.GetAllowance(ctx, record.NewKey("A", "B", "transfer")); !errors.Is(err, allowance.ErrNoSuchAllowance) {
		t.Errorf("expected purged record to be gone, got %v", err)
	}
	for _, spender := range []types.Principal{"C", "D"} {
		if _, err := s.GetAllowance(ctx, record.NewKey("A", spender, "transfer")); err != nil {
			t.Errorf("expected %s to survive, got %v", spender, err)
		}
	}
}
