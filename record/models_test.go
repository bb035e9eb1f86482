package record_test

import (
	"testing"

	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

func TestExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt *types.Height
		height    types.Height
		want      bool
	}{
		{"no expiry", nil, 1_000_000, false},
		{"before expiry", types.HeightPtr(100), 99, false},
		{"at expiry", types.HeightPtr(100), 100, true},
		{"after expiry", types.HeightPtr(100), 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &record.Allowance{Remaining: 10, ExpiresAt: tt.expiresAt}
			if got := a.Expired(tt.height); got != tt.want {
				t.Errorf("Expired(%d) = %v, want %v", tt.height, got, tt.want)
			}
		})
	}
}

func TestUsable(t *testing.T) {
	a := &record.Allowance{Remaining: 750, ExpiresAt: types.HeightPtr(10)}
	if got := a.Usable(9); got != 750 {
		t.Errorf("expected 750 usable before expiry, got %d", got)
	}
	if got := a.Usable(10); got != 0 {
		t.Errorf("expected 0 usable at expiry, got %d", got)
	}
}

func TestCloneDoesNotShareExpiry(t *testing.T) {
	a := &record.Allowance{Owner: "A", Spender: "B", Action: "transfer", ExpiresAt: types.HeightPtr(5)}
	c := a.Clone()
	*c.ExpiresAt = 50
	if *a.ExpiresAt != 5 {
		t.Errorf("clone mutated original expiry: %d", *a.ExpiresAt)
	}
	if c.Key() != a.Key() {
		t.Errorf("clone key mismatch: %v != %v", c.Key(), a.Key())
	}
}

func TestListOptsMatches(t *testing.T) {
	a := &record.Allowance{Owner: "A", Spender: "B", Action: "transfer"}
	tests := []struct {
		name string
		opts record.ListOpts
		want bool
	}{
		{"empty filter", record.ListOpts{}, true},
		{"owner match", record.ListOpts{Owner: "A"}, true},
		{"owner mismatch", record.ListOpts{Owner: "B"}, false},
		{"spender and action", record.ListOpts{Spender: "B", Action: "transfer"}, true},
		{"action mismatch", record.ListOpts{Action: "mint"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Matches(a); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}
