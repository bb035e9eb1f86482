package redis

import (
	"testing"

	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		exp  *types.Height
	}{
		{"no expiry", nil},
		{"with expiry", types.HeightPtr(4200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &record.Allowance{
				Entity:    types.NewEntity(),
				ID:        id.NewAllowanceID(),
				Owner:     "A",
				Spender:   "B",
				Action:    "transfer",
				Remaining: 750,
				ExpiresAt: tt.exp,
			}

			b, err := encodeAllowance(in)
			if err != nil {
				t.Fatal(err)
			}
			out, err := decodeAllowance(b)
			if err != nil {
				t.Fatal(err)
			}

			if out.ID.String() != in.ID.String() || out.Key() != in.Key() || out.Remaining != in.Remaining {
				t.Errorf("round trip mismatch: %+v != %+v", out, in)
			}
			if (out.ExpiresAt == nil) != (in.ExpiresAt == nil) {
				t.Fatalf("expiry presence changed")
			}
			if in.ExpiresAt != nil && *out.ExpiresAt != *in.ExpiresAt {
				t.Errorf("expected expiry %d, got %d", *in.ExpiresAt, *out.ExpiresAt)
			}
			if !out.CreatedAt.Equal(in.CreatedAt) {
				t.Errorf("created_at changed: %v != %v", out.CreatedAt, in.CreatedAt)
			}
		})
	}
}

func TestEncodingDeterministic(t *testing.T) {
	a := &record.Allowance{
		Entity:    types.NewEntity(),
		ID:        id.NewAllowanceID(),
		Owner:     "A",
		Spender:   "B",
		Action:    "transfer",
		Remaining: 1,
	}
	first, _ := encodeAllowance(a)
	second, _ := encodeAllowance(a)
	if string(first) != string(second) {
		t.Error("expected identical bytes for identical records")
	}
}

func TestMemberInjective(t *testing.T) {
	a := member(record.NewKey("a|b", "c", "d"))
	b := member(record.NewKey("a", "b|c", "d"))
	if a == b {
		t.Errorf("distinct keys share member %q", a)
	}
}
