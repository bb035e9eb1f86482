package types_test

import (
	"testing"

	"github.com/xraph/allowance/types"
)

func TestPrincipalIsZero(t *testing.T) {
	if !types.Principal("").IsZero() {
		t.Error("expected empty principal to be zero")
	}
	if types.Principal("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7").IsZero() {
		t.Error("expected non-empty principal to be non-zero")
	}
}

func TestActionExactMatch(t *testing.T) {
	if types.Action("transfer") == types.Action("Transfer") {
		t.Error("action names must not be case folded")
	}
	if types.Action("transfer") == types.Action("transfer ") {
		t.Error("action names must not be trimmed")
	}
}

func TestHeightPtr(t *testing.T) {
	p := types.HeightPtr(42)
	if p == nil || *p != 42 {
		t.Fatalf("expected pointer to 42, got %v", p)
	}
	if got := types.Height(1000).String(); got != "1000" {
		t.Errorf("expected %q, got %q", "1000", got)
	}
}
