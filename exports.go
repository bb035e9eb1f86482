package allowance

import (
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

// Re-export common types for convenience so users don't have to import the
// types and record packages for everyday calls.

// Principal is re-exported from the types package.
type Principal = types.Principal

// Action is re-exported from the types package.
type Action = types.Action

// Height is re-exported from the types package.
type Height = types.Height

// Key is re-exported from the record package.
type Key = record.Key

// Record is re-exported from the record package.
type Record = record.Allowance

// Re-export constructors
var (
	NewKey    = record.NewKey
	HeightPtr = types.HeightPtr
)
