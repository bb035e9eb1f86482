package types

import "strconv"

// Principal is an authenticated identity in the calling environment.
// The ledger treats it as opaque and only compares it for equality.
type Principal string

// String returns the principal as a plain string.
func (p Principal) String() string { return string(p) }

// IsZero reports whether the principal is empty.
func (p Principal) IsZero() bool { return p == "" }

// Action names a category of operation an allowance authorizes,
// e.g. "transfer". Comparison is exact; no case folding or trimming.
type Action string

// String returns the action as a plain string.
func (a Action) String() string { return string(a) }

// Height is a monotonically non-decreasing counter supplied by the
// execution environment (typically a block height).
type Height uint64

// String returns the decimal form of the height.
func (h Height) String() string { return strconv.FormatUint(uint64(h), 10) }

// HeightPtr returns a pointer to h. Handy for optional expiries.
func HeightPtr(h Height) *Height { return &h }
