package allowance

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// Authorization and lifecycle errors
	ErrUnauthorized          = errors.New("allowance: unauthorized")
	ErrNoSuchAllowance       = errors.New("allowance: no such allowance")
	ErrAllowanceExpired      = errors.New("allowance: allowance expired")
	ErrInsufficientAllowance = errors.New("allowance: insufficient allowance")
	ErrInvalidExpiry         = errors.New("allowance: expiry must be above the current height")

	// Input errors
	ErrInvalidAction    = errors.New("allowance: invalid action name")
	ErrInvalidAmount    = errors.New("allowance: invalid amount")
	ErrInvalidPrincipal = errors.New("allowance: invalid principal")

	// Store errors
	ErrStoreClosed = errors.New("allowance: store is closed")
)

// Code is the stable, externally observable error code returned by the
// call surface as err(code).
type Code uint32

// Error codes. These values are part of the public contract and must not
// be renumbered.
const (
	CodeUnauthorized          Code = 100
	CodeNoSuchAllowance       Code = 101
	CodeAllowanceExpired      Code = 102
	CodeInsufficientAllowance Code = 103
	CodeInvalidExpiry         Code = 104
	CodeInvalidAction         Code = 105
	CodeInvalidAmount         Code = 106
	CodeInvalidPrincipal      Code = 107
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrNoSuchAllowance, CodeNoSuchAllowance},
	{ErrAllowanceExpired, CodeAllowanceExpired},
	{ErrInsufficientAllowance, CodeInsufficientAllowance},
	{ErrInvalidExpiry, CodeInvalidExpiry},
	{ErrInvalidAction, CodeInvalidAction},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidPrincipal, CodeInvalidPrincipal},
}

// CodeOf returns the error code for a ledger error. The second result is
// false for errors outside the taxonomy, such as store failures.
func CodeOf(err error) (Code, bool) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, true
		}
	}
	return 0, false
}

// ValidationError represents a validation failure with details. It unwraps
// to the sentinel that classifies it.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("allowance: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns the classifying sentinel.
func (e ValidationError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error reports a missing allowance.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSuchAllowance)
}

// IsDenied returns true if the ledger rejected the operation on its
// preconditions, as opposed to failing on infrastructure.
func IsDenied(err error) bool {
	_, ok := CodeOf(err)
	return ok
}
