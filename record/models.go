// Package record defines the allowance record, the key that identifies it,
// and the storage port every backend implements.
package record

import (
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/types"
)

// Key uniquely identifies one allowance. It is comparable and can be used
// directly as a map key.
type Key struct {
	Owner   types.Principal `json:"owner"`
	Spender types.Principal `json:"spender"`
	Action  types.Action    `json:"action"`
}

// NewKey builds a Key from its parts.
func NewKey(owner, spender types.Principal, action types.Action) Key {
	return Key{Owner: owner, Spender: spender, Action: action}
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	return string(k.Owner) + "/" + string(k.Spender) + "/" + string(k.Action)
}

// Allowance is the authorization for Spender to consume up to Remaining
// units of Action on behalf of Owner.
type Allowance struct {
	types.Entity
	ID        id.AllowanceID  `json:"id"`
	Owner     types.Principal `json:"owner"`
	Spender   types.Principal `json:"spender"`
	Action    types.Action    `json:"action"`
	Remaining uint64          `json:"remaining"`

	// ExpiresAt is the first height at which the allowance can no longer
	// be consumed. Nil means the allowance never expires.
	ExpiresAt *types.Height `json:"expires_at,omitempty"`
}

// Key returns the composite key of the allowance.
func (a *Allowance) Key() Key {
	return Key{Owner: a.Owner, Spender: a.Spender, Action: a.Action}
}

// Expired reports whether the allowance is past its expiry at height h.
func (a *Allowance) Expired(h types.Height) bool {
	return a.ExpiresAt != nil && h >= *a.ExpiresAt
}

// Revoked reports whether nothing remains to be consumed.
func (a *Allowance) Revoked() bool {
	return a.Remaining == 0
}

// Usable returns the units that can still be consumed at height h.
func (a *Allowance) Usable(h types.Height) uint64 {
	if a.Expired(h) {
		return 0
	}
	return a.Remaining
}

// Clone returns a deep copy so callers never share the ExpiresAt pointer.
func (a *Allowance) Clone() *Allowance {
	c := *a
	if a.ExpiresAt != nil {
		exp := *a.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

// ListOpts filters and paginates allowance listings. Empty fields match
// everything.
type ListOpts struct {
	Owner   types.Principal
	Spender types.Principal
	Action  types.Action
	Limit   int
	Offset  int
}

// Matches reports whether a satisfies the filter part of the options.
func (o ListOpts) Matches(a *Allowance) bool {
	if o.Owner != "" && a.Owner != o.Owner {
		return false
	}
	if o.Spender != "" && a.Spender != o.Spender {
		return false
	}
	if o.Action != "" && a.Action != o.Action {
		return false
	}
	return true
}
