// Package allowance provides a delegated-authorization ledger for Go
// applications.
//
// An owner grants a spender the right to perform a bounded number of units
// of a named action ("transfer", "mint", "publish") on the owner's behalf.
// The spender consumes that allowance incrementally; the owner can replace
// or revoke it at any time. This is the approve/transferFrom pattern of
// fungible tokens, generalized to arbitrary actions with an optional expiry
// height.
//
// Allowance is designed as a library, not a service. The embedding process
// authenticates callers and supplies the current execution height; the
// ledger enforces the authorization and arithmetic rules:
//
//   - Only the owner grants or modifies; only the named spender consumes
//   - A grant replaces the previous allowance, it never accumulates
//   - Consumption is all-or-nothing and never drives the balance negative
//   - Once the current height reaches the expiry, consumption is refused
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/allowance"
//	    "github.com/xraph/allowance/store/memory"
//	)
//
//	heights := allowance.NewManualHeight(100)
//	l := allowance.New(memory.New(), heights)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	// Alice lets Bob transfer up to 1000 units until height 5000.
//	err := l.Grant(ctx, "alice", "bob", "transfer", 1000, allowance.HeightPtr(5000))
//
//	// Bob spends 250 of them.
//	err = l.Consume(ctx, "bob", "alice", "transfer", 250)
//
//	// Alice resets the allowance to 500, keeping no expiry.
//	err = l.Modify(ctx, "alice", allowance.NewKey("alice", "bob", "transfer"), 500, nil)
//
// # Errors
//
// Every precondition failure maps to a sentinel error and a stable numeric
// code (see CodeOf):
//
//	100 Unauthorized           101 NoSuchAllowance
//	102 AllowanceExpired       103 InsufficientAllowance
//	104 InvalidExpiry          105 InvalidAction
//	106 InvalidAmount          107 InvalidPrincipal
//
// An expiry at or below the current height is rejected with InvalidExpiry
// on both grant and modify.
//
// # Storage
//
// Stores live under store/: memory, sqlite and postgres (Grove ORM), mongo,
// and redis. All mutations are serialized by the Ledger; a store only needs
// to provide get/put/list semantics.
package allowance
