// Package plugin provides an extensible plugin system for the allowance ledger.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// Operation names a ledger operation as it appears on the call surface.
type Operation string

// Operations exposed by the ledger.
const (
	OpGrant   Operation = "grant-allowance"
	OpConsume Operation = "consume-allowance"
	OpModify  Operation = "modify-allowance"
	OpRevoke  Operation = "revoke-allowance"
)

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Allowance hooks
// ──────────────────────────────────────────────────

// OnAllowanceGranted is called after a grant with a non-zero amount.
type OnAllowanceGranted interface {
	Plugin
	OnAllowanceGranted(ctx context.Context, a *record.Allowance) error
}

// OnAllowanceConsumed is called after units were consumed. a holds the
// record as it is after the decrement.
type OnAllowanceConsumed interface {
	Plugin
	OnAllowanceConsumed(ctx context.Context, a *record.Allowance, amount uint64) error
}

// OnAllowanceModified is called after an owner replaced an allowance.
type OnAllowanceModified interface {
	Plugin
	OnAllowanceModified(ctx context.Context, before, after *record.Allowance) error
}

// OnAllowanceRevoked is called after an allowance was set to zero.
type OnAllowanceRevoked interface {
	Plugin
	OnAllowanceRevoked(ctx context.Context, key record.Key) error
}

// OnAllowanceDenied is called when an operation fails one of its
// preconditions.
type OnAllowanceDenied interface {
	Plugin
	OnAllowanceDenied(ctx context.Context, op Operation, key record.Key, err error) error
}

// OnAllowancesPurged is called after expired records were removed.
type OnAllowancesPurged interface {
	Plugin
	OnAllowancesPurged(ctx context.Context, before types.Height, count int64) error
}
