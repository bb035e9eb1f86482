// Package audithook bridges allowance ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnAllowanceGranted  = (*Extension)(nil)
	_ plugin.OnAllowanceConsumed = (*Extension)(nil)
	_ plugin.OnAllowanceModified = (*Extension)(nil)
	_ plugin.OnAllowanceRevoked  = (*Extension)(nil)
	_ plugin.OnAllowanceDenied   = (*Extension)(nil)
	_ plugin.OnAllowancesPurged  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	ID         id.EventID     `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Allowance hooks
// ──────────────────────────────────────────────────

// OnAllowanceGranted implements plugin.OnAllowanceGranted.
func (e *Extension) OnAllowanceGranted(ctx context.Context, a *record.Allowance) error {
	return e.record(ctx, ActionAllowanceGranted, SeverityInfo, OutcomeSuccess,
		ResourceAllowance, a.ID.String(), string(a.Owner), CategoryAccess, nil,
		"spender", string(a.Spender),
		"action", string(a.Action),
		"amount", a.Remaining,
		"expires_at", heightValue(a.ExpiresAt),
	)
}

// OnAllowanceConsumed implements plugin.OnAllowanceConsumed.
func (e *Extension) OnAllowanceConsumed(ctx context.Context, a *record.Allowance, amount uint64) error {
	return e.record(ctx, ActionAllowanceConsumed, SeverityInfo, OutcomeSuccess,
		ResourceAllowance, a.ID.String(), string(a.Spender), CategoryUsage, nil,
		"owner", string(a.Owner),
		"action", string(a.Action),
		"amount", amount,
		"remaining", a.Remaining,
	)
}

// OnAllowanceModified implements plugin.OnAllowanceModified.
func (e *Extension) OnAllowanceModified(ctx context.Context, before, after *record.Allowance) error {
	return e.record(ctx, ActionAllowanceModified, SeverityInfo, OutcomeSuccess,
		ResourceAllowance, after.ID.String(), string(after.Owner), CategoryAccess, nil,
		"spender", string(after.Spender),
		"action", string(after.Action),
		"previous", before.Remaining,
		"amount", after.Remaining,
		"previous_expires_at", heightValue(before.ExpiresAt),
		"expires_at", heightValue(after.ExpiresAt),
	)
}

// OnAllowanceRevoked implements plugin.OnAllowanceRevoked.
func (e *Extension) OnAllowanceRevoked(ctx context.Context, key record.Key) error {
	return e.record(ctx, ActionAllowanceRevoked, SeverityInfo, OutcomeSuccess,
		ResourceAllowance, key.String(), string(key.Owner), CategoryAccess, nil,
		"spender", string(key.Spender),
		"action", string(key.Action),
	)
}

// OnAllowanceDenied implements plugin.OnAllowanceDenied.
func (e *Extension) OnAllowanceDenied(ctx context.Context, op plugin.Operation, key record.Key, err error) error {
	severity := SeverityWarning
	if op != plugin.OpConsume {
		severity = SeverityInfo
	}

	actor := key.Owner
	if op == plugin.OpConsume {
		actor = key.Spender
	}

	code, _ := allowance.CodeOf(err)
	return e.record(ctx, ActionAllowanceDenied, severity, OutcomeFailure,
		ResourceAllowance, key.String(), string(actor), CategoryAccess, err,
		"operation", string(op),
		"code", uint32(code),
	)
}

// OnAllowancesPurged implements plugin.OnAllowancesPurged.
func (e *Extension) OnAllowancesPurged(ctx context.Context, before types.Height, count int64) error {
	return e.record(ctx, ActionAllowancesPurged, SeverityInfo, OutcomeSuccess,
		ResourceLedger, "", "", CategoryMaintenance, nil,
		"before", uint64(before),
		"count", count,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, actor, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewEventID(),
		Timestamp:  time.Now().UTC(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      actor,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

// heightValue flattens an optional height for metadata; nil means none.
func heightValue(h *types.Height) any {
	if h == nil {
		return nil
	}
	return uint64(*h)
}
