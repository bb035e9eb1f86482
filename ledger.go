package allowance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/store"
	"github.com/xraph/allowance/types"
)

// MaxAmount is the largest amount a grant or modify accepts.
// It keeps every backend able to store the value losslessly.
const MaxAmount uint64 = math.MaxInt64

// MaxExpiry is the largest expiry height a grant or modify accepts.
// Heights up to 2^53 survive float64 sorted-set scores exactly.
const MaxExpiry types.Height = 1 << 53

// DefaultMaxActionLength is the default upper bound on action names, in bytes.
const DefaultMaxActionLength = 64

// Ledger is the allowance engine. Every mutation runs as one serialized
// step against the store; a failed precondition leaves the store untouched.
type Ledger struct {
	store   store.Store
	heights HeightSource
	plugins *plugin.Registry
	logger  *slog.Logger

	// mu serializes read-modify-write steps against the store.
	mu sync.Mutex

	maxActionLength int
}

// New creates a new Ledger over the given store. heights supplies the
// current execution height used for expiry checks.
func New(s store.Store, heights HeightSource, opts ...Option) *Ledger {
	l := &Ledger{
		store:           s,
		heights:         heights,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		maxActionLength: DefaultMaxActionLength,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithMaxActionLength bounds the length of action names in bytes.
func WithMaxActionLength(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxActionLength = n
		}
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("allowance ledger started",
		"plugins", l.plugins.Count(),
		"max_action_length", l.maxActionLength,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// ──────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────

// Grant authorizes spender to consume amount units of action on behalf of
// caller, who is the owner by construction. Any existing allowance under
// the same key is replaced, not added to. A zero amount revokes.
func (l *Ledger) Grant(ctx context.Context, caller, spender types.Principal, action types.Action, amount uint64, expiresAt *types.Height) error {
	key := record.NewKey(caller, spender, action)
	op := plugin.OpGrant
	if amount == 0 {
		op = plugin.OpRevoke
	}

	if err := l.validate(key, amount, expiresAt); err != nil {
		return l.deny(ctx, op, key, err)
	}

	l.mu.Lock()
	a, err := l.grant(ctx, key, amount, expiresAt)
	l.mu.Unlock()
	if err != nil {
		return l.deny(ctx, op, key, err)
	}

	if a.Revoked() {
		l.logger.Debug("allowance revoked", "owner", key.Owner, "spender", key.Spender, "action", key.Action)
		l.plugins.EmitAllowanceRevoked(ctx, key)
		return nil
	}

	l.logger.Debug("allowance granted",
		"owner", key.Owner,
		"spender", key.Spender,
		"action", key.Action,
		"amount", amount,
		"expires_at", expiresAt,
	)
	l.plugins.EmitAllowanceGranted(ctx, a)
	return nil
}

func (l *Ledger) grant(ctx context.Context, key record.Key, amount uint64, expiresAt *types.Height) (*record.Allowance, error) {
	h, err := l.currentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if expiresAt != nil && *expiresAt <= h {
		return nil, ErrInvalidExpiry
	}

	a := &record.Allowance{
		Owner:     key.Owner,
		Spender:   key.Spender,
		Action:    key.Action,
		Remaining: amount,
		ExpiresAt: copyHeight(expiresAt),
	}

	existing, err := l.store.GetAllowance(ctx, key)
	switch {
	case err == nil:
		a.ID = existing.ID
		a.Entity = existing.Entity
		a.Touch()
	case errors.Is(err, ErrNoSuchAllowance):
		a.ID = id.NewAllowanceID()
		a.Entity = types.NewEntity()
	default:
		return nil, err
	}

	if err := l.store.PutAllowance(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Revoke sets the allowance caller granted to spender for action to zero.
// It is equivalent to granting a zero amount with no expiry.
func (l *Ledger) Revoke(ctx context.Context, caller, spender types.Principal, action types.Action) error {
	return l.Grant(ctx, caller, spender, action, 0, nil)
}

// Consume deducts amount from the allowance owner granted to caller for
// action. Either the whole amount is deducted or nothing is.
func (l *Ledger) Consume(ctx context.Context, caller, owner types.Principal, action types.Action, amount uint64) error {
	key := record.NewKey(owner, caller, action)

	// Any amount above the stored remaining is insufficient, so consume
	// checks only the key.
	if err := l.validateKey(key); err != nil {
		return l.deny(ctx, plugin.OpConsume, key, err)
	}

	l.mu.Lock()
	a, err := l.consume(ctx, key, amount)
	l.mu.Unlock()
	if err != nil {
		return l.deny(ctx, plugin.OpConsume, key, err)
	}

	l.logger.Debug("allowance consumed",
		"owner", key.Owner,
		"spender", key.Spender,
		"action", key.Action,
		"amount", amount,
		"remaining", a.Remaining,
	)
	l.plugins.EmitAllowanceConsumed(ctx, a, amount)
	return nil
}

func (l *Ledger) consume(ctx context.Context, key record.Key, amount uint64) (*record.Allowance, error) {
	a, err := l.store.GetAllowance(ctx, key)
	if err != nil {
		return nil, err
	}

	h, err := l.currentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if a.Expired(h) {
		return nil, ErrAllowanceExpired
	}
	if amount > a.Remaining {
		return nil, ErrInsufficientAllowance
	}

	a.Remaining -= amount
	a.Touch()

	if err := l.store.PutAllowance(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Modify replaces the remaining amount and expiry of an existing
// allowance. Only key.Owner may modify it, and the allowance must exist.
func (l *Ledger) Modify(ctx context.Context, caller types.Principal, key record.Key, amount uint64, expiresAt *types.Height) error {
	if err := l.validate(key, amount, expiresAt); err != nil {
		return l.deny(ctx, plugin.OpModify, key, err)
	}

	l.mu.Lock()
	before, after, err := l.modify(ctx, caller, key, amount, expiresAt)
	l.mu.Unlock()
	if err != nil {
		return l.deny(ctx, plugin.OpModify, key, err)
	}

	l.logger.Debug("allowance modified",
		"owner", key.Owner,
		"spender", key.Spender,
		"action", key.Action,
		"previous", before.Remaining,
		"amount", amount,
		"expires_at", expiresAt,
	)
	l.plugins.EmitAllowanceModified(ctx, before, after)
	return nil
}

func (l *Ledger) modify(ctx context.Context, caller types.Principal, key record.Key, amount uint64, expiresAt *types.Height) (before, after *record.Allowance, err error) {
	a, err := l.store.GetAllowance(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if a.Owner != caller {
		return nil, nil, ErrUnauthorized
	}

	h, err := l.currentHeight(ctx)
	if err != nil {
		return nil, nil, err
	}
	if expiresAt != nil && *expiresAt <= h {
		return nil, nil, ErrInvalidExpiry
	}

	before = a.Clone()
	a.Remaining = amount
	a.ExpiresAt = copyHeight(expiresAt)
	a.Touch()

	if err := l.store.PutAllowance(ctx, a); err != nil {
		return nil, nil, err
	}
	return before, a, nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Allowance returns the stored record for a key, expired or not.
func (l *Ledger) Allowance(ctx context.Context, owner, spender types.Principal, action types.Action) (*record.Allowance, error) {
	return l.store.GetAllowance(ctx, record.NewKey(owner, spender, action))
}

// Remaining returns the units spender can consume right now. It is zero
// when no allowance exists or the allowance has expired.
func (l *Ledger) Remaining(ctx context.Context, owner, spender types.Principal, action types.Action) (uint64, error) {
	a, err := l.Allowance(ctx, owner, spender, action)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	h, err := l.currentHeight(ctx)
	if err != nil {
		return 0, err
	}
	return a.Usable(h), nil
}

// CurrentHeight returns the height the ledger evaluates expiry against.
func (l *Ledger) CurrentHeight(ctx context.Context) (types.Height, error) {
	return l.currentHeight(ctx)
}

// ListAllowances lists stored allowances matching opts.
func (l *Ledger) ListAllowances(ctx context.Context, opts record.ListOpts) ([]*record.Allowance, error) {
	return l.store.ListAllowances(ctx, opts)
}

// PurgeExpired physically removes allowances whose expiry is at or below
// before. Purged keys behave as if never granted.
func (l *Ledger) PurgeExpired(ctx context.Context, before types.Height) (int64, error) {
	l.mu.Lock()
	n, err := l.store.PurgeExpired(ctx, before)
	l.mu.Unlock()
	if err != nil {
		l.logger.Error("failed to purge expired allowances",
			"before", before,
			"error", err,
		)
		return 0, err
	}

	if n > 0 {
		l.logger.Info("purged expired allowances", "before", before, "count", n)
		l.plugins.EmitAllowancesPurged(ctx, before, n)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// validate checks the inputs of a grant or modify.
func (l *Ledger) validate(key record.Key, amount uint64, expiresAt *types.Height) error {
	if err := l.validateKey(key); err != nil {
		return err
	}
	switch {
	case amount > MaxAmount:
		return ValidationError{Field: "amount", Message: "exceeds maximum", Err: ErrInvalidAmount}
	case expiresAt != nil && *expiresAt > MaxExpiry:
		return ValidationError{Field: "expires_at", Message: "exceeds maximum", Err: ErrInvalidExpiry}
	}
	return nil
}

func (l *Ledger) validateKey(key record.Key) error {
	switch {
	case key.Owner.IsZero():
		return ValidationError{Field: "owner", Message: "must not be empty", Err: ErrInvalidPrincipal}
	case key.Spender.IsZero():
		return ValidationError{Field: "spender", Message: "must not be empty", Err: ErrInvalidPrincipal}
	case key.Action == "":
		return ValidationError{Field: "action", Message: "must not be empty", Err: ErrInvalidAction}
	case len(key.Action) > l.maxActionLength:
		return ValidationError{
			Field:   "action",
			Message: fmt.Sprintf("longer than %d bytes", l.maxActionLength),
			Err:     ErrInvalidAction,
		}
	}
	return nil
}

// deny logs a failed operation and notifies plugins when the failure is a
// precondition rather than an infrastructure error.
func (l *Ledger) deny(ctx context.Context, op plugin.Operation, key record.Key, err error) error {
	if !IsDenied(err) {
		l.logger.Error("allowance operation failed",
			"op", op,
			"key", key.String(),
			"error", err,
		)
		return err
	}

	l.logger.Debug("allowance operation denied",
		"op", op,
		"key", key.String(),
		"error", err,
	)
	l.plugins.EmitAllowanceDenied(ctx, op, key, err)
	return err
}

func (l *Ledger) currentHeight(ctx context.Context) (types.Height, error) {
	h, err := l.heights.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("allowance: current height: %w", err)
	}
	return h, nil
}

func copyHeight(h *types.Height) *types.Height {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}
