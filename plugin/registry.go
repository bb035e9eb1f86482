package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onAllowanceGranted  []OnAllowanceGranted
	onAllowanceConsumed []OnAllowanceConsumed
	onAllowanceModified []OnAllowanceModified
	onAllowanceRevoked  []OnAllowanceRevoked
	onAllowanceDenied   []OnAllowanceDenied
	onAllowancesPurged  []OnAllowancesPurged
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAllowanceGranted); ok {
		r.onAllowanceGranted = append(r.onAllowanceGranted, v)
	}
	if v, ok := p.(OnAllowanceConsumed); ok {
		r.onAllowanceConsumed = append(r.onAllowanceConsumed, v)
	}
	if v, ok := p.(OnAllowanceModified); ok {
		r.onAllowanceModified = append(r.onAllowanceModified, v)
	}
	if v, ok := p.(OnAllowanceRevoked); ok {
		r.onAllowanceRevoked = append(r.onAllowanceRevoked, v)
	}
	if v, ok := p.(OnAllowanceDenied); ok {
		r.onAllowanceDenied = append(r.onAllowanceDenied, v)
	}
	if v, ok := p.(OnAllowancesPurged); ok {
		r.onAllowancesPurged = append(r.onAllowancesPurged, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

// implementedInterfaces returns the hook interfaces implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnAllowanceGranted)(nil)).Elem(), "OnAllowanceGranted")
	checkInterface(reflect.TypeOf((*OnAllowanceConsumed)(nil)).Elem(), "OnAllowanceConsumed")
	checkInterface(reflect.TypeOf((*OnAllowanceModified)(nil)).Elem(), "OnAllowanceModified")
	checkInterface(reflect.TypeOf((*OnAllowanceRevoked)(nil)).Elem(), "OnAllowanceRevoked")
	checkInterface(reflect.TypeOf((*OnAllowanceDenied)(nil)).Elem(), "OnAllowanceDenied")
	checkInterface(reflect.TypeOf((*OnAllowancesPurged)(nil)).Elem(), "OnAllowancesPurged")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, l)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitAllowanceGranted emits an allowance granted event.
func (r *Registry) EmitAllowanceGranted(ctx context.Context, a *record.Allowance) {
	r.mu.RLock()
	plugins := r.onAllowanceGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllowanceGranted", func() error {
			return p.OnAllowanceGranted(ctx, a.Clone())
		})
	}
}

// EmitAllowanceConsumed emits an allowance consumed event.
func (r *Registry) EmitAllowanceConsumed(ctx context.Context, a *record.Allowance, amount uint64) {
	r.mu.RLock()
	plugins := r.onAllowanceConsumed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllowanceConsumed", func() error {
			return p.OnAllowanceConsumed(ctx, a.Clone(), amount)
		})
	}
}

// EmitAllowanceModified emits an allowance modified event.
func (r *Registry) EmitAllowanceModified(ctx context.Context, before, after *record.Allowance) {
	r.mu.RLock()
	plugins := r.onAllowanceModified
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllowanceModified", func() error {
			return p.OnAllowanceModified(ctx, before.Clone(), after.Clone())
		})
	}
}

// EmitAllowanceRevoked emits an allowance revoked event.
func (r *Registry) EmitAllowanceRevoked(ctx context.Context, key record.Key) {
	r.mu.RLock()
	plugins := r.onAllowanceRevoked
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllowanceRevoked", func() error {
			return p.OnAllowanceRevoked(ctx, key)
		})
	}
}

// EmitAllowanceDenied emits an allowance denied event.
func (r *Registry) EmitAllowanceDenied(ctx context.Context, op Operation, key record.Key, denial error) {
	r.mu.RLock()
	plugins := r.onAllowanceDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllowanceDenied", func() error {
			return p.OnAllowanceDenied(ctx, op, key, denial)
		})
	}
}

// EmitAllowancesPurged emits an allowances purged event.
func (r *Registry) EmitAllowancesPurged(ctx context.Context, before types.Height, count int64) {
	r.mu.RLock()
	plugins := r.onAllowancesPurged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllowancesPurged", func() error {
			return p.OnAllowancesPurged(ctx, before, count)
		})
	}
}

// dispatch runs one hook and logs its failure. Hook errors never reach
// the ledger caller.
func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
