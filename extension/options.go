package extension

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/api"
	"github.com/xraph/allowance/observability"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/store"
)

// Option configures the allowance Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithHeightSource sets the source of the current execution height.
// It is required.
func WithHeightSource(h allowance.HeightSource) Option {
	return func(e *Extension) {
		e.heights = h
	}
}

// WithLedgerOption passes an allowance.Option through to the underlying engine.
func WithLedgerOption(opt allowance.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, allowance.WithPlugin(p))
	}
}

// WithMetrics records ledger metrics as Prometheus collectors on reg.
// A nil reg selects prometheus.DefaultRegisterer.
func WithMetrics(reg prometheus.Registerer) Option {
	return WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg)))
}

// WithCallerFunc sets how HTTP handlers resolve the calling principal.
// The default reads api.DefaultCallerHeader.
func WithCallerFunc(fn api.CallerFunc) Option {
	return func(e *Extension) { e.caller = fn }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithBasePath sets the URL prefix for allowance routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMaxActionLength bounds action names in bytes.
func WithMaxActionLength(n int) Option {
	return func(e *Extension) { e.config.MaxActionLength = n }
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}
