// Package observability provides a metrics extension for the allowance
// ledger that records event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnAllowanceGranted  = (*MetricsExtension)(nil)
	_ plugin.OnAllowanceConsumed = (*MetricsExtension)(nil)
	_ plugin.OnAllowanceModified = (*MetricsExtension)(nil)
	_ plugin.OnAllowanceRevoked  = (*MetricsExtension)(nil)
	_ plugin.OnAllowanceDenied   = (*MetricsExtension)(nil)
	_ plugin.OnAllowancesPurged  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// deniedNames maps each error code to its counter suffix.
var deniedNames = map[allowance.Code]string{
	allowance.CodeUnauthorized:          "unauthorized",
	allowance.CodeNoSuchAllowance:       "no_such_allowance",
	allowance.CodeAllowanceExpired:      "expired",
	allowance.CodeInsufficientAllowance: "insufficient",
	allowance.CodeInvalidExpiry:         "invalid_expiry",
	allowance.CodeInvalidAction:         "invalid_action",
	allowance.CodeInvalidAmount:         "invalid_amount",
	allowance.CodeInvalidPrincipal:      "invalid_principal",
}

// MetricsExtension records ledger-wide allowance metrics.
// Register it as a ledger plugin to track grants and consumption.
type MetricsExtension struct {
	factory MetricFactory

	// Allowance metrics
	AllowanceGranted  Counter
	AllowanceConsumed Counter
	AllowanceModified Counter
	AllowanceRevoked  Counter

	// Volume metrics
	UnitsGranted  Counter
	UnitsConsumed Counter
	ConsumeAmount Histogram

	// Denial metrics, one counter per error code
	AllowanceDenied map[allowance.Code]Counter

	// Maintenance metrics
	AllowancesPurged Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		AllowanceGranted:  factory.Counter("allowance.granted"),
		AllowanceConsumed: factory.Counter("allowance.consumed"),
		AllowanceModified: factory.Counter("allowance.modified"),
		AllowanceRevoked:  factory.Counter("allowance.revoked"),

		UnitsGranted:  factory.Counter("allowance.units.granted"),
		UnitsConsumed: factory.Counter("allowance.units.consumed"),
		ConsumeAmount: factory.Histogram("allowance.consume.amount"),

		AllowanceDenied: make(map[allowance.Code]Counter, len(deniedNames)),

		AllowancesPurged: factory.Counter("allowance.purged"),
	}
	for code, name := range deniedNames {
		m.AllowanceDenied[code] = factory.Counter("allowance.denied." + name)
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Allowance hooks
// ──────────────────────────────────────────────────

// OnAllowanceGranted implements plugin.OnAllowanceGranted.
func (m *MetricsExtension) OnAllowanceGranted(_ context.Context, a *record.Allowance) error {
	m.AllowanceGranted.Inc()
	m.UnitsGranted.Add(float64(a.Remaining))
	return nil
}

// OnAllowanceConsumed implements plugin.OnAllowanceConsumed.
func (m *MetricsExtension) OnAllowanceConsumed(_ context.Context, _ *record.Allowance, amount uint64) error {
	m.AllowanceConsumed.Inc()
	m.UnitsConsumed.Add(float64(amount))
	m.ConsumeAmount.Observe(float64(amount))
	return nil
}

// OnAllowanceModified implements plugin.OnAllowanceModified.
func (m *MetricsExtension) OnAllowanceModified(_ context.Context, _, _ *record.Allowance) error {
	m.AllowanceModified.Inc()
	return nil
}

// OnAllowanceRevoked implements plugin.OnAllowanceRevoked.
func (m *MetricsExtension) OnAllowanceRevoked(_ context.Context, _ record.Key) error {
	m.AllowanceRevoked.Inc()
	return nil
}

// OnAllowanceDenied implements plugin.OnAllowanceDenied.
func (m *MetricsExtension) OnAllowanceDenied(_ context.Context, _ plugin.Operation, _ record.Key, err error) error {
	code, ok := allowance.CodeOf(err)
	if !ok {
		return nil
	}
	if c, ok := m.AllowanceDenied[code]; ok {
		c.Inc()
	}
	return nil
}

// OnAllowancesPurged implements plugin.OnAllowancesPurged.
func (m *MetricsExtension) OnAllowancesPurged(_ context.Context, _ types.Height, count int64) error {
	m.AllowancesPurged.Add(float64(count))
	return nil
}
