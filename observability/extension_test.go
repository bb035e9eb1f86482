package observability_test

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/observability"
	"github.com/xraph/allowance/store/memory"
	"github.com/xraph/allowance/types"
)

type fakeMetric struct {
	mu  sync.Mutex
	sum float64
	n   int
}

func (f *fakeMetric) Inc() { f.Add(1) }

func (f *fakeMetric) Add(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sum += v
	f.n++
}

func (f *fakeMetric) Observe(v float64) { f.Add(v) }

func (f *fakeMetric) value() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sum
}

type fakeFactory struct {
	metrics map[string]*fakeMetric
}

func (f *fakeFactory) get(name string) *fakeMetric {
	if m, ok := f.metrics[name]; ok {
		return m
	}
	m := &fakeMetric{}
	f.metrics[name] = m
	return m
}

func (f *fakeFactory) Counter(name string) observability.Counter     { return f.get(name) }
func (f *fakeFactory) Histogram(name string) observability.Histogram { return f.get(name) }

func TestMetricsExtension(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{metrics: make(map[string]*fakeMetric)}
	heights := allowance.NewManualHeight(1)

	l := allowance.New(memory.New(), heights,
		allowance.WithPlugin(observability.NewMetricsExtension(factory)),
	)
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	_ = l.Grant(ctx, "A", "B", "transfer", 1000, types.HeightPtr(5))
	_ = l.Consume(ctx, "B", "A", "transfer", 250)
	_ = l.Consume(ctx, "B", "A", "transfer", 5000)
	_ = l.Consume(ctx, "C", "A", "transfer", 1)
	_ = l.Revoke(ctx, "A", "C", "mint")
	heights.Set(10)
	_, _ = l.PurgeExpired(ctx, 10)

	tests := []struct {
		name string
		want float64
	}{
		{"allowance.granted", 1},
		{"allowance.units.granted", 1000},
		{"allowance.consumed", 1},
		{"allowance.units.consumed", 250},
		{"allowance.denied.insufficient", 1},
		{"allowance.denied.no_such_allowance", 1},
		{"allowance.revoked", 1},
		{"allowance.purged", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := factory.get(tt.name).value(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPrometheusFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	c := f.Counter("allowance.granted")
	c.Inc()
	c.Add(2)

	if got := testutil.ToFloat64(f.Counter("allowance.granted").(prometheus.Counter)); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}

	// A second factory on the same registry reuses the collector.
	again := observability.NewPrometheusFactory(reg).Counter("allowance.granted")
	again.Inc()
	if got := testutil.ToFloat64(c.(prometheus.Counter)); got != 4 {
		t.Errorf("expected shared counter at 4, got %v", got)
	}

	f.Histogram("allowance.consume.amount").Observe(12)
	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 metrics, got %d", n)
	}
}
