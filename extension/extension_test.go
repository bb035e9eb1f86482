package extension

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/api"
	"github.com/xraph/allowance/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestExtension(t *testing.T, opts ...Option) *Extension {
	t.Helper()
	opts = append([]Option{WithHeightSource(allowance.NewManualHeight(1))}, opts...)
	e := New(opts...)
	e.config = mergeWithDefaults(e.config)
	if err := e.build(); err != nil {
		t.Fatal(err)
	}
	if err := e.engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.engine.Stop() })
	return e
}

func post(t *testing.T, h http.Handler, path, caller, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(api.DefaultCallerHeader, caller)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestBuildRequiresHeightSource(t *testing.T) {
	e := New()
	e.config = mergeWithDefaults(e.config)
	if err := e.build(); err == nil {
		t.Fatal("expected an error without a height source")
	}
}

func TestRoutesMountedUnderBasePath(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		path     string
		wantCode int
	}{
		{"default base path", nil, "/allowance/grant-allowance", http.StatusOK},
		{"custom base path", []Option{WithBasePath("/v1")}, "/v1/grant-allowance", http.StatusOK},
		{"outside base path", []Option{WithBasePath("/v1")}, "/grant-allowance", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtension(t, tt.opts...)
			if e.Handler() == nil {
				t.Fatal("expected a handler")
			}
			code := post(t, e.Handler(), tt.path, "A", `{"spender":"B","action":"transfer","amount":10}`)
			if code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, code)
			}
		})
	}
}

func TestDisableRoutes(t *testing.T) {
	e := newTestExtension(t, WithDisableRoutes())
	if e.Handler() != nil {
		t.Fatal("expected no handler when routes are disabled")
	}
	if e.Engine() == nil {
		t.Fatal("expected the engine to be built")
	}
}

func TestCallerFunc(t *testing.T) {
	fixed := func(*gin.Context) (types.Principal, bool) { return "A", true }
	e := newTestExtension(t, WithCallerFunc(fixed))

	if code := post(t, e.Handler(), "/allowance/grant-allowance", "", `{"spender":"B","action":"transfer","amount":10}`); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	left, err := e.Engine().Remaining(context.Background(), "A", "B", "transfer")
	if err != nil {
		t.Fatal(err)
	}
	if left != 10 {
		t.Errorf("expected 10, got %d", left)
	}
}

func TestWithMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	e := newTestExtension(t, WithMetrics(reg))

	if err := e.Engine().Grant(ctx, "A", "B", "transfer", 10, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Engine().Consume(ctx, "B", "A", "transfer", 4); err != nil {
		t.Fatal(err)
	}

	expected := `
# HELP allowance_granted_total Count of allowance.granted.
# TYPE allowance_granted_total counter
allowance_granted_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "allowance_granted_total"); err != nil {
		t.Error(err)
	}
}
