package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/api"
	"github.com/xraph/allowance/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type response struct {
	OK        bool            `json:"ok"`
	Err       uint32          `json:"err"`
	Error     string          `json:"error"`
	Allowance json.RawMessage `json:"allowance"`
}

type harness struct {
	t       *testing.T
	router  *gin.Engine
	heights *allowance.ManualHeight
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	heights := allowance.NewManualHeight(1)
	l := allowance.New(memory.New(), heights)
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Stop() })

	r := gin.New()
	api.Register(r, l, api.HeaderCaller(""))
	return &harness{t: t, router: r, heights: heights}
}

func (h *harness) do(method, path, caller string, body any) (int, response) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(api.DefaultCallerHeader, caller)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var res response
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		h.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, res
}

func TestTransferScenario(t *testing.T) {
	h := newHarness(t)

	steps := []struct {
		name   string
		path   string
		caller string
		body   map[string]any
		status int
		code   uint32
	}{
		{"grant", "/grant-allowance", "A", map[string]any{"spender": "B", "action": "transfer", "amount": 1000}, 200, 0},
		{"consume", "/consume-allowance", "B", map[string]any{"owner": "A", "action": "transfer", "amount": 250}, 200, 0},
		{"modify", "/modify-allowance", "A", map[string]any{"spender": "B", "action": "transfer", "amount": 500}, 200, 0},
		{"overspend", "/consume-allowance", "B", map[string]any{"owner": "A", "action": "transfer", "amount": 600}, 409, 103},
	}

	for _, s := range steps {
		status, res := h.do(http.MethodPost, s.path, s.caller, s.body)
		if status != s.status {
			t.Fatalf("%s: expected status %d, got %d (%+v)", s.name, s.status, status, res)
		}
		if s.code == 0 && !res.OK {
			t.Fatalf("%s: expected ok, got %+v", s.name, res)
		}
		if res.Err != s.code {
			t.Fatalf("%s: expected err %d, got %d", s.name, s.code, res.Err)
		}
	}

	status, res := h.do(http.MethodGet, "/allowances/A/B/transfer", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var view struct {
		Remaining uint64 `json:"remaining"`
		Usable    uint64 `json:"usable"`
	}
	if err := json.Unmarshal(res.Allowance, &view); err != nil {
		t.Fatal(err)
	}
	if view.Remaining != 500 || view.Usable != 500 {
		t.Errorf("expected 500 remaining, got %+v", view)
	}
}

func TestErrorCodes(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/grant-allowance", "A", map[string]any{"spender": "B", "action": "transfer", "amount": 10, "expires_at": 5})

	tests := []struct {
		name   string
		path   string
		caller string
		body   map[string]any
		status int
		code   uint32
	}{
		{"modify by non-owner", "/modify-allowance", "C", map[string]any{"owner": "A", "spender": "B", "action": "transfer", "amount": 1}, 403, 100},
		{"modify missing", "/modify-allowance", "A", map[string]any{"spender": "Z", "action": "transfer", "amount": 1}, 404, 101},
		{"consume missing", "/consume-allowance", "B", map[string]any{"owner": "A", "action": "mint", "amount": 1}, 404, 101},
		{"grant past expiry", "/grant-allowance", "A", map[string]any{"spender": "B", "action": "transfer", "amount": 1, "expires_at": 1}, 400, 104},
		{"grant empty action", "/grant-allowance", "A", map[string]any{"spender": "B", "action": "", "amount": 1}, 400, 105},
		{"grant empty spender", "/grant-allowance", "A", map[string]any{"spender": "", "action": "transfer", "amount": 1}, 400, 107},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := h.do(http.MethodPost, tt.path, tt.caller, tt.body)
			if status != tt.status || res.Err != tt.code {
				t.Errorf("expected (%d, %d), got (%d, %d): %s", tt.status, tt.code, status, res.Err, res.Error)
			}
		})
	}

	h.heights.Set(5)
	status, res := h.do(http.MethodPost, "/consume-allowance", "B", map[string]any{"owner": "A", "action": "transfer", "amount": 1})
	if status != http.StatusConflict || res.Err != 102 {
		t.Errorf("expected expired (409, 102), got (%d, %d)", status, res.Err)
	}
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(http.MethodPost, "/grant-allowance", "", map[string]any{"spender": "B", "action": "transfer", "amount": 1})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 without caller, got %d", status)
	}

	status, res := h.do(http.MethodPost, "/grant-allowance", "A", map[string]any{"spender": "B", "action": "transfer"})
	if status != http.StatusBadRequest || res.Error != "invalid_request" {
		t.Errorf("expected 400 invalid_request without amount, got %d %q", status, res.Error)
	}

	status, _ = h.do(http.MethodPost, "/grant-allowance", "A", map[string]any{"spender": "B", "action": "transfer", "amount": -5})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for negative amount, got %d", status)
	}
}

func TestRevokeEndpoint(t *testing.T) {
	h := newHarness(t)

	h.do(http.MethodPost, "/grant-allowance", "A", map[string]any{"spender": "B", "action": "transfer", "amount": 10})
	status, res := h.do(http.MethodPost, "/revoke-allowance", "A", map[string]any{"spender": "B", "action": "transfer"})
	if status != http.StatusOK || !res.OK {
		t.Fatalf("expected ok, got %d %+v", status, res)
	}

	status, res = h.do(http.MethodPost, "/consume-allowance", "B", map[string]any{"owner": "A", "action": "transfer", "amount": 1})
	if status != http.StatusConflict || res.Err != 103 {
		t.Errorf("expected insufficient after revoke, got (%d, %d)", status, res.Err)
	}
}

func TestGetMissing(t *testing.T) {
	h := newHarness(t)
	status, res := h.do(http.MethodGet, "/allowances/A/B/transfer", "", nil)
	if status != http.StatusNotFound || res.Err != 101 {
		t.Errorf("expected (404, 101), got (%d, %d)", status, res.Err)
	}
}
