package admin

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyraven-io/marketguard/guard"
	"github.com/kyraven-io/marketguard/observability"
	"github.com/kyraven-io/marketguard/ratelimit"
)

func newTestAPI(t *testing.T) (*API, *guard.Runtime, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rt := guard.NewRuntime(guard.Options{PersistDir: t.TempDir()})
	t.Cleanup(rt.Close)

	collector, err := observability.NewLocalCollector()
	if err != nil {
		t.Fatal(err)
	}
	health := observability.NewHealthRegistry("test", time.Second)

	api := NewAPI("test", rt, health, collector)
	engine := gin.New()
	api.RegisterRoutes(engine)
	return api, rt, engine
}

func doRequest(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestHealth_AllProbesUp(t *testing.T) {
	api, _, engine := newTestAPI(t)
	api.health.Register("exchange", func(ctx context.Context) error { return nil })

	w := doRequest(engine, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["status"] != "up" {
		t.Errorf("expected status up, got %v", body["status"])
	}
}

func TestHealth_FailingProbeReportsDown(t *testing.T) {
	api, _, engine := newTestAPI(t)
	api.health.Register("exchange", func(ctx context.Context) error {
		return stderrors.New("unreachable")
	})

	w := doRequest(engine, http.MethodGet, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "down" {
		t.Errorf("expected status down, got %v", body["status"])
	}
}

func TestMetrics_ReportsOperations(t *testing.T) {
	api, _, engine := newTestAPI(t)
	api.metrics.RecordCall(context.Background(), "get_server_time", true, 5*time.Millisecond)

	w := doRequest(engine, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	ops, ok := body["operations"].(map[string]any)
	if !ok {
		t.Fatalf("expected operations map, got %T", body["operations"])
	}
	if _, ok := ops["get_server_time"]; !ok {
		t.Error("expected get_server_time in operations")
	}
	if body["goroutines"] == nil {
		t.Error("expected goroutine count")
	}
}

func TestMetrics_Reset(t *testing.T) {
	api, _, engine := newTestAPI(t)
	api.metrics.RecordCall(context.Background(), "op", true, time.Millisecond)

	w := doRequest(engine, http.MethodPost, "/metrics/reset")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(api.metrics.Snapshot()) != 0 {
		t.Error("expected counters cleared after reset")
	}
}

func TestCircuitBreakers_List(t *testing.T) {
	_, rt, engine := newTestAPI(t)
	rt.Register(guard.Policy{
		Name:           "op",
		CircuitBreaker: "op_breaker",
	}, func(ctx context.Context, args ...any) (any, error) {
		return "ok", nil
	})

	w := doRequest(engine, http.MethodGet, "/admin/circuit-breakers")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	cb, ok := body["op_breaker"].(map[string]any)
	if !ok {
		t.Fatalf("expected op_breaker snapshot, got %v", body)
	}
	if cb["state"] != "closed" {
		t.Errorf("expected closed, got %v", cb["state"])
	}
}

func TestCircuitBreakers_Reset(t *testing.T) {
	_, rt, engine := newTestAPI(t)
	rt.Register(guard.Policy{
		Name:             "op",
		CircuitBreaker:   "op_breaker",
		FailureThreshold: 1,
	}, func(ctx context.Context, args ...any) (any, error) {
		return nil, stderrors.New("down")
	})

	g := rt.Breakers().Get("op_breaker")
	if g == nil {
		t.Fatal("expected breaker to exist")
	}

	w := doRequest(engine, http.MethodPost, "/admin/circuit-breakers/op_breaker/reset")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["ok"] != true {
		t.Errorf("expected ok true, got %v", body)
	}
}

func TestCircuitBreakers_ResetUnknown(t *testing.T) {
	_, _, engine := newTestAPI(t)

	w := doRequest(engine, http.MethodPost, "/admin/circuit-breakers/ghost/reset")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "not found" {
		t.Errorf("expected error \"not found\", got %v", body)
	}
}

func TestCaches_ListAndClear(t *testing.T) {
	_, rt, engine := newTestAPI(t)
	rt.Caches().Get("quotes", false).Set("k", "v", time.Minute)

	w := doRequest(engine, http.MethodGet, "/admin/caches")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if _, ok := body["quotes"]; !ok {
		t.Error("expected quotes cache in listing")
	}

	w = doRequest(engine, http.MethodPost, "/admin/caches/quotes/clear")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if stats := rt.Caches().Stats()["quotes"]; stats.TotalEntries != 0 {
		t.Errorf("expected cleared cache, got %d entries", stats.TotalEntries)
	}
}

func TestCaches_ClearUnknown(t *testing.T) {
	_, _, engine := newTestAPI(t)

	w := doRequest(engine, http.MethodPost, "/admin/caches/ghost/clear")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCaches_ClearAll(t *testing.T) {
	_, rt, engine := newTestAPI(t)
	rt.Caches().Get("a", false).Set("k", 1, time.Minute)
	rt.Caches().Get("b", false).Set("k", 2, time.Minute)

	w := doRequest(engine, http.MethodDelete, "/admin/caches")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	for name, stats := range rt.Caches().Stats() {
		if stats.TotalEntries != 0 {
			t.Errorf("expected cache %s cleared, got %d entries", name, stats.TotalEntries)
		}
	}
}

func TestRateLimits_Status(t *testing.T) {
	_, rt, engine := newTestAPI(t)
	rt.Limiter().Configure("public", []ratelimit.Rule{{MaxRequests: 10, Period: time.Minute}})
	rt.Limiter().TryAcquire("public")

	w := doRequest(engine, http.MethodGet, "/admin/rate-limits")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	ep, ok := body["public"].(map[string]any)
	if !ok {
		t.Fatalf("expected public endpoint status, got %v", body)
	}
	if ep["can_request"] != true {
		t.Errorf("expected can_request true, got %v", ep["can_request"])
	}
}
