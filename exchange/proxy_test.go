package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kyraven-io/marketguard/config"
	"github.com/kyraven-io/marketguard/errors"
	"github.com/kyraven-io/marketguard/guard"
)

// fakeExchange serves canned responses and counts hits per path.
type fakeExchange struct {
	server *httptest.Server
	hits   map[string]*int32
	fail   atomic.Bool
}

func newFakeExchange(t *testing.T) *fakeExchange {
	t.Helper()
	fe := &fakeExchange{hits: make(map[string]*int32)}

	responses := map[string]any{
		"/api/v4/public/time":                 map[string]any{"time": 1700000000},
		"/api/v4/public/ping":                 []any{"pong"},
		"/api/v4/public/markets":              []any{map[string]any{"name": "BTC_USDT"}},
		"/api/v4/public/orderbook/BTC_USDT":   map[string]any{"asks": []any{}, "bids": []any{}},
		"/api/v4/public/trades/BTC_USDT":      []any{map[string]any{"id": 1}},
		"/api/v4/public/fee":                  map[string]any{"USDT": map[string]any{}},
		"/api/v1/public/ticker":               map[string]any{"last": "50000"},
	}
	for path := range responses {
		var n int32
		fe.hits[path] = &n
	}

	fe.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fe.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if n := fe.hits[r.URL.Path]; n != nil {
			atomic.AddInt32(n, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(fe.server.Close)
	return fe
}

func (fe *fakeExchange) hitCount(path string) int32 {
	n := fe.hits[path]
	if n == nil {
		return 0
	}
	return atomic.LoadInt32(n)
}

func newTestProxy(t *testing.T, fe *fakeExchange) *Proxy {
	t.Helper()
	rt := guard.NewRuntime(guard.Options{PersistDir: t.TempDir()})
	t.Cleanup(rt.Close)

	client := NewClient(config.ExchangeConfig{BaseURL: fe.server.URL, Timeout: 2})
	return NewProxy(client, rt, nil)
}

func TestProxy_ServerTime(t *testing.T) {
	fe := newFakeExchange(t)
	p := newTestProxy(t, fe)

	got, err := p.ServerTime(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["time"] != float64(1700000000) {
		t.Errorf("expected upstream time, got %v", m["time"])
	}
}

func TestProxy_CachesRepeatCalls(t *testing.T) {
	fe := newFakeExchange(t)
	p := newTestProxy(t, fe)

	for i := 0; i < 3; i++ {
		if _, err := p.MarketInfo(context.Background()); err != nil {
			t.Fatalf("call %d: expected no error, got %v", i+1, err)
		}
	}

	if got := fe.hitCount("/api/v4/public/markets"); got != 1 {
		t.Errorf("expected 1 upstream hit, got %d", got)
	}
}

func TestProxy_OrderbookDistinctMarketsMissSeparately(t *testing.T) {
	fe := newFakeExchange(t)
	p := newTestProxy(t, fe)

	_, _ = p.Orderbook(context.Background(), "BTC_USDT", 100, 0)
	_, _ = p.Orderbook(context.Background(), "BTC_USDT", 100, 0)
	_, _ = p.Orderbook(context.Background(), "BTC_USDT", 50, 0)

	if got := fe.hitCount("/api/v4/public/orderbook/BTC_USDT"); got != 2 {
		t.Errorf("expected 2 upstream hits for distinct args, got %d", got)
	}
}

func TestProxy_OrderbookRequiresMarket(t *testing.T) {
	fe := newFakeExchange(t)
	p := newTestProxy(t, fe)

	_, err := p.Orderbook(context.Background(), "", 100, 0)
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestProxy_FallbackOnUpstreamFailure(t *testing.T) {
	fe := newFakeExchange(t)
	fe.fail.Store(true)
	p := newTestProxy(t, fe)

	got, err := p.Fee(context.Background())
	if err != nil {
		t.Fatalf("expected fallback to mask the failure, got %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map fallback, got %T", got)
	}
	if m["maker"] != "0.001" {
		t.Errorf("expected fallback fee, got %v", m)
	}
}

func TestProxy_FallbackValueIsCached(t *testing.T) {
	fe := newFakeExchange(t)
	fe.fail.Store(true)
	p := newTestProxy(t, fe)

	if _, err := p.ServerStatus(context.Background()); err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}

	// Upstream recovers, but the substitute is cached under its TTL.
	fe.fail.Store(false)
	got, err := p.ServerStatus(context.Background())
	if err != nil {
		t.Fatalf("expected cached value, got %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["status"] != "active" {
		t.Errorf("expected cached fallback status, got %v", m)
	}
	if got := fe.hitCount("/api/v4/public/ping"); got != 0 {
		t.Errorf("expected no upstream hit while cached, got %d", got)
	}
}

func TestProxy_UnknownOperation(t *testing.T) {
	fe := newFakeExchange(t)
	p := newTestProxy(t, fe)

	_, err := p.Call(context.Background(), "get_nothing")
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestProxy_OperationOverrides(t *testing.T) {
	fe := newFakeExchange(t)
	rt := guard.NewRuntime(guard.Options{PersistDir: t.TempDir()})
	t.Cleanup(rt.Close)

	off := false
	overrides := map[string]config.OperationConfig{
		OpMarketInfo: {TTLSeconds: 1, Persist: &off},
	}
	client := NewClient(config.ExchangeConfig{BaseURL: fe.server.URL, Timeout: 2})
	p := NewProxy(client, rt, overrides)

	if _, err := p.MarketInfo(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats := rt.Caches().Stats()["market_info"]; stats.Persistent {
		t.Error("expected persistence disabled by override")
	}
}

func TestProxy_RegistersAllOperations(t *testing.T) {
	fe := newFakeExchange(t)
	p := newTestProxy(t, fe)

	want := []string{
		OpServerTime, OpServerStatus, OpMarketInfo, OpMarketActivity,
		OpOrderbook, OpRecentTrades, OpFee, OpAssetStatus, OpKline,
		OpTicker, OpTickers, OpSymbols, OpAssets,
	}
	ops := make(map[string]bool)
	for _, name := range p.Operations() {
		ops[name] = true
	}
	for _, name := range want {
		if !ops[name] {
			t.Errorf("expected operation %s to be registered", name)
		}
	}
}
