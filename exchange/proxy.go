package exchange

import (
	"context"
	"time"

	"github.com/kyraven-io/marketguard/config"
	"github.com/kyraven-io/marketguard/errors"
	"github.com/kyraven-io/marketguard/guard"
)

// Operation names. Cache keys, rate-limit metrics and breaker snapshots all
// use these identities.
const (
	OpServerTime     = "get_server_time"
	OpServerStatus   = "get_server_status"
	OpMarketInfo     = "get_market_info"
	OpMarketActivity = "get_market_activity"
	OpOrderbook      = "get_orderbook"
	OpRecentTrades   = "get_recent_trades"
	OpFee            = "get_fee"
	OpAssetStatus    = "get_asset_status"
	OpKline          = "get_kline"
	OpTicker         = "get_ticker"
	OpTickers        = "get_tickers"
	OpSymbols        = "get_symbols"
	OpAssets         = "get_assets"
)

// Breaker names for the operations that carry one.
const (
	breakerServerTime   = "public_v4_get_server_time"
	breakerServerStatus = "public_v4_get_server_status"
	breakerOrderbook    = "public_v4_get_orderbook"
	breakerRecentTrades = "public_v4_get_recent_trades"
	breakerKline        = "public_v4_get_kline"
)

// Proxy exposes the public exchange API through guarded operations. Each
// operation carries its own cache TTL, and the hot paths additionally carry
// admission control and a circuit breaker.
type Proxy struct {
	client *Client
	ops    map[string]*guard.Guarded
}

type registration struct {
	policy guard.Policy
	call   guard.CallFunc
}

// NewProxy registers every exchange operation on the runtime. overrides, keyed
// by operation name, adjust individual policies; absent fields keep the
// operation's declared default.
func NewProxy(client *Client, rt *guard.Runtime, overrides map[string]config.OperationConfig) *Proxy {
	p := &Proxy{
		client: client,
		ops:    make(map[string]*guard.Guarded),
	}
	for _, reg := range p.registrations() {
		policy := reg.policy
		if ov, ok := overrides[policy.Name]; ok {
			policy = applyOverride(policy, ov)
		}
		p.ops[policy.Name] = rt.Register(policy, reg.call)
	}
	return p
}

// registrations declares every operation's policy and underlying call.
// TTLs follow how often each dataset changes upstream; the slow-moving ones
// persist across restarts.
func (p *Proxy) registrations() []registration {
	return []registration{
		{
			policy: guard.Policy{
				Name:              OpServerTime,
				TTL:               10 * time.Second,
				RateLimitEndpoint: "public",
				CircuitBreaker:    breakerServerTime,
				Fallback:          fallbackServerTime,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.ServerTime(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpServerStatus,
				TTL:               60 * time.Second,
				RateLimitEndpoint: "public",
				CircuitBreaker:    breakerServerStatus,
				Fallback:          fallbackServerStatus,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.ServerStatus(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:         OpMarketInfo,
				TTL:          5 * time.Minute,
				CacheName:    "market_info",
				PersistCache: true,
				Fallback:     fallbackEmptyList,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.MarketInfo(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpMarketActivity,
				TTL:               30 * time.Second,
				RateLimitEndpoint: "public",
				Fallback:          fallbackEmptyObject,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.MarketActivity(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpOrderbook,
				TTL:               5 * time.Second,
				RateLimitEndpoint: "get_orderbook",
				CircuitBreaker:    breakerOrderbook,
				Fallback:          fallbackOrderbook,
			},
			call: func(ctx context.Context, args ...any) (any, error) {
				market, limit, level, err := orderbookArgs(args)
				if err != nil {
					return nil, err
				}
				return p.client.Orderbook(ctx, market, limit, level)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpRecentTrades,
				TTL:               10 * time.Second,
				RateLimitEndpoint: "get_recent_trades",
				CircuitBreaker:    breakerRecentTrades,
				Fallback:          fallbackEmptyList,
			},
			call: func(ctx context.Context, args ...any) (any, error) {
				market, limit, err := tradesArgs(args)
				if err != nil {
					return nil, err
				}
				return p.client.RecentTrades(ctx, market, limit)
			},
		},
		{
			policy: guard.Policy{
				Name:         OpFee,
				TTL:          time.Hour,
				CacheName:    "fee",
				PersistCache: true,
				Fallback:     fallbackFee,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.Fee(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:         OpAssetStatus,
				TTL:          30 * time.Minute,
				CacheName:    "asset_status",
				PersistCache: true,
				Fallback:     fallbackEmptyObject,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.AssetStatus(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpKline,
				TTL:               60 * time.Second,
				RateLimitEndpoint: "public",
				CircuitBreaker:    breakerKline,
				Fallback:          fallbackEmptyList,
			},
			call: func(ctx context.Context, args ...any) (any, error) {
				market, interval, start, end, err := klineArgs(args)
				if err != nil {
					return nil, err
				}
				return p.client.Kline(ctx, market, interval, start, end)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpTicker,
				TTL:               30 * time.Second,
				RateLimitEndpoint: "public",
				Fallback:          fallbackTicker,
			},
			call: func(ctx context.Context, args ...any) (any, error) {
				market, err := stringArg(args, 0, "market")
				if err != nil {
					return nil, err
				}
				return p.client.Ticker(ctx, market)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpTickers,
				TTL:               30 * time.Second,
				RateLimitEndpoint: "public",
				Fallback:          fallbackEmptyList,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.Tickers(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpSymbols,
				TTL:               60 * time.Second,
				RateLimitEndpoint: "public",
				Fallback:          fallbackEmptyList,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.Symbols(ctx)
			},
		},
		{
			policy: guard.Policy{
				Name:              OpAssets,
				TTL:               5 * time.Minute,
				RateLimitEndpoint: "public",
				Fallback:          fallbackEmptyObject,
			},
			call: func(ctx context.Context, _ ...any) (any, error) {
				return p.client.Assets(ctx)
			},
		},
	}
}

// applyOverride merges a configuration override onto a declared policy.
func applyOverride(p guard.Policy, ov config.OperationConfig) guard.Policy {
	if ov.TTLSeconds > 0 {
		p.TTL = time.Duration(ov.TTLSeconds * float64(time.Second))
	}
	if ov.Persist != nil {
		p.PersistCache = *ov.Persist
	}
	if ov.Endpoint != "" {
		p.RateLimitEndpoint = ov.Endpoint
	}
	if ov.FailureThreshold > 0 {
		p.FailureThreshold = ov.FailureThreshold
	}
	if ov.RecoverySeconds > 0 {
		p.RecoveryTimeout = time.Duration(ov.RecoverySeconds * float64(time.Second))
	}
	if ov.TimeoutSeconds > 0 {
		p.CallTimeout = time.Duration(ov.TimeoutSeconds * float64(time.Second))
	}
	if ov.SingleFlight != nil {
		p.SingleFlight = *ov.SingleFlight
	}
	return p
}

// Call dispatches a named operation through its guard chain.
func (p *Proxy) Call(ctx context.Context, operation string, args ...any) (any, error) {
	g, ok := p.ops[operation]
	if !ok {
		return nil, errors.NotFound("operation", operation)
	}
	return g.Call(ctx, args...)
}

// Operations returns the registered operation names.
func (p *Proxy) Operations() []string {
	names := make([]string, 0, len(p.ops))
	for name := range p.ops {
		names = append(names, name)
	}
	return names
}

// ServerTime returns the current exchange server time.
func (p *Proxy) ServerTime(ctx context.Context) (any, error) {
	return p.Call(ctx, OpServerTime)
}

// ServerStatus returns the exchange availability status.
func (p *Proxy) ServerStatus(ctx context.Context) (any, error) {
	return p.Call(ctx, OpServerStatus)
}

// MarketInfo returns the list of markets and their trading rules.
func (p *Proxy) MarketInfo(ctx context.Context) (any, error) {
	return p.Call(ctx, OpMarketInfo)
}

// MarketActivity returns 24h activity across all markets.
func (p *Proxy) MarketActivity(ctx context.Context) (any, error) {
	return p.Call(ctx, OpMarketActivity)
}

// Orderbook returns the order book of one market.
func (p *Proxy) Orderbook(ctx context.Context, market string, limit, level int) (any, error) {
	return p.Call(ctx, OpOrderbook, market, limit, level)
}

// RecentTrades returns the latest trades of one market.
func (p *Proxy) RecentTrades(ctx context.Context, market string, limit int) (any, error) {
	return p.Call(ctx, OpRecentTrades, market, limit)
}

// Fee returns deposit and withdrawal fees.
func (p *Proxy) Fee(ctx context.Context) (any, error) {
	return p.Call(ctx, OpFee)
}

// AssetStatus returns the status of every asset.
func (p *Proxy) AssetStatus(ctx context.Context) (any, error) {
	return p.Call(ctx, OpAssetStatus)
}

// Kline returns candlestick data for one market.
func (p *Proxy) Kline(ctx context.Context, market, interval string, start, end int64) (any, error) {
	return p.Call(ctx, OpKline, market, interval, start, end)
}

// Ticker returns 24h stats for one market.
func (p *Proxy) Ticker(ctx context.Context, market string) (any, error) {
	return p.Call(ctx, OpTicker, market)
}

// Tickers returns 24h stats for all markets.
func (p *Proxy) Tickers(ctx context.Context) (any, error) {
	return p.Call(ctx, OpTickers)
}

// Symbols returns the list of market symbols.
func (p *Proxy) Symbols(ctx context.Context) (any, error) {
	return p.Call(ctx, OpSymbols)
}

// Assets returns detailed information about all assets.
func (p *Proxy) Assets(ctx context.Context) (any, error) {
	return p.Call(ctx, OpAssets)
}

// --- argument extraction ---

func stringArg(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", errors.InvalidInput(name + " is required")
	}
	s, ok := args[i].(string)
	if !ok || s == "" {
		return "", errors.InvalidInput(name + " is required")
	}
	return s, nil
}

func intArg(args []any, i int) int {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func int64Arg(args []any, i int) int64 {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func orderbookArgs(args []any) (market string, limit, level int, err error) {
	market, err = stringArg(args, 0, "market")
	if err != nil {
		return "", 0, 0, err
	}
	return market, intArg(args, 1), intArg(args, 2), nil
}

func tradesArgs(args []any) (market string, limit int, err error) {
	market, err = stringArg(args, 0, "market")
	if err != nil {
		return "", 0, err
	}
	return market, intArg(args, 1), nil
}

func klineArgs(args []any) (market, interval string, start, end int64, err error) {
	market, err = stringArg(args, 0, "market")
	if err != nil {
		return "", "", 0, 0, err
	}
	if len(args) > 1 {
		interval, _ = args[1].(string)
	}
	return market, interval, int64Arg(args, 2), int64Arg(args, 3), nil
}
