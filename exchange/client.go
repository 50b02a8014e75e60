// Package exchange wraps the WhiteBit public HTTP API behind guarded
// operations with per-operation caching, admission control and circuit
// breaking.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kyraven-io/marketguard/config"
	"github.com/kyraven-io/marketguard/errors"
	"github.com/kyraven-io/marketguard/logger"
)

const defaultBaseURL = "https://whitebit.com"

// Client is a thin HTTP client for the WhiteBit public API. Responses are
// decoded as opaque JSON values so cached results survive a persistence
// round trip unchanged.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates an exchange API client from configuration.
func NewClient(cfg config.ExchangeConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.WithComponent("exchange"),
	}
}

// get performs a GET request against the public API and decodes the JSON
// response body.
func (c *Client) get(ctx context.Context, path string, query url.Values) (any, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("upstream returned non-success status", map[string]interface{}{
			logger.FieldEndpoint: path,
			logger.FieldStatus:   resp.StatusCode,
		})
		return nil, fmt.Errorf("exchange: %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("exchange: decode %s response: %w", path, err)
	}
	return result, nil
}

// ServerTime returns the current exchange server time.
func (c *Client) ServerTime(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v4/public/time", nil)
}

// ServerStatus pings the exchange.
func (c *Client) ServerStatus(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v4/public/ping", nil)
}

// MarketInfo returns the list of markets and their trading rules.
func (c *Client) MarketInfo(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v4/public/markets", nil)
}

// MarketActivity returns 24h activity for all markets.
func (c *Client) MarketActivity(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v4/public/ticker", nil)
}

// Orderbook returns the order book of one market. limit bounds the number
// of levels; level aggregates prices by decimal places.
func (c *Client) Orderbook(ctx context.Context, market string, limit, level int) (any, error) {
	if market == "" {
		return nil, errors.InvalidInput("market is required")
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if level > 0 {
		q.Set("level", strconv.Itoa(level))
	}
	return c.get(ctx, "/api/v4/public/orderbook/"+url.PathEscape(market), q)
}

// RecentTrades returns the latest trades of one market.
func (c *Client) RecentTrades(ctx context.Context, market string, limit int) (any, error) {
	if market == "" {
		return nil, errors.InvalidInput("market is required")
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "/api/v4/public/trades/"+url.PathEscape(market), q)
}

// Fee returns deposit and withdrawal fees for all assets.
func (c *Client) Fee(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v4/public/fee", nil)
}

// AssetStatus returns the status of every asset.
func (c *Client) AssetStatus(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v4/public/assets", nil)
}

// Kline returns candlestick data for one market.
func (c *Client) Kline(ctx context.Context, market, interval string, start, end int64) (any, error) {
	if market == "" {
		return nil, errors.InvalidInput("market is required")
	}
	q := url.Values{}
	q.Set("market", market)
	if interval != "" {
		q.Set("interval", interval)
	}
	if start > 0 {
		q.Set("start", strconv.FormatInt(start, 10))
	}
	if end > 0 {
		q.Set("end", strconv.FormatInt(end, 10))
	}
	return c.get(ctx, "/api/v4/public/kline", q)
}

// Ticker returns 24h stats for one market.
func (c *Client) Ticker(ctx context.Context, market string) (any, error) {
	if market == "" {
		return nil, errors.InvalidInput("market is required")
	}
	q := url.Values{}
	q.Set("market", market)
	return c.get(ctx, "/api/v1/public/ticker", q)
}

// Tickers returns 24h stats for all markets.
func (c *Client) Tickers(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v1/public/tickers", nil)
}

// Symbols returns the list of market symbols.
func (c *Client) Symbols(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v2/public/symbols", nil)
}

// Assets returns detailed information about all assets.
func (c *Client) Assets(ctx context.Context) (any, error) {
	return c.get(ctx, "/api/v2/public/assets", nil)
}
