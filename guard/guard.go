// Package guard composes the resilience layer around a remote operation:
// cache lookup, rate-limit admission, circuit-breaker-guarded invocation and
// result caching, applied as an explicit middleware chain built once at
// registration time.
//
// The chain short-circuits on a cache hit: cached reads return without
// consulting the rate limiter or the breaker, because cached data imposes no
// load on the protected resource. The flip side is that a long TTL can mask
// an open circuit from callers relying on freshness, and a very short TTL
// provides little protection; each operation tunes its own policy.
package guard

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kyraven-io/marketguard/breaker"
	"github.com/kyraven-io/marketguard/cache"
	"github.com/kyraven-io/marketguard/logger"
	"github.com/kyraven-io/marketguard/ratelimit"
)

// CallFunc is the shape of a guarded remote operation: any keyed-argument
// call that returns an opaque result or an error. The guard layer never
// inspects the result's shape.
type CallFunc func(ctx context.Context, args ...any) (any, error)

// Middleware transforms a call into a wrapped call.
type Middleware func(next CallFunc) CallFunc

// FallbackFunc produces a substitute value when the upstream operation fails.
// Opt-in per operation; when unset, upstream failures propagate.
type FallbackFunc func(args ...any) any

// Policy declares the resilience parameters of one guarded operation. There
// is no global default that silently applies: every operation states its own.
type Policy struct {
	// Name is the operation identity, used for cache keys, metrics and logs.
	Name string
	// TTL is the cache time-to-live. Zero disables caching for this operation.
	TTL time.Duration
	// CacheName selects the backing cache. Defaults to Name.
	CacheName string
	// PersistCache enables disk persistence for the backing cache.
	PersistCache bool
	// RateLimitEndpoint names the admission rule set. Empty means no
	// admission control.
	RateLimitEndpoint string
	// CircuitBreaker names the breaker guarding this operation. Empty means
	// no breaker (and no call timeout).
	CircuitBreaker string
	// FailureThreshold, RecoveryTimeout and CallTimeout configure the breaker
	// named above; zero values fall back to breaker.DefaultConfig.
	FailureThreshold int
	RecoveryTimeout  time.Duration
	CallTimeout      time.Duration
	// SingleFlight collapses concurrent cache misses for the same key into
	// one upstream call. Off by default: two concurrent misses may both
	// invoke the upstream and both populate the cache (last write wins).
	SingleFlight bool
	// Fallback substitutes a value when the upstream call itself fails.
	// Rejections (rate limit, open circuit) are never masked by a fallback.
	Fallback FallbackFunc
}

// Guarded is a registered operation with its resilience chain applied.
type Guarded struct {
	name   string
	policy Policy
	call   CallFunc

	// sf dedups concurrent misses per cache key when SingleFlight is set.
	sf singleflight.Group
}

// Name returns the operation name.
func (g *Guarded) Name() string { return g.name }

// Policy returns the operation's declared policy.
func (g *Guarded) Policy() Policy { return g.policy }

// Call invokes the operation through its resilience chain.
func (g *Guarded) Call(ctx context.Context, args ...any) (any, error) {
	return g.call(ctx, args...)
}

// Runtime owns the registries the guard layer operates on. It is constructed
// once at startup and injected into every guarded operation; tests build
// their own isolated Runtime.
type Runtime struct {
	caches   *cache.Registry
	limiter  *ratelimit.Limiter
	breakers *breaker.Registry
	metrics  MetricsSink
	log      *logger.Logger
}

// Options configures a Runtime.
type Options struct {
	// PersistDir is the base directory for persistent caches. Empty uses the
	// cache package default.
	PersistDir string
	// Metrics receives (operation, success, duration) events. Nil disables
	// metric emission.
	Metrics MetricsSink
}

// NewRuntime creates a Runtime with empty registries.
func NewRuntime(opts Options) *Runtime {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Runtime{
		caches:   cache.NewRegistry(opts.PersistDir),
		limiter:  ratelimit.New(),
		breakers: breaker.NewRegistry(),
		metrics:  metrics,
		log:      logger.WithComponent("guard"),
	}
}

// Caches exposes the cache registry for administrative introspection.
func (rt *Runtime) Caches() *cache.Registry { return rt.caches }

// Limiter exposes the rate limiter for configuration and introspection.
func (rt *Runtime) Limiter() *ratelimit.Limiter { return rt.limiter }

// Breakers exposes the breaker registry for administrative introspection.
func (rt *Runtime) Breakers() *breaker.Registry { return rt.breakers }

// Close flushes persistent caches. Call before process exit.
func (rt *Runtime) Close() { rt.caches.Close() }

// Register builds a Guarded operation from its policy and underlying call.
// The middleware chain is composed here, once, in fixed order: cache lookup
// first, then rate-limit admission, then the breaker-guarded invocation.
func (rt *Runtime) Register(p Policy, fn CallFunc) *Guarded {
	if p.CacheName == "" {
		p.CacheName = p.Name
	}

	g := &Guarded{name: p.Name, policy: p}

	call := rt.instrument(p, fn)
	if p.CircuitBreaker != "" {
		call = rt.withBreaker(p, call)
	}
	if p.Fallback != nil {
		// Outside the breaker: the failure is still recorded against the
		// circuit before the substitute value is returned.
		call = rt.withFallback(p, call)
	}
	if p.RateLimitEndpoint != "" {
		call = rt.withRateLimit(p, call)
	}
	if p.TTL > 0 {
		call = rt.withCache(p, g, call)
	}

	g.call = call
	return g
}
