package guard

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kyraven-io/marketguard/breaker"
	"github.com/kyraven-io/marketguard/cache"
	"github.com/kyraven-io/marketguard/errors"
	"github.com/kyraven-io/marketguard/logger"
)

var tracer = otel.Tracer("marketguard/guard")

// withCache wraps the chain with cache lookup and result storage. A hit
// returns immediately, bypassing admission control and the breaker.
func (rt *Runtime) withCache(p Policy, g *Guarded, next CallFunc) CallFunc {
	c := rt.caches.Get(p.CacheName, p.PersistCache)

	return func(ctx context.Context, args ...any) (any, error) {
		key := cache.Key(p.Name, args...)

		if value, ok := c.Get(key); ok {
			rt.log.Debug("cache hit", map[string]interface{}{
				logger.FieldOperation: p.Name,
				logger.FieldCacheKey:  key,
			})
			return value, nil
		}

		rt.log.Debug("cache miss", map[string]interface{}{
			logger.FieldOperation: p.Name,
			logger.FieldCacheKey:  key,
		})

		invoke := func() (any, error) { return next(ctx, args...) }

		var value any
		var err error
		if p.SingleFlight {
			value, err, _ = g.sf.Do(key, invoke)
		} else {
			value, err = invoke()
		}
		if err != nil {
			return nil, err
		}

		c.Set(key, value, p.TTL)
		return value, nil
	}
}

// withRateLimit wraps the chain with fixed-window admission. A denial is a
// local fast-fail rejection: neither the breaker nor the operation is touched.
func (rt *Runtime) withRateLimit(p Policy, next CallFunc) CallFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		decision := rt.limiter.TryAcquire(p.RateLimitEndpoint)
		if !decision.Allowed {
			rt.metrics.RecordRejection(ctx, p.Name, "rate_limited")
			rt.log.Warn("rate limit exceeded", map[string]interface{}{
				logger.FieldOperation: p.Name,
				logger.FieldEndpoint:  p.RateLimitEndpoint,
				"retry_after":         decision.RetryAfter.Seconds(),
			})
			return nil, errors.RateLimited(p.RateLimitEndpoint, decision.RetryAfter)
		}
		return next(ctx, args...)
	}
}

// withBreaker wraps the chain with the operation's circuit breaker, created
// on first touch. The breaker bounds the call with its call timeout and
// rejects immediately while open.
func (rt *Runtime) withBreaker(p Policy, next CallFunc) CallFunc {
	cfg := breaker.DefaultConfig(p.CircuitBreaker)
	if p.FailureThreshold > 0 {
		cfg.FailureThreshold = p.FailureThreshold
	}
	if p.RecoveryTimeout > 0 {
		cfg.RecoveryTimeout = p.RecoveryTimeout
	}
	if p.CallTimeout > 0 {
		cfg.CallTimeout = p.CallTimeout
	}
	b := rt.breakers.GetOrCreate(cfg)

	return func(ctx context.Context, args ...any) (any, error) {
		var value any
		err := b.Execute(ctx, func(callCtx context.Context) error {
			v, callErr := next(callCtx, args...)
			if callErr != nil {
				return callErr
			}
			value = v
			return nil
		})
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeCircuitOpen) {
				rt.metrics.RecordRejection(ctx, p.Name, "circuit_open")
			}
			return nil, err
		}
		return value, nil
	}
}

// withFallback substitutes a configured value when the upstream call itself
// failed. Rate-limit and open-circuit rejections pass through untouched so
// callers can apply their own backoff policy.
func (rt *Runtime) withFallback(p Policy, next CallFunc) CallFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		value, err := next(ctx, args...)
		if err == nil {
			return value, nil
		}
		if errors.HasCode(err, errors.ErrCodeUpstream) || errors.HasCode(err, errors.ErrCodeTimeout) {
			rt.log.Warn("substituting fallback value", logger.ErrorFields(p.Name, err))
			return p.Fallback(args...), nil
		}
		return nil, err
	}
}

// instrument times the underlying invocation, emits the metrics event and
// wraps raw upstream errors in the UPSTREAM_ERROR taxonomy.
func (rt *Runtime) instrument(p Policy, fn CallFunc) CallFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		ctx, span := tracer.Start(ctx, "guard."+p.Name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("operation", p.Name)),
		)
		defer span.End()

		start := time.Now()
		value, err := fn(ctx, args...)
		duration := time.Since(start)

		rt.metrics.RecordCall(ctx, p.Name, err == nil, duration)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		if err != nil {
			rt.log.Error("upstream call failed", map[string]interface{}{
				logger.FieldOperation: p.Name,
				logger.FieldError:     err.Error(),
				logger.FieldDuration:  duration.Milliseconds(),
			})
			if _, ok := errors.AsAppError(err); ok {
				return nil, err
			}
			return nil, errors.Upstream(p.Name, err)
		}

		rt.log.Debug("upstream call ok", logger.DurationFields(p.Name, duration))
		return value, nil
	}
}
