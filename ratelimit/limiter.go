// Package ratelimit implements fixed-window admission control for named
// endpoints. Each endpoint carries an ordered set of rules (for example a
// burst rule and a sustained rule) and admission requires every rule to pass.
//
// Fixed windows are a deliberate trade-off: bounded memory and simple counters
// in exchange for a slight burst allowance at window boundaries.
package ratelimit

import (
	"sync"
	"time"
)

// Rule is a single admission rule: at most MaxRequests per Period.
type Rule struct {
	MaxRequests int
	Period      time.Duration
}

// ruleState tracks the current window of one rule.
type ruleState struct {
	rule        Rule
	windowStart time.Time
	count       int
}

// expired reports whether the window has elapsed at the given time.
func (rs *ruleState) expired(now time.Time) bool {
	return now.Sub(rs.windowStart) >= rs.rule.Period
}

// resetsIn returns the time remaining until the window resets.
func (rs *ruleState) resetsIn(now time.Time) time.Duration {
	remaining := rs.rule.Period - now.Sub(rs.windowStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// endpoint is a named rule set with its own lock so unrelated endpoints never
// serialize each other.
type endpoint struct {
	name  string
	mu    sync.Mutex
	rules []*ruleState
}

// Decision is the result of an admission check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool
	// RetryAfter is the maximum, over all failing rules, of the time until
	// that rule's window resets. Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter holds the named endpoints. Configure and TryAcquire are safe for
// concurrent use.
type Limiter struct {
	mu        sync.RWMutex
	endpoints map[string]*endpoint
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{endpoints: make(map[string]*endpoint)}
}

// Configure registers or replaces the rule set for a named endpoint.
func (l *Limiter) Configure(name string, rules []Rule) {
	states := make([]*ruleState, len(rules))
	now := time.Now()
	for i, r := range rules {
		states[i] = &ruleState{rule: r, windowStart: now}
	}

	l.mu.Lock()
	l.endpoints[name] = &endpoint{name: name, rules: states}
	l.mu.Unlock()
}

// TryAcquire checks every rule of the endpoint: expired windows are reset,
// then admission requires count < max for all rules. On admission every
// rule's counter is incremented. An endpoint with no configured rules admits
// unconditionally.
func (l *Limiter) TryAcquire(name string) Decision {
	l.mu.RLock()
	ep, ok := l.endpoints[name]
	l.mu.RUnlock()
	if !ok {
		return Decision{Allowed: true}
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()

	now := time.Now()
	for _, rs := range ep.rules {
		if rs.expired(now) {
			rs.windowStart = now
			rs.count = 0
		}
	}

	var retryAfter time.Duration
	allowed := true
	for _, rs := range ep.rules {
		if rs.count >= rs.rule.MaxRequests {
			allowed = false
			if wait := rs.resetsIn(now); wait > retryAfter {
				retryAfter = wait
			}
		}
	}
	if !allowed {
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	for _, rs := range ep.rules {
		rs.count++
	}
	return Decision{Allowed: true}
}

// RuleStatus describes one rule's current window for introspection.
type RuleStatus struct {
	MaxRequests   int     `json:"max_requests"`
	PeriodSeconds float64 `json:"period_seconds"`
	CurrentCount  int     `json:"current_count"`
	ResetsIn      float64 `json:"resets_in_seconds"`
}

// EndpointStatus describes an endpoint's admission state for introspection.
type EndpointStatus struct {
	CanRequest bool         `json:"can_request"`
	RetryAfter float64      `json:"retry_after_seconds"`
	Rules      []RuleStatus `json:"rules"`
}

// Status reports the state of every endpoint. It never mutates counters or
// windows: expired windows are reported as if already reset.
func (l *Limiter) Status() map[string]EndpointStatus {
	l.mu.RLock()
	eps := make([]*endpoint, 0, len(l.endpoints))
	for _, ep := range l.endpoints {
		eps = append(eps, ep)
	}
	l.mu.RUnlock()

	out := make(map[string]EndpointStatus, len(eps))
	now := time.Now()
	for _, ep := range eps {
		ep.mu.Lock()
		st := EndpointStatus{CanRequest: true}
		for _, rs := range ep.rules {
			count := rs.count
			resetsIn := rs.resetsIn(now)
			if rs.expired(now) {
				count = 0
				resetsIn = 0
			}
			st.Rules = append(st.Rules, RuleStatus{
				MaxRequests:   rs.rule.MaxRequests,
				PeriodSeconds: rs.rule.Period.Seconds(),
				CurrentCount:  count,
				ResetsIn:      resetsIn.Seconds(),
			})
			if count >= rs.rule.MaxRequests {
				st.CanRequest = false
				if resetsIn.Seconds() > st.RetryAfter {
					st.RetryAfter = resetsIn.Seconds()
				}
			}
		}
		ep.mu.Unlock()
		out[ep.name] = st
	}
	return out
}

// Endpoints returns the configured endpoint names.
func (l *Limiter) Endpoints() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.endpoints))
	for name := range l.endpoints {
		names = append(names, name)
	}
	return names
}
