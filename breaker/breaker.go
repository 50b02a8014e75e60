// Package breaker implements a per-operation circuit breaker. After
// FailureThreshold consecutive failures the breaker opens and fails fast;
// after RecoveryTimeout a single trial call probes the upstream and decides
// whether the circuit closes again. Every guarded invocation is bounded by
// CallTimeout, which cancels the in-flight call through its context.
package breaker

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/kyraven-io/marketguard/errors"
	"github.com/kyraven-io/marketguard/logger"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen rejects all requests without invoking the operation.
	StateOpen
	// StateHalfOpen allows exactly one trial call to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker.
type Config struct {
	// Name identifies this breaker for registries, metrics and logging.
	Name string
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a trial call.
	RecoveryTimeout time.Duration
	// CallTimeout bounds every guarded invocation. Exceeding it cancels the
	// call and counts as a failure.
	CallTimeout time.Duration
	// OnStateChange is called when the state changes.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns the defaults used for exchange API operations.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		CallTimeout:      5 * time.Second,
	}
}

// Snapshot is a point-in-time view of a breaker for introspection.
type Snapshot struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	FailureCount  int       `json:"failure_count"`
	LastFailureAt time.Time `json:"last_failure_at,omitzero"`
}

// Breaker is the circuit breaker state machine. Safe for concurrent use; the
// lock is scoped to this instance.
type Breaker struct {
	config Config
	log    *logger.Logger

	mu            sync.Mutex
	state         State
	failures      int
	lastFailureAt time.Time
	trialInFlight bool
}

// New creates a circuit breaker in the closed state.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 5 * time.Second
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
		log:    logger.WithComponent("breaker").WithFields(map[string]interface{}{logger.FieldBreaker: config.Name}),
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.config.Name }

// Execute runs fn through the breaker. If the circuit is open it returns a
// CIRCUIT_OPEN rejection without invoking fn. Otherwise fn runs under a
// context bounded by CallTimeout; exceeding it cancels the call and records a
// failure, as does any error returned by fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allowRequest() {
		return errors.CircuitOpen(b.config.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		if err != nil && stderrors.Is(err, context.DeadlineExceeded) {
			b.recordResult(err)
			return errors.Timeout(b.config.Name, b.config.CallTimeout)
		}
		b.recordResult(err)
		return err
	case <-callCtx.Done():
		// The context cancels the in-flight call; fn observes callCtx.Done()
		// and unwinds. Counted as a failure either way.
		b.recordResult(callCtx.Err())
		if stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return errors.Timeout(b.config.Name, b.config.CallTimeout)
		}
		return callCtx.Err()
	}
}

// State returns the current state, applying the open -> half-open transition
// if the recovery timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Snapshot returns the breaker's current state for introspection.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:          b.config.Name,
		State:         b.currentState().String(),
		FailureCount:  b.failures,
		LastFailureAt: b.lastFailureAt,
	}
}

// Reset forces the breaker back to closed with a zero failure count. The next
// call is an ordinary closed-state call, not a half-open trial.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.toState(StateClosed)
	b.failures = 0
	b.trialInFlight = false
}

// allowRequest decides whether a call may proceed, claiming the half-open
// trial slot when applicable.
func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	default:
		return false
	}
}

// recordResult applies a call outcome to the state machine.
func (b *Breaker) recordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.trialInFlight = false
		b.failures = 0
		b.toState(StateClosed)
	}
}

func (b *Breaker) onFailure() {
	b.lastFailureAt = time.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.toState(StateOpen)
		}
	case StateHalfOpen:
		// Failed trial: cooldown restarts, failure count stays at or above
		// the threshold.
		b.trialInFlight = false
		b.toState(StateOpen)
	}
}

// currentState applies the open -> half-open transition on read. Callers must
// hold the lock.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && time.Since(b.lastFailureAt) >= b.config.RecoveryTimeout {
		b.toState(StateHalfOpen)
	}
	return b.state
}

// toState transitions to a new state. Callers must hold the lock.
func (b *Breaker) toState(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to

	b.log.Info("circuit breaker state change", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}
