// Package resilience provides the recovery executor and the fault tolerance
// patterns it is built from: circuit breaking, retry with backoff, bulkheads
// and operation middleware.
package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/config"
	"github.com/sskdinesh2-blip/smart-sql-agent-sub000/internal/types"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreaker guards one named operation. Transitions are serialized by
// the breaker's own mutex; the state is mirrored in an atomic so that the
// common CLOSED path never takes the lock.
type CircuitBreaker struct {
	name string

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	state atomic.Int32

	mu              sync.Mutex
	failureCount    int
	successCount    int
	trialInFlight   bool
	lastFailureTime time.Time

	now           func() time.Time
	onStateChange func(name string, from, to State)
}

// stateTransition allows callbacks to be invoked outside the mutex to prevent deadlocks.
type stateTransition struct {
	name     string
	from     State
	to       State
	callback func(name string, from, to State)
}

// NewCircuitBreaker creates a breaker for operation name. The config is
// expected to be validated already; zero values fall back to the defaults.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *CircuitBreaker {
	def := config.DefaultCircuitBreakerConfig()
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
		now:              time.Now,
	}

	if cb.failureThreshold <= 0 {
		cb.failureThreshold = def.FailureThreshold
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = def.SuccessThreshold
	}
	if cb.recoveryTimeout <= 0 {
		cb.recoveryTimeout = def.RecoveryTimeout
	}

	cb.state.Store(int32(StateClosed))
	return cb
}

// Name returns the operation the breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn if the breaker admits it and records the outcome.
// A rejected call returns a *types.CircuitOpenError without running fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := cb.Allow(); err != nil {
		return nil, err
	}

	result, err := fn(ctx)
	if err != nil {
		cb.RecordFailure()
		return nil, err
	}
	cb.RecordSuccess()
	return result, nil
}

// Allow reports whether a call may proceed. OPEN rejects until the recovery
// timeout has passed since the last failure, then moves to HALF_OPEN and
// admits a single trial. HALF_OPEN admits one trial at a time.
func (cb *CircuitBreaker) Allow() error {
	if State(cb.state.Load()) == StateClosed {
		return nil
	}

	var transition *stateTransition

	cb.mu.Lock()
	var err error
	switch State(cb.state.Load()) {
	case StateClosed:
	case StateOpen:
		elapsed := cb.now().Sub(cb.lastFailureTime)
		if elapsed >= cb.recoveryTimeout {
			transition = cb.transitionTo(StateHalfOpen)
			cb.trialInFlight = true
		} else {
			err = &types.CircuitOpenError{Operation: cb.name, RetryAfter: cb.recoveryTimeout - elapsed}
		}
	case StateHalfOpen:
		if cb.trialInFlight {
			err = &types.CircuitOpenError{Operation: cb.name}
		} else {
			cb.trialInFlight = true
		}
	}
	cb.mu.Unlock()

	transition.invoke()
	return err
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	var transition *stateTransition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.failureCount = 0

	case StateHalfOpen:
		cb.trialInFlight = false
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			transition = cb.transitionTo(StateClosed)
		}
	}
	cb.mu.Unlock()

	transition.invoke()
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	var transition *stateTransition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if cb.failureCount >= cb.failureThreshold {
			transition = cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		cb.trialInFlight = false
		cb.lastFailureTime = cb.now()
		transition = cb.transitionTo(StateOpen)
	}
	cb.mu.Unlock()

	transition.invoke()
}

// transitionTo changes the state. Must be called while holding the mutex;
// the returned transition must be invoked after releasing it.
func (cb *CircuitBreaker) transitionTo(newState State) *stateTransition {
	oldState := State(cb.state.Load())
	if oldState == newState {
		return nil
	}

	switch newState {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
		cb.trialInFlight = false

	case StateOpen:
		cb.successCount = 0

	case StateHalfOpen:
		cb.successCount = 0
		cb.trialInFlight = false
	}

	cb.state.Store(int32(newState))

	if cb.onStateChange != nil {
		return &stateTransition{
			name:     cb.name,
			from:     oldState,
			to:       newState,
			callback: cb.onStateChange,
		}
	}
	return nil
}

func (t *stateTransition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.name, t.from, t.to)
	}
}

// State returns the current state. An OPEN breaker whose recovery timeout
// has passed still reports OPEN until the next call moves it.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// SetOnStateChange sets a callback for state changes. The callback runs
// after the mutex is released and may read the breaker.
func (cb *CircuitBreaker) SetOnStateChange(fn func(name string, from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset forces the breaker back to CLOSED.
func (cb *CircuitBreaker) Reset() {
	var transition *stateTransition

	cb.mu.Lock()
	transition = cb.transitionTo(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.trialInFlight = false
	cb.lastFailureTime = time.Time{}
	cb.mu.Unlock()

	transition.invoke()
}

// Snapshot returns the breaker's counters and configuration.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerSnapshot{
		State:            cb.State(),
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		FailureThreshold: cb.failureThreshold,
		SuccessThreshold: cb.successThreshold,
		RecoveryTimeout:  cb.recoveryTimeout,
		LastFailureTime:  cb.lastFailureTime,
	}
}

// BreakerSnapshot is a point-in-time copy of a breaker.
//
//nolint:govet // Report struct - field order matches the health report
type BreakerSnapshot struct {
	State            State         `json:"state"`
	FailureCount     int           `json:"failureCount"`
	SuccessCount     int           `json:"successCount"`
	FailureThreshold int           `json:"failureThreshold"`
	SuccessThreshold int           `json:"successThreshold"`
	RecoveryTimeout  time.Duration `json:"recoveryTimeout"`
	LastFailureTime  time.Time     `json:"lastFailureTime"`
}
