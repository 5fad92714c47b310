package vdberrors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a breaker rejects a call outright
// because it is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a CircuitBreaker's lifecycle stage.
type State int

const (
	// StateClosed lets every call through and counts failures.
	StateClosed State = iota
	// StateOpen rejects every call until resetTimeout elapses.
	StateOpen
	// StateHalfOpen lets a single probe call through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after a run of consecutive failures so a caller
// fails fast against a downed dependency instead of piling up retries
// against it. It is the fail-fast counterpart to Retry: Retry assumes
// the next call might succeed, CircuitBreaker assumes it won't and
// stops trying for a while.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.RWMutex
	state       State
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption configures a CircuitBreaker at construction.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the number of consecutive failures that trips
// the breaker.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.maxFailures = n }
}

// WithResetTimeout sets how long an open breaker waits before letting
// a probe call through.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.resetTimeout = d }
}

// NewCircuitBreaker creates a breaker identified by name, defaulting
// to 5 failures and a 30 second reset timeout.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the breaker's identifier, for logging.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// State reports the breaker's current stage, promoting an open
// breaker past its reset timeout to half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.observedState()
}

// observedState is State() without the lock; callers must hold at
// least a read lock.
func (cb *CircuitBreaker) observedState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Allow reports whether a call may proceed: true when closed or
// half-open (where it becomes the probe), false when open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.observedState() != StateOpen
}

// RecordSuccess closes the breaker and zeroes its failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure counts a failure, tripping the breaker open once
// maxFailures is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// Execute runs fn through the breaker: it fails fast with
// ErrCircuitOpen while open, lets exactly one probe call through while
// half-open, and reopens the breaker if that probe fails.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	state := cb.observedState()
	if state == StateOpen {
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	probing := state == StateHalfOpen
	if probing {
		// Restart the open period so concurrent callers see the breaker
		// as open while this probe is in flight.
		cb.lastFailure = time.Now()
	}
	cb.mu.Unlock()

	err := fn()
	switch {
	case err != nil && probing:
		cb.mu.Lock()
		cb.state = StateOpen
		cb.lastFailure = time.Now()
		cb.mu.Unlock()
		return err
	case err != nil:
		cb.RecordFailure()
		return err
	default:
		cb.RecordSuccess()
		return nil
	}
}

// ExecuteWithResult is CircuitExecuteWithResult specialized to string
// results, kept for callers that predate the generic form.
func (cb *CircuitBreaker) ExecuteWithResult(fn func() (string, error), fallback func() (string, error)) (string, error) {
	return CircuitExecuteWithResult(cb, fn, fallback)
}

// CircuitExecuteWithResult runs fn through cb, calling fallback instead
// whenever cb is open, and reopening cb if a half-open probe call
// fails. Unlike Execute, a failed probe's fallback result is returned
// rather than its error, since most callers of a typed result want a
// usable value over a propagated error.
func CircuitExecuteWithResult[T any](cb *CircuitBreaker, fn func() (T, error), fallback func() (T, error)) (T, error) {
	cb.mu.Lock()
	state := cb.observedState()
	if state == StateOpen {
		cb.mu.Unlock()
		return fallback()
	}
	probing := state == StateHalfOpen
	if probing {
		// Restart the open period so concurrent callers see the breaker
		// as open while this probe is in flight.
		cb.lastFailure = time.Now()
	}
	cb.mu.Unlock()

	result, err := fn()
	if err != nil {
		if probing {
			cb.mu.Lock()
			cb.state = StateOpen
			cb.lastFailure = time.Now()
			cb.mu.Unlock()
			return fallback()
		}
		cb.RecordFailure()
		return result, err
	}

	cb.RecordSuccess()
	return result, nil
}
