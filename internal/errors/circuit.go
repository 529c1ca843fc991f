package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the position of a CircuitBreaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
)

// CircuitBreaker stops calling a provider after a run of consecutive
// failures. Once the cool-down has passed it admits one probe call; the
// probe's outcome closes or reopens the circuit.
type CircuitBreaker struct {
	name      string
	threshold int
	coolDown  time.Duration
	onChange  func(name string, from, to State)
	clock     func() time.Time

	mu       sync.Mutex
	tripped  bool
	openedAt time.Time
	streak   int
	inFlight bool
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the failure streak that trips the breaker.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.threshold = n
		}
	}
}

// WithResetTimeout sets how long a tripped breaker waits before probing.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.coolDown = d
		}
	}
}

// WithStateChange registers fn for state transitions. It is called
// outside the breaker's lock.
func WithStateChange(fn func(name string, from, to State)) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

func withClock(clock func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.clock = clock }
}

// NewCircuitBreaker returns a closed breaker that trips after 5 failures
// and probes again after 30s unless overridden.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		threshold: defaultMaxFailures,
		coolDown:  defaultResetTimeout,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	switch {
	case !cb.tripped:
		return StateClosed
	case cb.clock().Sub(cb.openedAt) > cb.coolDown:
		return StateHalfOpen
	default:
		return StateOpen
	}
}

// Failures is the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.streak
}

// Allow reports whether a call may go ahead. A half-open breaker admits a
// single caller until that caller reports an outcome.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	st := cb.stateLocked()
	if st == StateClosed {
		return true
	}
	if st == StateHalfOpen && !cb.inFlight {
		cb.inFlight = true
		return true
	}
	return false
}

// RecordSuccess closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.transition(func() {
		cb.tripped = false
		cb.streak = 0
	})
}

// RecordFailure extends the failure streak. The breaker trips when the
// streak reaches the threshold, or at once when a probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.transition(func() {
		probe := cb.stateLocked() == StateHalfOpen
		cb.streak++
		if probe || cb.streak >= cb.threshold {
			cb.tripped = true
			cb.openedAt = cb.clock()
		}
	})
}

// Abandon releases an admitted call that produced no verdict, for example
// one cancelled by its caller.
func (cb *CircuitBreaker) Abandon() {
	cb.mu.Lock()
	cb.inFlight = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) transition(apply func()) {
	cb.mu.Lock()
	from := cb.stateLocked()
	apply()
	cb.inFlight = false
	to := cb.stateLocked()
	cb.mu.Unlock()

	if cb.onChange != nil && from != to {
		cb.onChange(cb.name, from, to)
	}
}

// Execute calls fn unless the breaker is open, and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := CircuitExecute(cb, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// CircuitExecute is Execute for functions that return a value.
func CircuitExecute[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	if !cb.Allow() {
		var zero T
		return zero, ErrCircuitOpen
	}
	v, err := fn()
	if err != nil {
		cb.RecordFailure()
		return v, err
	}
	cb.RecordSuccess()
	return v, nil
}
