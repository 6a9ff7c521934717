// Package resilience holds the failure-handling primitives shared by the
// services: a circuit breaker for optional dependencies, retry with jittered
// exponential backoff, and a deadline wrapper for CPU-bound calls.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the protected function while
// the breaker is open or its half-open probes are used up.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
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
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a breaker. Zero fields take the defaults: trip
// after 5 consecutive failures, cool down for 30s, allow 1 half-open probe.
// OnStateChange runs with the breaker locked and must not call back into it.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	OnStateChange       func(name string, to State)
}

// Counts is a snapshot of the breaker's bookkeeping for the current state.
type Counts struct {
	Requests             int
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

// CircuitBreaker fails fast once a dependency has failed FailureThreshold
// times in a row. After ResetTimeout it lets probe requests through; one
// success closes it and one failure reopens it. Outcomes of calls admitted
// before the last state change are ignored.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	openedAt   time.Time
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
	}
}

// Execute calls fn when the breaker admits it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	gen, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(gen, err == nil)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears its counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.logger.Info("circuit reset")
}

// refresh moves an open breaker whose cool-down has elapsed to half-open.
func (cb *CircuitBreaker) refresh() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.transition(StateHalfOpen)
		cb.logger.Info("circuit half-open, probing")
	}
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		return 0, fmt.Errorf("%w: %s, retry in %v", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
	case StateHalfOpen:
		if cb.counts.Requests >= cb.cfg.HalfOpenMaxRequests {
			return 0, fmt.Errorf("%w: %s, probe in flight", ErrCircuitOpen, cb.name)
		}
	}
	cb.counts.Requests++
	return cb.generation, nil
}

func (cb *CircuitBreaker) record(gen uint64, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if gen != cb.generation {
		return
	}
	if ok {
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
			cb.logger.Info("circuit closed, dependency recovered")
		}
		return
	}
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch {
	case cb.state == StateHalfOpen:
		cb.transition(StateOpen)
		cb.logger.Warn("circuit reopened, probe failed")
	case cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold:
		failures := cb.counts.ConsecutiveFailures
		cb.transition(StateOpen)
		cb.logger.Warn("circuit opened", "consecutive_failures", failures)
	}
}

// transition starts a new generation in state to. Re-entering the current
// state only clears the counts.
func (cb *CircuitBreaker) transition(to State) {
	cb.generation++
	cb.counts = Counts{}
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.state == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, to)
	}
}
