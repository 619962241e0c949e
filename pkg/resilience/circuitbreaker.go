// Package resilience guards DocPulse's optional dependencies. The search
// cache sits behind a CircuitBreaker, event publishing goes through Retry,
// and search execution is bounded by WithTimeout.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned instead of calling a dependency the breaker has
// given up on.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a breaker phase. The numeric values are exported as the
// circuit_breaker_state gauge.
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

// CircuitBreakerConfig tunes a breaker. Zero fields fall back to five
// consecutive failures, a 30s cool-down and a single half-open probe.
// OnStateChange runs under the breaker's lock and must not call back into it.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	OnStateChange       func(name string, to State)
}

// CircuitBreaker stops calling a dependency after FailureThreshold failures
// in a row. Once ResetTimeout has passed it lets a limited number of probes
// through; one success closes it again, one failure re-opens it.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig
	log  *slog.Logger
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openUntil time.Time
	inFlight  int
}

// NewCircuitBreaker returns a closed breaker.
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
		name: name,
		cfg:  cfg,
		log:  slog.Default().With("component", "circuit-breaker", "name", name),
		now:  time.Now,
	}
}

// Execute calls fn unless the breaker is open. Any non-nil error from fn
// counts as a failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err == nil)
	return err
}

// GetState returns the current phase.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the label the breaker reports under.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Reset closes the breaker and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(StateClosed)
	cb.log.Info("circuit reset")
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		wait := cb.openUntil.Sub(cb.now())
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.moveTo(StateHalfOpen)
		cb.log.Info("circuit half-open, probing")
	}
	if cb.state == StateHalfOpen {
		if cb.inFlight >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (probe in progress)", ErrCircuitOpen, cb.name)
		}
		cb.inFlight++
	}
	return nil
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case ok && cb.state == StateHalfOpen:
		cb.moveTo(StateClosed)
		cb.log.Info("circuit closed, dependency recovered")
	case ok:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		cb.trip()
		cb.log.Warn("probe failed, circuit re-opened", "cool_down", cb.cfg.ResetTimeout)
	default:
		cb.failures++
		if n := cb.failures; cb.state == StateClosed && n >= cb.cfg.FailureThreshold {
			cb.trip()
			cb.log.Warn("circuit opened", "failures", n, "cool_down", cb.cfg.ResetTimeout)
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openUntil = cb.now().Add(cb.cfg.ResetTimeout)
	cb.moveTo(StateOpen)
}

// moveTo switches phase and clears the per-phase counters.
func (cb *CircuitBreaker) moveTo(to State) {
	cb.failures = 0
	cb.inFlight = 0
	if cb.state == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, to)
	}
}
