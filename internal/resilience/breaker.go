// Package resilience provides reliability patterns for agent and external service calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the circuit breaker state.
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
		return "half_open"
	}
	return "unknown"
}

// BreakerConfig holds the thresholds of a Breaker.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

// DefaultBreakerConfig returns 5 failures to open, 3 successes to close and a 60s recovery timeout.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, SuccessThreshold: 3, RecoveryTimeout: 60 * time.Second}
}

// Breaker implements a circuit breaker for protecting calls to one dependency.
// Closed opens after FailureThreshold consecutive failures. Open rejects calls
// until RecoveryTimeout has elapsed since the last failure, then lets calls
// through as HalfOpen. HalfOpen closes after SuccessThreshold consecutive
// successes and reopens on any failure.
type Breaker struct {
	mu                   sync.Mutex
	cfg                  BreakerConfig
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailure          time.Time
	now                  func() time.Time // for testing
}

// NewBreaker creates a closed circuit breaker. Non-positive thresholds fall back to the defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// CanExecute reports whether a call may proceed. An open breaker whose
// recovery timeout has elapsed flips to half-open and allows the call.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.state = StateHalfOpen
			b.consecutiveSuccesses = 0
			return true
		}
	}
	return false
}

// RecordSuccess registers a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.consecutiveSuccesses++
	if b.state == StateHalfOpen && b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
		b.state = StateClosed
		b.consecutiveSuccesses = 0
	}
}

// RecordFailure registers a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveSuccesses = 0
	b.consecutiveFailures++
	b.lastFailure = b.now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the current state without triggering the open→half-open check.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn if the breaker allows it and records the outcome.
// Returns ErrCircuitOpen without calling fn when the breaker rejects the call.
func (b *Breaker) Execute(fn func() error) error {
	if !b.CanExecute() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
