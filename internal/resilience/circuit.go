// Package resilience guards calls to external providers with retries and a
// circuit breaker.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets probe calls through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the provider while the circuit
// is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls when a breaker opens and recovers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	ResetTimeout     time.Duration
	// HalfOpenMaxProbes successful probes close the circuit again.
	HalfOpenMaxProbes int

	// ShouldTrip decides which errors count as failures. Defaults to
	// IsTransient so a rejected query does not take the provider offline.
	ShouldTrip func(err error) bool

	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after 5 failures and probes after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// CircuitBreaker tracks consecutive failures of one provider.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	halfOpenSuccesses   int
	openedAt            time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker. Zero config values take the
// defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = IsTransient
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is Execute for calls that return a value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := cb.admit(); err != nil {
		var zero T
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

// State returns the current state. An open circuit whose timeout elapsed
// reports half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cooledDown() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFailures
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0
	cb.moveTo(CircuitClosed)
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return nil
	}
	if cb.cooledDown() {
		cb.moveTo(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !cb.cfg.ShouldTrip(err) {
		if cb.state == CircuitHalfOpen {
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses < cb.cfg.HalfOpenMaxProbes {
				return
			}
			cb.moveTo(CircuitClosed)
		}
		cb.consecutiveFailures = 0
		cb.halfOpenSuccesses = 0
		return
	}

	cb.consecutiveFailures++
	switch {
	case cb.state == CircuitHalfOpen,
		cb.state == CircuitClosed && cb.consecutiveFailures >= cb.cfg.FailureThreshold:
		cb.openedAt = cb.now()
		cb.halfOpenSuccesses = 0
		cb.moveTo(CircuitOpen)
	}
}

func (cb *CircuitBreaker) moveTo(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
