package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
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

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Threshold  int           // consecutive provider failures before tripping
	ResetAfter time.Duration // time open before a single trial call is allowed
}

// DefaultCircuitBreakerConfig trips after 5 failures and allows a trial call after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, ResetAfter: 30 * time.Second}
}

// CircuitBreaker wraps a TextGenerator and fails fast while the provider is down.
// Only retryable provider errors count toward tripping; a bad prompt never opens the circuit.
type CircuitBreaker struct {
	next       TextGenerator
	threshold  int
	resetAfter time.Duration
	now        func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// NewCircuitBreaker wraps next with a circuit breaker.
func NewCircuitBreaker(next TextGenerator, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Threshold < 1 {
		cfg.Threshold = 5
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = 30 * time.Second
	}
	return &CircuitBreaker{
		next:       next,
		threshold:  cfg.Threshold,
		resetAfter: cfg.ResetAfter,
		now:        time.Now,
	}
}

var _ TextGenerator = (*CircuitBreaker)(nil)

// Provider implements TextGenerator.
func (cb *CircuitBreaker) Provider() string {
	return cb.next.Provider()
}

// Generate implements TextGenerator.
func (cb *CircuitBreaker) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := cb.allow(); err != nil {
		return nil, err
	}

	resp, err := cb.next.Generate(ctx, req)
	switch {
	case err == nil:
		cb.recordSuccess()
	case IsRetryable(err):
		cb.recordFailure()
	default:
		// The provider answered; release a half-open trial.
		cb.recordSuccess()
	}
	return resp, err
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetAfter {
			return NewError(ErrorTypeEndpoint,
				fmt.Sprintf("circuit open after %d consecutive failures", cb.failures), true, nil)
		}
		cb.state = CircuitHalfOpen
		return nil
	case CircuitHalfOpen:
		return NewError(ErrorTypeEndpoint, "circuit half-open, trial call in flight", true, nil)
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state = CircuitOpen
	}
}
