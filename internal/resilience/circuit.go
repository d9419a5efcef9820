// Package resilience provides retry and circuit breaking for calls to the analysis backend.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets a probe request through.
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

// ErrCircuitOpen is returned when a call is rejected by an open breaker.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultBreakerConfig opens after 5 consecutive failures for 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

// Breaker is a circuit breaker for one backend endpoint.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// State returns the current state, reporting half-open once the reset timeout has passed.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != CircuitOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		b.transition(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

// record counts only transient failures. A 4xx says nothing about backend health.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !IsTransient(err) {
		b.failures = 0
		if b.state == CircuitHalfOpen {
			b.transition(CircuitClosed)
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == CircuitHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.transition(CircuitOpen)
	}
}

func (b *Breaker) transition(to CircuitState) {
	if b.state == to {
		return
	}
	zap.L().Info("circuit state change",
		zap.String("endpoint", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}

// Execute runs fn through the breaker.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, eris.Wrapf(err, "resilience: %s", b.name)
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}
