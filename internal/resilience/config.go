package resilience

import (
	"context"
	"sync"
	"time"
)

// Policy wraps calls in a per-endpoint breaker and a retry loop.
type Policy struct {
	Service string
	Backoff Backoff

	breakerCfg BreakerConfig
	mu         sync.Mutex
	breakers   map[string]*Breaker
}

// NewPolicy builds a Policy from config values; zero values keep defaults.
func NewPolicy(service string, maxAttempts, initialBackoffMs, maxBackoffMs, failureThreshold, resetTimeoutSecs int) *Policy {
	b := DefaultBackoff()
	if maxAttempts > 0 {
		b.Attempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		b.Initial = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		b.Max = time.Duration(maxBackoffMs) * time.Millisecond
	}

	bc := DefaultBreakerConfig()
	if failureThreshold > 0 {
		bc.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		bc.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}

	return &Policy{
		Service:    service,
		Backoff:    b,
		breakerCfg: bc,
		breakers:   make(map[string]*Breaker),
	}
}

// Breaker returns the breaker for endpoint, creating it on first use.
func (p *Policy) Breaker(endpoint string) *Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[endpoint]; ok {
		return b
	}
	b := NewBreaker(endpoint, p.breakerCfg)
	p.breakers[endpoint] = b
	return b
}

// States snapshots every breaker's state.
func (p *Policy) States() map[string]CircuitState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]CircuitState, len(p.breakers))
	for name, b := range p.breakers {
		out[name] = b.State()
	}
	return out
}

// Call runs fn for endpoint with retries, each attempt gated by the endpoint's breaker.
func Call[T any](ctx context.Context, p *Policy, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	b := p.Backoff
	if b.OnRetry == nil {
		b.OnRetry = RetryLogger(p.Service, endpoint)
	}
	breaker := p.Breaker(endpoint)
	return Retry(ctx, b, func(ctx context.Context) (T, error) {
		return Execute(ctx, breaker, fn)
	})
}
