package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff controls retries with exponential delay and jitter.
type Backoff struct {
	// Attempts is the total number of tries, including the first. Default: 3.
	Attempts int

	// Initial is the delay before the first retry. Default: 250ms.
	Initial time.Duration

	// Max caps a single delay. Default: 5s.
	Max time.Duration

	// Multiplier scales the delay after each attempt. Default: 2.
	Multiplier float64

	// Jitter is the ± fraction applied to each delay. Default: 0.2.
	Jitter float64

	// OnRetry runs before each sleep.
	OnRetry func(attempt int, err error)
}

// DefaultBackoff suits per-point analysis calls, which are cheap to repeat.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:   3,
		Initial:    250 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

func (b Backoff) normalized() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 250 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Second
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, returns a non-transient error, runs out
// of attempts, or ctx is done.
func Retry[T any](ctx context.Context, b Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == b.Attempts-1 {
			break
		}

		if b.OnRetry != nil {
			b.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each attempt.
func RetryLogger(service, endpoint string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying request",
			zap.String("service", service),
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
