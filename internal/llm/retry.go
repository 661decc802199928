package llm

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry behaviour for transient transport failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Multiplier scales the delay after each attempt.
	Multiplier float64
	// Jitter is the fraction of the delay randomized in both directions.
	Jitter float64
}

// DefaultRetryPolicy is 3 attempts total, starting at 1s and doubling,
// with ±10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		Jitter:      0.1,
	}
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is exhausted. Errors are classified into TransportError on
// the way out; only timeout and rate-limit failures are retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 1
	}

	delay := policy.BaseDelay
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		te := ClassifyError(err)
		if !te.Retryable() || attempt >= policy.MaxAttempts {
			return zero, te
		}

		select {
		case <-ctx.Done():
			return zero, ClassifyError(ctx.Err())
		case <-time.After(jittered(delay, policy.Jitter)):
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
	}
}

func jittered(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * frac
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}
