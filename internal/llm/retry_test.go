package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, Jitter: 0}
}

func TestRetryRecoversFromRateLimit(t *testing.T) {
	attempts := 0
	out, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", ClassifyStatusCode(429, "slow down")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 3, attempts)
}

func TestRetryStopsOnFatalError(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		attempts++
		return "", ClassifyStatusCode(500, "boom")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, KindProvider, te.Kind)
}

func TestRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, ClassifyStatusCode(429, "still busy")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, KindRateLimited, te.Kind)
}

func TestRetryHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute, Multiplier: 2}

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
		attempts++
		return "", ClassifyStatusCode(429, "busy")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
