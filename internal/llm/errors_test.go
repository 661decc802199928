package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyStatusCode(t *testing.T) {
	cases := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{408, KindTimeout, true},
		{429, KindRateLimited, true},
		{400, KindProvider, false},
		{500, KindProvider, false},
		{503, KindProvider, false},
	}

	for _, tc := range cases {
		te := ClassifyStatusCode(tc.status, "boom")
		require.Equal(t, tc.kind, te.Kind, "status %d", tc.status)
		require.Equal(t, tc.retryable, te.Retryable(), "status %d", tc.status)
		require.Equal(t, tc.status, te.StatusCode)
	}
}

func TestClassifyErrorDeadline(t *testing.T) {
	te := ClassifyError(fmt.Errorf("call: %w", context.DeadlineExceeded))
	require.Equal(t, KindTimeout, te.Kind)
	require.True(t, te.Retryable())
}

func TestClassifyErrorUnknown(t *testing.T) {
	te := ClassifyError(errors.New("connection reset"))
	require.Equal(t, KindUnknown, te.Kind)
	require.False(t, te.Retryable())
}

func TestClassifyErrorPassesThroughTransportError(t *testing.T) {
	orig := &TransportError{Kind: KindRateLimited, StatusCode: 429}
	te := ClassifyError(fmt.Errorf("wrapped: %w", orig))
	require.Same(t, orig, te)
}

func TestTransportErrorMessage(t *testing.T) {
	te := &TransportError{Kind: KindRateLimited, StatusCode: 429, Message: "slow down"}
	require.Contains(t, te.Error(), "rate_limited")
	require.Contains(t, te.Error(), "429")
	require.Contains(t, te.Error(), "slow down")
}
