package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	// KindTimeout covers request timeouts and deadline expiry. Retryable.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimited covers HTTP 429 responses. Retryable.
	KindRateLimited ErrorKind = "rate_limited"
	// KindProvider covers definitive backend failures (4xx/5xx). Fatal.
	KindProvider ErrorKind = "provider"
	// KindUnknown covers everything else. Fatal.
	KindUnknown ErrorKind = "unknown"
)

// TransportError is the classified failure of a single transport call.
type TransportError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("llm: ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether a retry may succeed for this failure class.
func (e *TransportError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindRateLimited
}

// ClassifyStatusCode maps an HTTP error status to a TransportError.
func ClassifyStatusCode(status int, body string) *TransportError {
	kind := KindProvider
	switch {
	case status == 408:
		kind = KindTimeout
	case status == 429:
		kind = KindRateLimited
	}
	return &TransportError{Kind: kind, StatusCode: status, Message: strings.TrimSpace(body)}
}

// ClassifyError wraps a non-HTTP failure (dial, deadline, decode) as a
// TransportError. Existing TransportErrors pass through unchanged.
func ClassifyError(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	return &TransportError{Kind: KindUnknown, Err: err}
}
