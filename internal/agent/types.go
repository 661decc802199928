package agent

import (
	"errors"

	"github.com/igtm/llm-coder/internal/llm"
)

// TerminationReason says how a run ended.
type TerminationReason string

const (
	// ReasonFinished means the model declared the task complete.
	ReasonFinished TerminationReason = "finished"
	// ReasonMaxIterations means the iteration budget ran out first.
	ReasonMaxIterations TerminationReason = "max-iterations"
	// ReasonTransport means a non-retryable transport failure aborted the run.
	ReasonTransport TerminationReason = "transport-error"
)

// ErrMaxIterations is returned by Run when the iteration budget is exhausted
// before the model declares the task complete.
var ErrMaxIterations = errors.New("maximum iterations reached")

// Options configure one agent run.
type Options struct {
	// Model is the wire-level model name, already resolved for the provider.
	Model string
	// Temperature is passed through to every chat call when set.
	Temperature *float64
	// MaxIterations bounds the execution loop. Values < 1 fall back to 10.
	MaxIterations int
	// RepositoryDescription is appended to the system prompt when set.
	RepositoryDescription string
	// LegacyImplicitFinish re-enables the old content-based completion
	// heuristic alongside the finish tool.
	LegacyImplicitFinish bool
	// Retry bounds transport retries. The zero value disables them.
	Retry llm.RetryPolicy
}

// RunResult is the outcome of one agent run. Conversation holds every turn
// in order, including tool results and check feedback, and is suitable for
// transcript serialization.
type RunResult struct {
	RunID        string
	Reason       TerminationReason
	Summary      string
	Iterations   int
	Conversation []llm.ChatMessage
	Usage        llm.Usage
}
