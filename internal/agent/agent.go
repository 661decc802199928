package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/igtm/llm-coder/internal/llm"
	"github.com/igtm/llm-coder/internal/tools"
)

// Agent drives the iteration loop: send the conversation to the model,
// execute the tool calls it makes, feed results and check output back, and
// stop on finish, budget exhaustion, or a fatal transport failure.
type Agent struct {
	provider llm.Provider
	registry *tools.Registry
	opts     Options
	logger   *zap.Logger
	defs     []llm.ToolDefinition
}

// New creates an Agent. A nil logger is replaced with a no-op one.
func New(provider llm.Provider, registry *tools.Registry, opts Options, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		provider: provider,
		registry: registry,
		opts:     opts,
		logger:   logger,
		defs:     registry.Definitions(),
	}
}

// Run executes the task described by prompt until the model finishes, the
// iteration budget runs out, or transport fails fatally. The returned result
// carries the conversation so far even when err is non-nil, so callers can
// still write transcripts for aborted runs.
func (a *Agent) Run(ctx context.Context, prompt string) (RunResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return RunResult{}, fmt.Errorf("prompt is required")
	}

	st := &state{
		runID:  uuid.NewString(),
		status: tools.NewCheckStatus(),
	}
	logger := a.logger.With(zap.String("run_id", st.runID))
	logger.Info("starting agent run",
		zap.String("model", a.opts.Model),
		zap.Int("max_iterations", a.maxIterations()),
		zap.Int("prompt_length", len(prompt)),
		zap.Int("tool_count", len(a.defs)),
	)

	st.append(llm.ChatMessage{Role: llm.RoleSystem, Content: buildSystemPrompt(a.opts.RepositoryDescription)})
	st.append(llm.ChatMessage{Role: llm.RoleUser, Content: prompt})

	// Planning: the first call lets the model outline its approach or go
	// straight to tools.
	resp, err := a.chat(ctx, st, true, logger)
	if err != nil {
		logger.Error("planning call failed", zap.Error(err))
		return a.result(logger, st, ReasonTransport, "", 0), err
	}
	st.append(resp.Message)

	for i := 1; i <= a.maxIterations(); i++ {
		logger.Debug("execution iteration",
			zap.Int("iteration", i),
			zap.Int("max_iterations", a.maxIterations()),
		)

		outcome, summary, err := a.executionPhase(ctx, st, logger)
		if err != nil {
			logger.Error("execution iteration failed", zap.Int("iteration", i), zap.Error(err))
			return a.result(logger, st, ReasonTransport, "", i), err
		}

		switch outcome {
		case turnFinished:
			logger.Info("task completed", zap.Int("iterations", i))
			return a.result(logger, st, ReasonFinished, summary, i), nil
		case turnImplicitFinish:
			logger.Info("task confirmed complete", zap.Int("iterations", i))
			summary, err := a.finalSummary(ctx, st, logger)
			if err != nil {
				return a.result(logger, st, ReasonTransport, "", i), err
			}
			return a.result(logger, st, ReasonFinished, summary, i), nil
		}
	}

	logger.Warn("maximum iterations reached", zap.Int("max_iterations", a.maxIterations()))
	return a.result(logger, st, ReasonMaxIterations, maxIterationsMessage, a.maxIterations()), ErrMaxIterations
}

// turnOutcome is the verdict of one execution iteration.
type turnOutcome int

const (
	turnContinue turnOutcome = iota
	turnFinished
	turnImplicitFinish
)

// executionPhase processes the latest assistant turn. A turn with tool calls
// is executed and followed by one chat call for the next action; a turn
// without tool calls gets a single completion nudge instead.
func (a *Agent) executionPhase(ctx context.Context, st *state, logger *zap.Logger) (turnOutcome, string, error) {
	last, ok := st.lastAssistant()
	if !ok {
		logger.Warn("no assistant turn to execute")
		return turnContinue, "", nil
	}

	if len(last.ToolCalls) == 0 {
		logger.Debug("no tool calls in assistant turn, probing for completion")
		st.append(llm.ChatMessage{Role: llm.RoleUser, Content: completionNudge})

		resp, err := a.chat(ctx, st, true, logger)
		if err != nil {
			return turnContinue, "", err
		}
		st.append(resp.Message)

		if a.implicitlyComplete(st, resp.Message) {
			return turnImplicitFinish, "", nil
		}
		return turnContinue, "", nil
	}

	finished, summary := a.runToolCalls(ctx, st, last.ToolCalls, logger)
	if finished {
		return turnFinished, summary, nil
	}

	resp, err := a.chat(ctx, st, true, logger)
	if err != nil {
		return turnContinue, "", err
	}
	st.append(resp.Message)

	if a.implicitlyComplete(st, resp.Message) {
		return turnImplicitFinish, "", nil
	}
	return turnContinue, "", nil
}

// runToolCalls executes one batch strictly in order, appending a tool turn
// per call. After a batch that touched files, the configured checks run once
// and their report is fed back to the model.
func (a *Agent) runToolCalls(ctx context.Context, st *state, calls []llm.ToolCall, logger *zap.Logger) (bool, string) {
	logger.Debug("processing tool calls", zap.Int("tool_call_count", len(calls)))

	var (
		finished bool
		summary  string
		mutated  bool
		touched  []string
	)
	for _, call := range calls {
		res := a.registry.Dispatch(ctx, call)
		st.append(llm.ChatMessage{
			Role:       llm.RoleTool,
			Content:    res.Output,
			ToolCallID: res.CallID,
			Name:       res.Name,
		})

		if res.Mutated {
			mutated = true
			touched = append(touched, res.Paths...)
		}
		for _, oc := range res.Checks {
			st.status.Record(oc.CheckCommand, oc.Passed)
		}
		if res.Finished {
			finished = true
			summary = res.Summary
		}
	}

	if mutated && !finished {
		a.runChecks(ctx, st, touched, logger)
	}
	return finished, summary
}

// runChecks resolves the checks covering the touched paths, runs them, and
// reports their output back to the model. The report goes in as a user turn
// since tool turns must answer a specific tool call.
func (a *Agent) runChecks(ctx context.Context, st *state, touched []string, logger *zap.Logger) {
	checks := a.registry.Checks()
	if checks == nil {
		return
	}
	cmds := checks.Resolve(touched)
	if len(cmds) == 0 {
		return
	}

	outcomes := checks.RunAll(ctx, cmds)
	for _, oc := range outcomes {
		st.status.Record(oc.CheckCommand, oc.Passed)
		logger.Info("check finished",
			zap.String("kind", string(oc.Kind)),
			zap.String("working_dir", oc.WorkingDir),
			zap.Bool("passed", oc.Passed),
		)
	}

	st.append(llm.ChatMessage{
		Role:    llm.RoleUser,
		Content: "Automatic checks ran after your changes:\n\n" + tools.FormatCheckOutcomes(outcomes),
	})
}

// implicitlyComplete applies the legacy completion heuristic: the turn made
// no tool calls, every recorded check passes, and the content claims success.
func (a *Agent) implicitlyComplete(st *state, msg llm.ChatMessage) bool {
	if !a.opts.LegacyImplicitFinish {
		return false
	}
	if len(msg.ToolCalls) > 0 {
		return false
	}
	if !st.status.AllPassing() {
		return false
	}
	return containsCompletionMarker(msg.Content)
}

// finalSummary asks the model for a closing report, without tools.
func (a *Agent) finalSummary(ctx context.Context, st *state, logger *zap.Logger) (string, error) {
	st.append(llm.ChatMessage{Role: llm.RoleUser, Content: finalSummaryPrompt})

	resp, err := a.chat(ctx, st, false, logger)
	if err != nil {
		return "", err
	}
	st.append(resp.Message)

	summary := strings.TrimSpace(resp.Message.Content)
	if summary == "" {
		summary = noSummaryMessage
	}
	return summary, nil
}

// chat sends the conversation, retrying transient transport failures per the
// configured policy, and accumulates token usage.
func (a *Agent) chat(ctx context.Context, st *state, withTools bool, logger *zap.Logger) (llm.ChatResponse, error) {
	req := llm.ChatRequest{
		Model:       a.opts.Model,
		Messages:    st.conversation,
		Temperature: a.opts.Temperature,
	}
	if withTools {
		req.Tools = a.defs
	}

	attempt := 0
	resp, err := llm.Retry(ctx, a.opts.Retry, func(ctx context.Context) (llm.ChatResponse, error) {
		attempt++
		if attempt > 1 {
			logger.Warn("retrying chat request", zap.Int("attempt", attempt))
		}
		return a.provider.Chat(ctx, req)
	})
	if err != nil {
		return llm.ChatResponse{}, err
	}

	st.usage.PromptTokens += resp.Usage.PromptTokens
	st.usage.CompletionTokens += resp.Usage.CompletionTokens
	st.usage.TotalTokens += resp.Usage.TotalTokens
	return resp, nil
}

func (a *Agent) result(logger *zap.Logger, st *state, reason TerminationReason, summary string, iterations int) RunResult {
	logger.Info("agent run finished",
		zap.String("reason", string(reason)),
		zap.Int("iterations", iterations),
		zap.Int("total_tokens", st.usage.TotalTokens),
	)
	return RunResult{
		RunID:        st.runID,
		Reason:       reason,
		Summary:      summary,
		Iterations:   iterations,
		Conversation: st.conversation,
		Usage:        st.usage,
	}
}

func (a *Agent) maxIterations() int {
	if a.opts.MaxIterations > 0 {
		return a.opts.MaxIterations
	}
	return 10
}

// state is the per-run mutable context: the append-only conversation, the
// last-known check status, and usage totals.
type state struct {
	runID        string
	conversation []llm.ChatMessage
	status       *tools.CheckStatus
	usage        llm.Usage
}

func (s *state) append(msg llm.ChatMessage) {
	s.conversation = append(s.conversation, msg)
}

func (s *state) lastAssistant() (llm.ChatMessage, bool) {
	for i := len(s.conversation) - 1; i >= 0; i-- {
		if s.conversation[i].Role == llm.RoleAssistant {
			return s.conversation[i], true
		}
	}
	return llm.ChatMessage{}, false
}
