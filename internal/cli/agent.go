package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/igtm/llm-coder/internal/agent"
	"github.com/igtm/llm-coder/internal/config"
	"github.com/igtm/llm-coder/internal/llm"
	"github.com/igtm/llm-coder/internal/llm/resolve"
	"github.com/igtm/llm-coder/internal/logging"
	"github.com/igtm/llm-coder/internal/tools"
)

// NewAgentCmd wires the primary command: run the coding agent loop on a
// prompt until the task finishes or the budget runs out.
func NewAgentCmd(opts *Options) *cobra.Command {
	var (
		model           string
		temperature     float64
		maxIterations   int
		allowedDirs     []string
		repoDescription string
		outputPath      string
		historyPath     string
		requestTimeout  int
	)

	cmd := &cobra.Command{
		Use:   "agent [prompt]",
		Short: "Run the coding agent on a prompt (stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("model") {
				cfg.Model = model
			}
			if flags.Changed("temperature") {
				cfg.Temperature = temperature
			}
			if flags.Changed("max-iterations") {
				cfg.MaxIterations = maxIterations
			}
			if flags.Changed("allowed-dirs") {
				cfg.AllowedDirs = allowedDirs
			}
			if flags.Changed("repository-description-prompt") {
				cfg.RepositoryDescription = repoDescription
			}
			if flags.Changed("output") {
				cfg.Output = outputPath
			}
			if flags.Changed("conversation-history") {
				cfg.ConversationHistory = historyPath
			}
			if flags.Changed("request-timeout") {
				cfg.RequestTimeout = requestTimeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			prompt, err := resolvePrompt(cmd, args)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			runner, err := buildAgent(cfg, logger)
			if err != nil {
				return err
			}

			res, runErr := runner.Run(cmd.Context(), prompt)

			if cfg.ConversationHistory != "" && len(res.Conversation) > 0 {
				dest := historyFilePath(cfg.ConversationHistory, res.RunID)
				if err := agent.WriteTranscript(dest, res.Conversation); err != nil {
					logger.Warn("failed to write conversation history", zap.Error(err))
				}
			}

			if res.Summary != "" {
				if err := writeResult(cmd, cfg.Output, res.Summary); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "gpt-4.1-nano", "LLM model to use")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0.2, "Sampling temperature")
	cmd.Flags().IntVarP(&maxIterations, "max-iterations", "i", 10, "Maximum execution iterations")
	cmd.Flags().StringSliceVar(&allowedDirs, "allowed-dirs", nil, "Directories the agent may read and write (repeatable or comma-separated)")
	cmd.Flags().StringVar(&repoDescription, "repository-description-prompt", "", "Repository description added to the system prompt")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result text to this file instead of stdout")
	cmd.Flags().StringVar(&historyPath, "conversation-history", "", "Write the conversation transcript to this path (a directory gets a per-run file)")
	cmd.Flags().IntVar(&requestTimeout, "request-timeout", 60, "LLM request timeout in seconds")

	return cmd
}

// buildAgent assembles the guard, executor, checks, tool registry, and
// transport from resolved settings.
func buildAgent(cfg *config.Settings, logger *zap.Logger) (*agent.Agent, error) {
	guard, err := tools.NewGuard(cfg.AllowedDirs)
	if err != nil {
		return nil, err
	}

	executor := &tools.Executor{DefaultTimeout: cfg.CommandTimeoutDuration()}
	checks, err := tools.NewCheckRunner(executor, guard, checkConfig(cfg))
	if err != nil {
		return nil, err
	}
	registry, err := tools.NewRegistry(tools.NewFilesystem(guard), executor, checks, guard, logger)
	if err != nil {
		return nil, err
	}

	provider, wireModel, err := resolve.Provider(cfg.Model, resolve.Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeoutDuration(),
	})
	if err != nil {
		return nil, err
	}

	return agent.New(provider, registry, agent.Options{
		Model:                 wireModel,
		Temperature:           llm.Float64(cfg.Temperature),
		MaxIterations:         cfg.MaxIterations,
		RepositoryDescription: cfg.RepositoryDescription,
		LegacyImplicitFinish:  cfg.LegacyImplicitFinish,
		Retry:                 llm.DefaultRetryPolicy(),
	}, logger), nil
}

// checkConfig converts the settings' command tables into the tools layer's
// shape. Overrides come out in name order so resolution is deterministic.
func checkConfig(cfg *config.Settings) tools.CheckConfig {
	out := tools.CheckConfig{
		LintCommand:   cfg.LintCommand,
		FormatCommand: cfg.FormatCommand,
		TestCommand:   cfg.TestCommand,
		Timeout:       cfg.CommandTimeoutDuration(),
	}

	names := make([]string, 0, len(cfg.Directories))
	for name := range cfg.Directories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := cfg.Directories[name]
		out.Overrides = append(out.Overrides, tools.DirectoryOverride{
			Path:          d.Path,
			LintCommand:   d.LintCommand,
			FormatCommand: d.FormatCommand,
			TestCommand:   d.TestCommand,
		})
	}
	return out
}

// resolvePrompt takes the positional prompt, falling back to stdin.
func resolvePrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt is required (pass it as an argument or on stdin)")
	}
	return prompt, nil
}

// historyFilePath picks the transcript destination. A directory target gets
// a per-run file named by the run ID.
func historyFilePath(path, runID string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, fmt.Sprintf("conversation-%s.json", runID))
	}
	return path
}

// writeResult prints the result text, or writes it to the output file when
// one is configured.
func writeResult(cmd *cobra.Command, path, text string) error {
	if path == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n===== Result =====\n\n%s\n", text)
		return nil
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
