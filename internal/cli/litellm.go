package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/igtm/llm-coder/internal/llm"
	"github.com/igtm/llm-coder/internal/llm/resolve"
)

// NewLitellmCmd wires a single-shot completion command. It sends one prompt
// straight to the model with litellm-style parameter names and prints the
// completion, with no tools and no iteration loop.
func NewLitellmCmd(opts *Options) *cobra.Command {
	var (
		model            string
		temperature      float64
		maxTokens        int
		topP             float64
		n                int
		stream           bool
		stop             []string
		presencePenalty  float64
		frequencyPenalty float64
		user             string
		seed             int
		timeout          int
		responseFormat   string
		outputPath       string
		extraJSON        string
	)

	cmd := &cobra.Command{
		Use:   "litellm [prompt]",
		Short: "Send a single completion request without the agent loop",
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
			if flags.Changed("timeout") {
				cfg.RequestTimeout = timeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			prompt, err := resolvePrompt(cmd, args)
			if err != nil {
				return err
			}

			provider, wireModel, err := resolve.Provider(cfg.Model, resolve.Options{
				BaseURL: cfg.BaseURL,
				APIKey:  cfg.APIKey,
				Timeout: cfg.RequestTimeoutDuration(),
			})
			if err != nil {
				return err
			}

			req := llm.ChatRequest{
				Model:    wireModel,
				Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}},
			}
			if flags.Changed("temperature") {
				req.Temperature = llm.Float64(temperature)
			}
			if flags.Changed("max_tokens") {
				req.MaxTokens = maxTokens
			}
			if flags.Changed("top_p") {
				req.TopP = llm.Float64(topP)
			}
			if flags.Changed("n") {
				req.N = llm.Int(n)
			}
			if flags.Changed("stop") {
				req.Stop = stop
			}
			if flags.Changed("presence_penalty") {
				req.PresencePenalty = llm.Float64(presencePenalty)
			}
			if flags.Changed("frequency_penalty") {
				req.FrequencyPenalty = llm.Float64(frequencyPenalty)
			}
			if flags.Changed("user") {
				req.User = user
			}
			if flags.Changed("seed") {
				req.Seed = llm.Int(seed)
			}
			if flags.Changed("response_format") {
				req.ResponseFormat = &llm.ResponseFormat{Type: responseFormat}
			}
			if flags.Changed("extra") {
				extra := map[string]json.RawMessage{}
				if err := json.Unmarshal([]byte(extraJSON), &extra); err != nil {
					return fmt.Errorf("parse --extra: %w", err)
				}
				req.Extra = extra
			}

			if stream && outputPath == "" {
				chunks, errs := provider.Stream(cmd.Context(), req)
				wrote := false
				for chunk := range chunks {
					fmt.Fprint(cmd.OutOrStdout(), chunk.Content)
					wrote = wrote || chunk.Content != ""
				}
				if err := <-errs; err != nil {
					return err
				}
				if wrote {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			}

			var content string
			if stream {
				chunks, errs := provider.Stream(cmd.Context(), req)
				var sb strings.Builder
				for chunk := range chunks {
					sb.WriteString(chunk.Content)
				}
				if err := <-errs; err != nil {
					return err
				}
				content = sb.String()
			} else {
				res, err := provider.Chat(cmd.Context(), req)
				if err != nil {
					return err
				}
				content = res.Message.Content
			}

			if outputPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			}
			if !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "gpt-4.1-nano", "LLM model to use")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "Sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max_tokens", 0, "Maximum completion tokens")
	cmd.Flags().Float64Var(&topP, "top_p", 0, "Nucleus sampling probability mass")
	cmd.Flags().IntVar(&n, "n", 0, "Number of completions to request")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the completion as it is generated")
	cmd.Flags().StringSliceVar(&stop, "stop", nil, "Stop sequences (repeatable or comma-separated)")
	cmd.Flags().Float64Var(&presencePenalty, "presence_penalty", 0, "Presence penalty")
	cmd.Flags().Float64Var(&frequencyPenalty, "frequency_penalty", 0, "Frequency penalty")
	cmd.Flags().StringVar(&user, "user", "", "End-user identifier forwarded to the provider")
	cmd.Flags().IntVar(&seed, "seed", 0, "Deterministic sampling seed")
	cmd.Flags().IntVar(&timeout, "timeout", 60, "Request timeout in seconds")
	cmd.Flags().StringVar(&responseFormat, "response_format", "", "Response format type (e.g. json_object)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the completion to this file instead of stdout")
	cmd.Flags().StringVar(&extraJSON, "extra", "", "Extra request parameters as a JSON object, merged into the wire request")

	return cmd
}
