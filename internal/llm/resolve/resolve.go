package resolve

import (
	"fmt"
	"strings"
	"time"

	"github.com/igtm/llm-coder/internal/llm"
	llmollama "github.com/igtm/llm-coder/internal/llm/providers/ollama"
	llmopenai "github.com/igtm/llm-coder/internal/llm/providers/openai"
)

// Options carries endpoint settings shared by all backends.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Provider picks the chat backend from the model string, following the
// litellm naming convention: "ollama/llama3" talks to an Ollama server,
// an "openai/" prefix is stripped, and any other name (including
// openrouter-style "vendor/model" ids) goes to the OpenAI-compatible
// endpoint verbatim. The returned string is the model name the backend
// expects on the wire.
func Provider(model string, opts Options) (llm.Provider, string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, "", fmt.Errorf("model is required")
	}

	if rest, ok := strings.CutPrefix(model, "ollama/"); ok {
		if rest == "" {
			return nil, "", fmt.Errorf("model %q has no name after provider prefix", model)
		}
		return llmollama.NewProvider("ollama", opts.BaseURL, opts.Timeout), rest, nil
	}

	if rest, ok := strings.CutPrefix(model, "openai/"); ok && rest != "" {
		model = rest
	}
	return llmopenai.NewProvider("openai", opts.BaseURL, opts.APIKey, opts.Timeout), model, nil
}
