package llm

import (
	"context"
	"encoding/json"
)

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage represents a single message exchanged with the model.
type ChatMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall describes a model-initiated tool invocation.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolFunctionCall `json:"function"`
}

// ToolFunctionCall is the function call payload for a tool request.
// Arguments carries the raw JSON-encoded argument object.
type ToolFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition advertises a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition names a function tool and carries its parameter schema.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ResponseFormat requests a specific completion format (e.g. json_object).
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the input for chat providers. Optional sampling parameters
// are pointers so an unset value can be told apart from an explicit zero and
// omitted from the wire request.
type ChatRequest struct {
	Model            string
	Messages         []ChatMessage
	Tools            []ToolDefinition
	MaxTokens        int
	Temperature      *float64
	TopP             *float64
	N                *int
	Stop             []string
	PresencePenalty  *float64
	FrequencyPenalty *float64
	User             string
	Seed             *int
	ResponseFormat   *ResponseFormat
	Stream           bool
	// Extra is merged into the wire request after the typed fields and wins
	// on conflict. OpenAI-compatible backends merge at the top level; Ollama
	// merges into its options object.
	Extra map[string]json.RawMessage
}

// Usage captures token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the result of a chat completion.
type ChatResponse struct {
	Message      ChatMessage
	FinishReason string
	Usage        Usage
	ProviderName string
	Model        string
}

// StreamChunk is emitted during streaming responses.
type StreamChunk struct {
	Content      string
	FinishReason string
}

// Provider defines the contract for LLM backends.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error)
}

// Float64 returns a pointer to v, for optional request parameters.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional request parameters.
func Int(v int) *int { return &v }
