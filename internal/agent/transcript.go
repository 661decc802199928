package agent

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/igtm/llm-coder/internal/llm"
)

// WriteTranscript serializes the conversation to path as indented JSON, one
// object per turn with the same field names the chat wire format uses.
func WriteTranscript(path string, conversation []llm.ChatMessage) error {
	data, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation history: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write conversation history: %w", err)
	}
	return nil
}
