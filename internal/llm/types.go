package llm

import "context"

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage represents a single message sent to the model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

// ChatRequest is the input for chat providers.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// StreamChunk is emitted during streaming responses. A chunk with a non-nil
// Err is terminal and carries the failure; a chunk with a FinishReason is the
// last content-bearing chunk of a successful stream.
type StreamChunk struct {
	Content      string
	FinishReason string
	Err          error
}

// Provider defines the contract for streaming LLM providers. The returned
// channel is closed after the terminal chunk; setup failures are returned
// directly.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}
