package echo

import (
	"context"
	"strings"

	"github.com/codecrew-ai/codecrew/internal/llm"
)

// Provider streams the words of the user message back. It backs the "mock"
// provider type so the daemon can run end-to-end without an API key.
type Provider struct{}

func (Provider) Name() string { return "echo" }

func (Provider) Stream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	var prompt string
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			prompt = m.Content
		}
	}

	words := strings.Fields(prompt)
	ch := make(chan llm.StreamChunk, len(words)+1)
	go func() {
		defer close(ch)
		for i, w := range words {
			if i > 0 {
				w = " " + w
			}
			select {
			case ch <- llm.StreamChunk{Content: w}:
			case <-ctx.Done():
				return
			}
		}
		ch <- llm.StreamChunk{FinishReason: "stop"}
	}()
	return ch, nil
}
