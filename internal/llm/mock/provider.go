package mock

import (
	"context"

	"github.com/codecrew-ai/codecrew/internal/llm"
)

// Provider is a test double implementing llm.Provider.
type Provider struct {
	NameValue    string
	StreamChunks []llm.StreamChunk
	StreamErr    error // delivered as a terminal error chunk after StreamChunks
	SetupErr     error // returned from Stream before any chunk
	LastRequest  llm.ChatRequest
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Stream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if p.SetupErr != nil {
		return nil, p.SetupErr
	}
	p.LastRequest = req

	ch := make(chan llm.StreamChunk, len(p.StreamChunks)+1)
	go func() {
		defer close(ch)
		for _, c := range p.StreamChunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
		if p.StreamErr != nil {
			ch <- llm.StreamChunk{Err: p.StreamErr}
		}
	}()
	return ch, nil
}
