package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codecrew-ai/codecrew/internal/agents"
	"github.com/codecrew-ai/codecrew/internal/llm"
)

// Kind discriminates stream events.
type Kind int

const (
	KindStarted Kind = iota
	KindFragment
	KindEnded
	KindFailed
)

// Event is one item of a completion stream: exactly one Started, zero or more
// Fragments, then exactly one of Ended or Failed. MessageID correlates every
// event of one request; Err is set only on Failed.
type Event struct {
	Kind      Kind
	MessageID string
	Text      string
	Err       error
}

// Adapter turns a persona plus user text into an event stream backed by the
// completion provider. It never retries; a failure is one Failed event.
type Adapter struct {
	Provider     llm.Provider
	Model        string
	StartTimeout time.Duration
	Logger       *zap.Logger
}

// Stream starts a completion for the persona and user text. The returned
// channel is closed after the terminal event. Cancelling ctx abandons the
// in-flight provider call.
func (a *Adapter) Stream(ctx context.Context, persona agents.Persona, userText string) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		id := uuid.NewString()
		out <- Event{Kind: KindStarted, MessageID: id}

		req := llm.ChatRequest{
			Model: a.Model,
			Messages: []llm.ChatMessage{
				{Role: llm.RoleSystem, Content: persona.Instruction},
				{Role: llm.RoleUser, Content: userText},
			},
			Temperature: persona.Temperature,
			MaxTokens:   persona.MaxTokens,
		}

		chunks, err := a.Provider.Stream(ctx, req)
		if err != nil {
			out <- Event{Kind: KindFailed, MessageID: id, Err: fmt.Errorf("start stream: %w", err)}
			return
		}

		startTimeout := a.StartTimeout
		if startTimeout <= 0 {
			startTimeout = 30 * time.Second
		}
		timer := time.NewTimer(startTimeout)
		defer timer.Stop()

		first := true
		for {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					out <- Event{Kind: KindEnded, MessageID: id}
					return
				}
				if first {
					first = false
					timer.Stop()
				}
				if chunk.Err != nil {
					if a.Logger != nil {
						a.Logger.Error("provider stream failed", zap.String("message_id", id), zap.Error(chunk.Err))
					}
					out <- Event{Kind: KindFailed, MessageID: id, Err: chunk.Err}
					return
				}
				// Empty increments are suppressed, not forwarded.
				if chunk.Content != "" {
					out <- Event{Kind: KindFragment, MessageID: id, Text: chunk.Content}
				}
				if chunk.FinishReason != "" {
					out <- Event{Kind: KindEnded, MessageID: id}
					return
				}
			case <-timer.C:
				if first {
					out <- Event{Kind: KindFailed, MessageID: id, Err: fmt.Errorf("provider did not respond within %s", startTimeout)}
					return
				}
			case <-ctx.Done():
				out <- Event{Kind: KindFailed, MessageID: id, Err: ctx.Err()}
				return
			}
		}
	}()

	return out
}
