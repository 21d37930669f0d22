package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codecrew-ai/codecrew/internal/agents"
	"github.com/codecrew-ai/codecrew/internal/completion"
	"github.com/codecrew-ai/codecrew/internal/observability"
	"github.com/codecrew-ai/codecrew/internal/rpc"
)

// Client-visible error texts. Provider failure detail is logged, never sent.
const (
	errInvalidFormat   = "Invalid message format"
	errUnknownType     = "Unknown message type"
	errProviderFailure = "Sorry, I encountered an error. Please try again."
)

// Dispatcher validates one request, resolves its persona and converts the
// completion event stream into wire frames. It is shared by every transport
// and holds no per-request state, so one instance serves all sessions.
type Dispatcher struct {
	Registry *agents.Registry
	Adapter  *completion.Adapter
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Run handles one request frame and returns the ordered frame stream for it.
// Validation failures yield a single error frame; the channel is always
// closed after the terminal frame.
func (d *Dispatcher) Run(ctx context.Context, req rpc.ClientFrame) <-chan rpc.ServerFrame {
	out := make(chan rpc.ServerFrame, 16)

	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Content) == "" {
		out <- rpc.ServerFrame{Type: rpc.TypeError, Content: errInvalidFormat}
		close(out)
		return out
	}

	persona, ok := d.Registry.Resolve(agents.ID(req.Type))
	if !ok {
		d.logger().Warn("unknown agent id", zap.String("agent", req.Type))
		out <- rpc.ServerFrame{Type: rpc.TypeError, Content: errUnknownType}
		close(out)
		return out
	}

	go func() {
		defer close(out)

		start := time.Now()
		fragments := 0
		outcome := "ended"

		for ev := range d.Adapter.Stream(ctx, persona, req.Content) {
			switch ev.Kind {
			case completion.KindStarted:
				d.logger().Info("stream started",
					zap.String("agent", req.Type),
					zap.String("message_id", ev.MessageID))
				out <- rpc.ServerFrame{Type: rpc.TypeStreamStart, MessageID: ev.MessageID}
			case completion.KindFragment:
				fragments++
				out <- rpc.ServerFrame{Type: rpc.TypeStreamChunk, MessageID: ev.MessageID, Content: ev.Text}
			case completion.KindEnded:
				d.logger().Info("stream ended",
					zap.String("agent", req.Type),
					zap.String("message_id", ev.MessageID),
					zap.Int("fragments", fragments))
				out <- rpc.ServerFrame{Type: rpc.TypeStreamEnd, MessageID: ev.MessageID}
			case completion.KindFailed:
				outcome = "failed"
				d.logger().Error("stream failed",
					zap.String("agent", req.Type),
					zap.String("message_id", ev.MessageID),
					zap.Error(ev.Err))
				out <- rpc.ServerFrame{Type: rpc.TypeError, Content: errProviderFailure}
			}
		}

		d.Metrics.RecordStream(req.Type, outcome, time.Since(start), fragments)
	}()

	return out
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}
