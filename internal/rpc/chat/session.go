package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/codecrew-ai/codecrew/internal/rpc"
)

const connectedMessage = "Successfully connected to agent server"

// frameConn is the message-framed duplex transport a session runs on.
// *websocket.Conn satisfies it; tests use an in-memory pipe.
type frameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

type sessionState int

const (
	stateAwaitingMessage sessionState = iota
	stateDispatching
	stateStreaming
	stateClosed
)

// Session owns one connection's lifecycle: it confirms the connection, reads
// request frames, and relays each request's frame stream back in order.
// Requests are processed strictly sequentially: the loop finishes one stream
// before reading the next frame, so a request sent mid-stream waits in the
// transport buffer and never interleaves.
type Session struct {
	conn       frameConn
	dispatcher *Dispatcher
	logger     *zap.Logger
	state      sessionState
}

// NewSession wraps an accepted connection.
func NewSession(conn frameConn, dispatcher *Dispatcher, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{conn: conn, dispatcher: dispatcher, logger: logger}
}

// Run serves the session until the transport closes or ctx is cancelled.
// Per-frame errors never end the session; only transport failure does.
func (s *Session) Run(ctx context.Context) error {
	defer func() { s.state = stateClosed }()
	defer s.conn.Close()

	if err := s.conn.WriteJSON(rpc.ServerFrame{Type: rpc.TypeConnected, Content: connectedMessage}); err != nil {
		return fmt.Errorf("send connected frame: %w", err)
	}

	for {
		s.state = stateAwaitingMessage

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Debug("session read ended", zap.Error(err))
			return nil
		}

		if err := s.handleFrame(ctx, raw); err != nil {
			return err
		}
	}
}

// handleFrame processes one inbound frame to completion. Anything short of a
// transport write failure is converted to an error frame so the session stays
// usable.
func (s *Session) handleFrame(ctx context.Context, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic handling frame", zap.Any("panic", r))
			err = s.conn.WriteJSON(rpc.ServerFrame{Type: rpc.TypeError, Content: errInvalidFormat})
		}
	}()

	var req rpc.ClientFrame
	if jsonErr := json.Unmarshal(raw, &req); jsonErr != nil {
		s.logger.Warn("unparseable frame", zap.Error(jsonErr))
		return s.conn.WriteJSON(rpc.ServerFrame{Type: rpc.TypeError, Content: errInvalidFormat})
	}

	s.state = stateDispatching

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := s.dispatcher.Run(reqCtx, req)
	for frame := range frames {
		if frame.Type == rpc.TypeStreamStart {
			s.state = stateStreaming
		}
		if writeErr := s.conn.WriteJSON(frame); writeErr != nil {
			// Transport is gone: abandon the in-flight completion and
			// drain so the producer can exit.
			cancel()
			for range frames {
			}
			return fmt.Errorf("write frame: %w", writeErr)
		}
	}
	return nil
}
