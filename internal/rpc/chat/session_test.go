package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/codecrew-ai/codecrew/internal/llm"
	"github.com/codecrew-ai/codecrew/internal/llm/mock"
	"github.com/codecrew-ai/codecrew/internal/rpc"
)

// pipeConn is an in-memory frameConn: the test plays the client.
type pipeConn struct {
	inbound chan []byte

	mu     sync.Mutex
	sent   []rpc.ServerFrame
	closed bool
	done   chan struct{}
}

func newPipeConn() *pipeConn {
	return &pipeConn{inbound: make(chan []byte, 8), done: make(chan struct{})}
}

func (c *pipeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-c.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, raw, nil
}

func (c *pipeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	frame, ok := v.(rpc.ServerFrame)
	if !ok {
		return errors.New("unexpected frame type")
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *pipeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *pipeConn) frames() []rpc.ServerFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rpc.ServerFrame, len(c.sent))
	copy(out, c.sent)
	return out
}

func runSession(t *testing.T, conn *pipeConn, d *Dispatcher, inbound ...string) []rpc.ServerFrame {
	t.Helper()
	for _, raw := range inbound {
		conn.inbound <- []byte(raw)
	}
	close(conn.inbound)

	s := NewSession(conn, d, zap.NewNop())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("session returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	return conn.frames()
}

func TestSessionSendsConnectedFrameFirst(t *testing.T) {
	d := newTestDispatcher(t, &mock.Provider{})
	frames := runSession(t, newPipeConn(), d)

	if len(frames) != 1 || frames[0].Type != rpc.TypeConnected {
		t.Fatalf("expected a single connected frame, got %+v", frames)
	}
	if frames[0].Content != "Successfully connected to agent server" {
		t.Fatalf("unexpected connected content: %q", frames[0].Content)
	}
}

func TestSessionStreamsValidRequest(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.StreamChunk{
		{Content: "Here"},
		{Content: " is the code"},
		{FinishReason: "stop"},
	}}
	d := newTestDispatcher(t, provider)

	frames := runSession(t, newPipeConn(), d, `{"type":"frontend","content":"Build a button component"}`)

	want := []string{rpc.TypeConnected, rpc.TypeStreamStart, rpc.TypeStreamChunk, rpc.TypeStreamChunk, rpc.TypeStreamEnd}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %+v", len(want), frames)
	}
	for i, typ := range want {
		if frames[i].Type != typ {
			t.Fatalf("frame %d: expected %s, got %+v", i, typ, frames[i])
		}
	}
	if frames[2].Content+frames[3].Content != "Here is the code" {
		t.Fatalf("chunks out of order: %+v", frames)
	}
}

func TestSessionRecoversFromMalformedFrame(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.StreamChunk{{Content: "ok", FinishReason: "stop"}}}
	d := newTestDispatcher(t, provider)

	frames := runSession(t, newPipeConn(), d,
		`this is not json`,
		`{"type":"backend","content":"hello"}`,
	)

	if frames[1].Type != rpc.TypeError || frames[1].Content != "Invalid message format" {
		t.Fatalf("expected error frame for malformed input, got %+v", frames[1])
	}
	// The session must stay usable: the valid follow-up still streams.
	var sawEnd bool
	for _, f := range frames[2:] {
		if f.Type == rpc.TypeStreamEnd {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatalf("expected the follow-up request to stream after recovery, got %+v", frames)
	}
}

func TestSessionUnknownAgentKeepsSessionOpen(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.StreamChunk{{Content: "ok", FinishReason: "stop"}}}
	d := newTestDispatcher(t, provider)

	frames := runSession(t, newPipeConn(), d,
		`{"type":"unknown_agent","content":"hi"}`,
		`{"type":"fullstack","content":"hi"}`,
	)

	if frames[1].Type != rpc.TypeError || frames[1].Content != "Unknown message type" {
		t.Fatalf("expected unknown-type error, got %+v", frames[1])
	}
	if frames[2].Type != rpc.TypeStreamStart {
		t.Fatalf("expected session to continue with next request, got %+v", frames[2])
	}
}

func TestSessionProcessesRequestsSequentially(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.StreamChunk{
		{Content: "a"},
		{Content: "b"},
		{FinishReason: "stop"},
	}}
	d := newTestDispatcher(t, provider)

	// Both requests are queued before the session starts reading: the second
	// must not interleave with the first stream.
	frames := runSession(t, newPipeConn(), d,
		`{"type":"frontend","content":"one"}`,
		`{"type":"frontend","content":"two"}`,
	)

	var ids []string
	for _, f := range frames {
		if f.Type == rpc.TypeStreamStart {
			ids = append(ids, f.MessageID)
		}
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected two distinct streams, got %+v", frames)
	}

	// Every frame between start[0] and the first end belongs to stream 0.
	current := ""
	for _, f := range frames[1:] {
		switch f.Type {
		case rpc.TypeStreamStart:
			if current != "" {
				t.Fatalf("stream %s started before %s ended: %+v", f.MessageID, current, frames)
			}
			current = f.MessageID
		case rpc.TypeStreamChunk:
			if f.MessageID != current {
				t.Fatalf("interleaved chunk: %+v", frames)
			}
		case rpc.TypeStreamEnd:
			if f.MessageID != current {
				t.Fatalf("mismatched end: %+v", frames)
			}
			current = ""
		}
	}
}
