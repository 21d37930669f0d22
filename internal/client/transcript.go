package client

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codecrew-ai/codecrew/internal/rpc"
)

// Origin marks who authored a transcript entry.
type Origin string

const (
	OriginUser  Origin = "user"
	OriginAgent Origin = "agent"
)

// Entry is one transcript message. Agent entries grow while Streaming is
// true; user entries are never mutated after creation.
type Entry struct {
	ID        string
	Content   string
	Origin    Origin
	Streaming bool
}

// Transcript is the client's in-memory message log, reconstructed from the
// server's stream frames.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	logger  *zap.Logger
}

// NewTranscript builds an empty transcript.
func NewTranscript(logger *zap.Logger) *Transcript {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcript{logger: logger}
}

// AddUserMessage appends a user entry immediately, before any server
// acknowledgement. The local id format is disjoint from server message ids.
func (t *Transcript) AddUserMessage(text string) Entry {
	entry := Entry{
		ID:      "local-" + uuid.NewString(),
		Content: text,
		Origin:  OriginUser,
	}
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry
}

// Apply folds one stream frame into the transcript. Frames referencing an
// unknown message id are a protocol violation: logged, never fatal.
func (t *Transcript) Apply(frame rpc.ServerFrame) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch frame.Type {
	case rpc.TypeStreamStart:
		t.entries = append(t.entries, Entry{
			ID:        frame.MessageID,
			Origin:    OriginAgent,
			Streaming: true,
		})
	case rpc.TypeStreamChunk:
		if i := t.index(frame.MessageID); i >= 0 {
			t.entries[i].Content += frame.Content
		} else {
			t.logger.Warn("chunk for unknown message", zap.String("message_id", frame.MessageID))
		}
	case rpc.TypeStreamEnd:
		if i := t.index(frame.MessageID); i >= 0 {
			t.entries[i].Streaming = false
		} else {
			t.logger.Warn("end for unknown message", zap.String("message_id", frame.MessageID))
		}
	}
}

// index finds an entry by id; the stream in flight is almost always last.
func (t *Transcript) index(id string) int {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// Entries returns a snapshot of the transcript.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Last returns the newest entry, if any.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// String renders the transcript for terminal display.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, e := range t.entries {
		b.WriteString(string(e.Origin))
		b.WriteString(": ")
		b.WriteString(e.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
