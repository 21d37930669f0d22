package rpc

// Frame types sent by the server. The client frame carries the agent id in its
// Type field, so the two directions share one JSON shape.
const (
	TypeConnected   = "connected"
	TypeStreamStart = "stream_start"
	TypeStreamChunk = "stream_chunk"
	TypeStreamEnd   = "stream_end"
	TypeError       = "error"
)

// ClientFrame is one inbound request: Type is an agent id, Content the user
// text.
type ClientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ServerFrame is one outbound frame. MessageID correlates the frames of one
// streamed response; it is empty on connected and error frames.
type ServerFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content,omitempty"`
}

// ChatStreamRequest is the bidirectional stream payload for the Connect
// transport. The first message must carry Send; later messages may carry a
// cancel signal for the in-flight completion.
type ChatStreamRequest struct {
	Send   *ClientFrame `json:"send,omitempty"`
	Cancel bool         `json:"cancel,omitempty"`
}
