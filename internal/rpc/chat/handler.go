package chat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/codecrew-ai/codecrew/internal/rpc"
)

// Handler serves POST /chat/stream: one request frame in, an NDJSON stream of
// server frames out. Same dispatcher and ordering as the WebSocket path, for
// clients that only speak HTTP.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler constructs a handler instance.
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m := h.dispatcher.Metrics

	if r.Method != http.MethodPost {
		m.RecordTransportError("ndjson", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.IncActiveSessions("ndjson")
	defer m.DecActiveSessions("ndjson")

	var req rpc.ClientFrame
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.RecordTransportError("ndjson", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	writer := bufio.NewWriter(w)
	frames := h.dispatcher.Run(r.Context(), req)
	for frame := range frames {
		if err := json.NewEncoder(writer).Encode(frame); err != nil {
			for range frames {
			}
			break
		}
		writer.Flush()
		flusher.Flush()
	}
}
