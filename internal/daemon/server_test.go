package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codecrew-ai/codecrew/internal/config"
	"github.com/codecrew-ai/codecrew/internal/rpc"
)

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{Type: "mock", Model: "test-model", Timeout: 5 * time.Second, MaxTokens: 100},
		Client:   config.ClientConfig{MaxRetries: 3, RetryDelay: time.Second},
		Server:   config.ServerConfig{Addr: ":0", WSPath: "/ws", MetricsEnabled: true},
	}
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := NewServer(testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReservedSubprotocolRejected(t *testing.T) {
	ts := startTestServer(t)

	dialer := websocket.Dialer{Subprotocols: []string{"vite-hmr"}}
	conn, resp, err := dialer.Dial(wsURL(ts), nil)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketRoundTrip(t *testing.T) {
	ts := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	readFrame := func() rpc.ServerFrame {
		var f rpc.ServerFrame
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	require.Equal(t, rpc.TypeConnected, readFrame().Type)

	require.NoError(t, conn.WriteJSON(rpc.ClientFrame{Type: "frontend", Content: "Build a button"}))

	start := readFrame()
	require.Equal(t, rpc.TypeStreamStart, start.Type)
	require.NotEmpty(t, start.MessageID)

	var content strings.Builder
	for {
		f := readFrame()
		if f.Type == rpc.TypeStreamEnd {
			require.Equal(t, start.MessageID, f.MessageID)
			break
		}
		require.Equal(t, rpc.TypeStreamChunk, f.Type)
		require.Equal(t, start.MessageID, f.MessageID)
		content.WriteString(f.Content)
	}

	// The mock provider echoes the prompt back word by word.
	require.Equal(t, "Build a button", content.String())
}

func TestWebSocketUnknownAgent(t *testing.T) {
	ts := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	var f rpc.ServerFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&f)) // connected

	require.NoError(t, conn.WriteJSON(rpc.ClientFrame{Type: "unknown_agent", Content: "hi"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, rpc.TypeError, f.Type)
	require.Equal(t, "Unknown message type", f.Content)
}

func TestNewServerRequiresAPIKeyForOpenAI(t *testing.T) {
	cfg := testConfig()
	cfg.Provider.Type = "openai"
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewServer(cfg, zap.NewNop())
	require.Error(t, err)
}
