package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/codecrew-ai/codecrew/internal/client"
	"github.com/codecrew-ai/codecrew/internal/rpc"
	"github.com/codecrew-ai/codecrew/internal/rpc/chat"
	"github.com/codecrew-ai/codecrew/internal/rpc/connectjson"
)

// NewChatCmd wires the chat command to stream one completion from the daemon.
func NewChatCmd(opts *Options) *cobra.Command {
	var transport string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "chat <agent> \"<message>\"",
		Short: "Send a message to an agent and stream the answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			agentID, message := args[0], args[1]
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("message cannot be empty")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			frame := rpc.ClientFrame{Type: agentID, Content: message}

			switch strings.ToLower(strings.TrimSpace(transport)) {
			case "", "websocket", "ws":
				wsURL, err := wsEndpoint(serverURL, cfg.Client.URL, cfg.Server.WSPath)
				if err != nil {
					return err
				}
				return chatWebSocket(ctx, cmd, wsURL, cfg.Client.MaxRetries, cfg.Client.RetryDelay, frame)
			case "ndjson":
				base, err := httpBase(serverURL, cfg.Client.URL)
				if err != nil {
					return err
				}
				return chatNDJSON(ctx, cmd, base+"/chat/stream", frame)
			case "connect":
				base, err := httpBase(serverURL, cfg.Client.URL)
				if err != nil {
					return err
				}
				return chatConnect(ctx, cmd, base+chat.ConnectChatProcedure, frame)
			default:
				return fmt.Errorf("unknown transport %q (want websocket, ndjson, or connect)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "websocket", "Transport to reach the daemon: websocket, ndjson, or connect")
	cmd.Flags().StringVar(&serverURL, "server", "", "Daemon base URL, e.g. http://localhost:8080 (default derived from client.url)")
	return cmd
}

// wsEndpoint resolves the WebSocket URL from the --server override or the
// configured client URL.
func wsEndpoint(override, clientURL, wsPath string) (string, error) {
	if override == "" {
		return clientURL, nil
	}
	u, err := url.Parse(override)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = wsPath
	return u.String(), nil
}

// httpBase resolves the daemon HTTP base URL from the --server override or
// the configured WebSocket client URL.
func httpBase(override, clientURL string) (string, error) {
	raw := override
	if raw == "" {
		raw = clientURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = ""
	return u.String(), nil
}

func chatWebSocket(ctx context.Context, cmd *cobra.Command, wsURL string, maxRetries int, retryDelay time.Duration, frame rpc.ClientFrame) error {
	out := cmd.OutOrStdout()

	c := client.New(wsURL, maxRetries, retryDelay, zap.NewNop())
	done := make(chan error, 1)
	c.OnFrame = func(f rpc.ServerFrame) {
		switch f.Type {
		case rpc.TypeStreamChunk:
			fmt.Fprint(out, f.Content)
		case rpc.TypeStreamEnd:
			fmt.Fprintln(out)
			done <- nil
		case rpc.TypeError:
			done <- fmt.Errorf("agent error: %s", f.Content)
		}
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	if err := waitOpen(ctx, c); err != nil {
		return err
	}
	if err := c.Send(frame.Type, frame.Content); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case err := <-runErr:
		if err != nil {
			return err
		}
		return fmt.Errorf("connection closed before the stream finished")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitOpen blocks until the client connects or gives up.
func waitOpen(ctx context.Context, c *client.Client) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch c.State() {
		case client.StateOpen:
			return nil
		case client.StateFailed:
			return client.ErrRetriesExhausted
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func chatNDJSON(ctx context.Context, cmd *cobra.Command, url string, frame rpc.ClientFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var f rpc.ServerFrame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		if err := renderFrame(cmd, f); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func chatConnect(ctx context.Context, cmd *cobra.Command, url string, frame rpc.ClientFrame) error {
	cc := connect.NewClient[rpc.ChatStreamRequest, rpc.ServerFrame](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := cc.CallBidiStream(ctx)

	if err := stream.Send(&rpc.ChatStreamRequest{Send: &frame}); err != nil {
		return err
	}

	// Propagate cancellation to the daemon.
	go func() {
		<-ctx.Done()
		_ = stream.Send(&rpc.ChatStreamRequest{Cancel: true})
		_ = stream.CloseRequest()
	}()

	for {
		f, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := renderFrame(cmd, *f); err != nil {
			return err
		}
	}
	_ = stream.CloseRequest()
	return stream.CloseResponse()
}

func renderFrame(cmd *cobra.Command, f rpc.ServerFrame) error {
	switch f.Type {
	case rpc.TypeStreamChunk:
		fmt.Fprint(cmd.OutOrStdout(), f.Content)
	case rpc.TypeStreamEnd:
		fmt.Fprintln(cmd.OutOrStdout())
	case rpc.TypeError:
		return fmt.Errorf("agent error: %s", f.Content)
	}
	return nil
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
