package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/codecrew-ai/codecrew/internal/agents"
	"github.com/codecrew-ai/codecrew/internal/completion"
	"github.com/codecrew-ai/codecrew/internal/config"
	"github.com/codecrew-ai/codecrew/internal/llm"
	"github.com/codecrew-ai/codecrew/internal/llm/echo"
	openaiprovider "github.com/codecrew-ai/codecrew/internal/llm/openai"
	"github.com/codecrew-ai/codecrew/internal/observability"
	"github.com/codecrew-ai/codecrew/internal/rpc/chat"
)

// Connections negotiating this sub-protocol belong to dev tooling, not to the
// application, and are never handed to a session.
const reservedSubprotocol = "vite-hmr"

// Server hosts the WebSocket session pool plus the HTTP endpoints
// (health/metrics/NDJSON/Connect) around it.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	dispatcher *chat.Dispatcher
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

// NewServer constructs a daemon instance.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry, err := agents.NewRegistry(cfg.Provider.MaxTokens, cfg.Agents)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}

	metrics := observability.NewMetrics()
	dispatcher := &chat.Dispatcher{
		Registry: registry,
		Adapter: &completion.Adapter{
			Provider:     provider,
			Model:        cfg.Provider.Model,
			StartTimeout: cfg.Provider.Timeout,
			Logger:       logger,
		},
		Logger:  logger,
		Metrics: metrics,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider.Type)) {
	case "mock":
		return echo.Provider{}, nil
	case "openai":
		apiKey := cfg.Provider.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("provider.api_key or OPENAI_API_KEY must be set")
		}
		return openaiprovider.NewProvider("openai", cfg.Provider.BaseURL, apiKey, cfg.Provider.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}
}

// Handler builds the daemon's full route table. Exposed for tests; Run wraps
// it with h2c for the Connect transport.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Server.WSPath, s.wsHandler(ctx))
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/chat/stream", chat.NewHandler(s.dispatcher))

	path, handler := chat.NewConnectHandler(s.dispatcher)
	mux.Handle(path, handler)

	return mux
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           h2c.NewHandler(s.Handler(ctx), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting codecrew daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down codecrew daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// wsHandler upgrades application connections and runs one session per
// connection. Dev-tooling probes negotiating the reserved sub-protocol are
// filtered out before upgrade.
func (s *Server) wsHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, proto := range websocket.Subprotocols(r) {
			if proto == reservedSubprotocol {
				s.metrics.RecordTransportError("websocket", "reserved_subprotocol")
				http.Error(w, "subprotocol not supported", http.StatusForbidden)
				return
			}
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			s.metrics.RecordTransportError("websocket", "upgrade")
			s.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		s.logger.Info("websocket connection established", zap.String("remote", conn.RemoteAddr().String()))
		s.metrics.IncActiveSessions("websocket")

		go func() {
			defer s.metrics.DecActiveSessions("websocket")
			session := chat.NewSession(conn, s.dispatcher, s.logger)
			if err := session.Run(ctx); err != nil {
				s.metrics.RecordTransportError("websocket", "session")
				s.logger.Warn("session ended with transport error", zap.Error(err))
			}
		}()
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
