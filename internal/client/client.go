package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/codecrew-ai/codecrew/internal/rpc"
)

// State is the connection lifecycle of the consumer.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrNotConnected is returned by Send when the connection is not open.
var ErrNotConnected = errors.New("connection not open")

// ErrRetriesExhausted is returned by Run after the reconnection bound is hit.
var ErrRetriesExhausted = errors.New("reconnection attempts exhausted")

const (
	noticeConnectionLost = "Connection lost. Please wait for reconnection..."
	noticeGaveUp         = "Connection failed. Please restart the client to try again."
)

// Client opens one duplex connection to the server, sends requests, and
// reassembles streamed answers into its transcript. On connection loss it
// retries a bounded number of times with a fixed delay; a success resets the
// counter, exhaustion is terminal.
type Client struct {
	url        string
	maxRetries int
	retryDelay time.Duration
	dialer     *websocket.Dialer
	logger     *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	transcript *Transcript
	notices    chan string

	// OnFrame, when set before Run, observes every inbound frame after it has
	// been applied. Used by the CLI to render chunks as they arrive.
	OnFrame func(rpc.ServerFrame)
}

// New builds a client for the given ws:// or wss:// endpoint.
func New(url string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Client{
		url:        url,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		dialer:     websocket.DefaultDialer,
		logger:     logger,
		state:      StateConnecting,
		transcript: NewTranscript(logger),
		notices:    make(chan string, 16),
	}
}

// Transcript returns the client's message log.
func (c *Client) Transcript() *Transcript {
	return c.transcript
}

// Notices delivers user-visible connection and error notices.
func (c *Client) Notices() <-chan string {
	return c.notices
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) notify(msg string) {
	select {
	case c.notices <- msg:
	default:
		c.logger.Warn("notice dropped", zap.String("notice", msg))
	}
}

// Run connects and serves the read loop until ctx is cancelled or the retry
// bound is exhausted. It blocks; callers usually run it in a goroutine.
func (c *Client) Run(ctx context.Context) error {
	failures := 0

	for {
		if ctx.Err() != nil {
			c.setState(StateClosed)
			return nil
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("dial failed", zap.String("url", c.url), zap.Error(err))
			if failures >= c.maxRetries {
				c.setState(StateFailed)
				c.notify(noticeGaveUp)
				return fmt.Errorf("%w: %d attempts", ErrRetriesExhausted, failures)
			}
			failures++
			c.setState(StateReconnecting)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				c.setState(StateClosed)
				return nil
			}
			continue
		}

		failures = 0
		c.mu.Lock()
		c.conn = conn
		c.state = StateOpen
		c.mu.Unlock()
		c.logger.Info("connected", zap.String("url", c.url))

		err = c.readLoop(ctx, conn)
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			c.setState(StateClosed)
			return nil
		}
		c.logger.Warn("connection lost", zap.Error(err))

		if c.maxRetries == 0 {
			c.setState(StateFailed)
			c.notify(noticeGaveUp)
			return fmt.Errorf("%w: 0 attempts", ErrRetriesExhausted)
		}
		c.setState(StateReconnecting)
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			c.setState(StateClosed)
			return nil
		}
	}
}

// readLoop applies inbound frames until the connection drops.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var frame rpc.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}

		switch frame.Type {
		case rpc.TypeConnected:
			c.logger.Debug("connection confirmed", zap.String("content", frame.Content))
		case rpc.TypeError:
			c.notify(frame.Content)
		default:
			c.transcript.Apply(frame)
		}
		if c.OnFrame != nil {
			c.OnFrame(frame)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Send submits one request. The user text becomes a transcript entry
// immediately; sending while the connection is not open is rejected with a
// user-visible notice instead of queueing.
func (c *Client) Send(agentID, text string) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateOpen || conn == nil {
		c.notify(noticeConnectionLost)
		return ErrNotConnected
	}

	if err := conn.WriteJSON(rpc.ClientFrame{Type: agentID, Content: text}); err != nil {
		c.notify(noticeConnectionLost)
		return fmt.Errorf("send request: %w", err)
	}

	c.transcript.AddUserMessage(text)
	return nil
}
