package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tradesync/internal/infra"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Handler receives connection events. OnConnected fires on every transition
// into Connected, including reconnects, so the caller can replay
// subscriptions — the server keeps no subscription state across a drop.
type Handler interface {
	OnConnected(ctx context.Context)
	OnMessage(ctx context.Context, msg []byte)
}

// Conn manages one duplex streaming session to the venue: dial, read loop,
// thread-safe writes, and reconnection with bounded exponential backoff.
// An explicit Close suppresses reconnection and pending backoff timers.
type Conn struct {
	url     string
	handler Handler

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	state   atomic.Int32
	closed  atomic.Bool

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
}

// NewConn creates a connection manager for the given URL.
func NewConn(url string, handler Handler) *Conn {
	return &Conn{
		url:              url,
		handler:          handler,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Connect starts the connection loop. It returns immediately; the session is
// established and maintained in the background.
func (c *Conn) Connect(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Close terminates the session and suppresses any reconnection.
func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.closeConn()
	c.wg.Wait()
	c.setState(StateDisconnected)
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Send writes one text frame. Valid only while Connected; frames sent in any
// other state are dropped with a log line, never fatal.
func (c *Conn) Send(data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		slog.Warn("Stream frame dropped, not connected", slog.Int("bytes", len(data)))
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) runLoop(ctx context.Context) {
	defer c.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		default:
		}

		if retry == 0 && c.State() == StateDisconnected {
			c.setState(StateConnecting)
		}

		if err := c.dial(ctx); err != nil {
			slog.Warn("Stream connect failed",
				slog.String("url", c.url), slog.Any("error", err), slog.Int("retry", retry))
			delay := Backoff(retry)
			retry++
			c.setState(StateReconnecting)

			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0 // Reset backoff on a successful Connected transition.
		c.setState(StateConnected)
		infra.RecordStreamConnected()
		c.handler.OnConnected(ctx)

		c.readLoop(ctx)

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		// Unexpected close: schedule a reconnect.
		slog.Warn("Stream session lost, reconnecting", slog.String("url", c.url))
		c.setState(StateReconnecting)
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-time.After(Backoff(retry)):
			retry++
		}
	}
}

func (c *Conn) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if c.PingInterval > 0 {
		go c.pingLoop(ctx, conn)
	}

	slog.Info("Stream connected", slog.String("url", c.url))
	return nil
}

// readLoop delivers raw frames in arrival order, one at a time. It returns
// when the transport fails or the context is cancelled.
func (c *Conn) readLoop(ctx context.Context) {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Stream read error", slog.Any("error", err))
			}
			c.closeConn()
			return
		}

		c.handler.OnMessage(ctx, msg)
	}
}

func (c *Conn) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.conn
			c.mu.RUnlock()
			if current != conn {
				return // Session was replaced; its ping loop owns keepalive now.
			}
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Warn("Stream ping failed", slog.Any("error", err))
				c.closeConn()
				return
			}
		}
	}
}

func (c *Conn) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Conn) setState(s State) {
	if State(c.state.Swap(int32(s))) != s {
		infra.SetStreamState(int(s))
		slog.Debug("Stream state", slog.String("state", s.String()))
	}
}
