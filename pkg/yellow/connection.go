package yellow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jetkite-hq/jetkite-go/pkg/jkerrors"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/metrics"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisposed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

const (
	// DefaultMessageTimeout bounds SendAndWait correlation waits.
	DefaultMessageTimeout = 10 * time.Second

	// DefaultReconnectDelay seeds the reconnect backoff.
	DefaultReconnectDelay = time.Second

	// DefaultMaxReconnectAttempts bounds automatic reconnection.
	DefaultMaxReconnectAttempts = 5
)

// ConnectionConfig configures a clearnode connection.
type ConnectionConfig struct {
	URL string
	// MessageTimeout is the default SendAndWait timeout.
	MessageTimeout time.Duration
	// ReconnectDelay seeds the exponential reconnect backoff.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps automatic reconnection after an
	// unexpected close. Zero disables auto-reconnect.
	MaxReconnectAttempts int
	Logger               logger.Logger
}

// Frame is one inbound message. Parsed is nil for non-JSON frames, which
// are still dispatched to handlers as the raw payload rather than dropped.
type Frame struct {
	Raw    []byte
	Parsed map[string]interface{}
}

// MessageHandler receives every inbound frame.
type MessageHandler func(Frame)

// EventHandler receives connection lifecycle events.
type EventHandler func()

// pendingRequest is a correlation waiter keyed by method/type name.
// rejectReason is written before the channel is closed; the close is the
// waiter's signal to read it.
type pendingRequest struct {
	ch           chan map[string]interface{}
	rejectReason string
}

// Connection maintains one persistent socket to a clearnode and
// correlates concurrent request/response pairs over it.
type Connection struct {
	cfg    ConnectionConfig
	logger logger.Logger

	mu            sync.Mutex
	state         ConnState
	conn          *websocket.Conn
	pending       map[string]*pendingRequest
	handlers      []MessageHandler
	onConnect     []EventHandler
	onDisconnect  []EventHandler
	intentionally bool

	writeMu sync.Mutex
}

// NewConnection creates a connection in the disconnected state.
func NewConnection(cfg ConnectionConfig) *Connection {
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = DefaultMessageTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	log := cfg.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Connection{
		cfg:     cfg,
		logger:  log,
		state:   StateDisconnected,
		pending: make(map[string]*pendingRequest),
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the socket is open.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// OnMessage registers a handler for every inbound frame.
func (c *Connection) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// OnConnect registers a handler fired once per successful connect.
func (c *Connection) OnConnect(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, handler)
}

// OnDisconnect registers a handler fired once per disconnect.
func (c *Connection) OnDisconnect(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, handler)
}

// Connect opens the socket. A no-op when already connected; fails when
// the connection has been disposed. The dial either resolves once the
// transport is open or rejects with the underlying reason.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateDisposed:
		c.mu.Unlock()
		return fmt.Errorf("yellow: connection has been disposed")
	case StateConnecting:
		c.mu.Unlock()
		return fmt.Errorf("yellow: connect already in progress")
	}
	c.state = StateConnecting
	c.intentionally = false
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return jkerrors.NewNetworkError("failed to connect to clearnode at "+c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	connectHandlers := append([]EventHandler(nil), c.onConnect...)
	c.mu.Unlock()

	c.logger.InfoWithScope(logger.WS, "Connected to clearnode at %s", c.cfg.URL)
	go c.readLoop(conn)
	c.emit(connectHandlers)
	return nil
}

// Disconnect closes the socket and rejects every pending correlated
// request with an explicit reason: no request is left unresolved.
// Idempotent.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.intentionally = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	disconnectHandlers := append([]EventHandler(nil), c.onDisconnect...)
	c.rejectPendingLocked("connection closed by client")
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.DebugWithScope(logger.WS, "Error closing socket: %v", err)
		}
	}
	c.logger.InfoWithScope(logger.WS, "Disconnected from clearnode")
	c.emit(disconnectHandlers)
}

// Dispose disconnects and permanently retires the connection.
func (c *Connection) Dispose() {
	c.Disconnect()
	c.mu.Lock()
	c.state = StateDisposed
	c.mu.Unlock()
}

// Send writes a fire-and-forget frame. Fails synchronously when the
// socket is not connected.
func (c *Connection) Send(payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return fmt.Errorf("yellow: not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("yellow: failed to encode payload: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return jkerrors.NewNetworkError("failed to write to clearnode socket", err)
	}
	metrics.SocketFramesOut.Inc()
	return nil
}

// SendAndWait sends a frame and waits for an inbound message whose
// "method" or "type" field equals correlationKey. Concurrent calls with
// different keys correlate independently and may resolve out of send
// order. A zero timeout takes the configured message timeout.
func (c *Connection) SendAndWait(ctx context.Context, payload interface{}, correlationKey string, timeout time.Duration) (map[string]interface{}, error) {
	if timeout <= 0 {
		timeout = c.cfg.MessageTimeout
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, fmt.Errorf("yellow: not connected")
	}
	if _, exists := c.pending[correlationKey]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("yellow: a request for %q is already pending", correlationKey)
	}
	waiter := &pendingRequest{ch: make(chan map[string]interface{}, 1)}
	c.pending[correlationKey] = waiter
	metrics.PendingCorrelations.Inc()
	c.mu.Unlock()

	if err := c.Send(payload); err != nil {
		c.removePending(correlationKey)
		return nil, err
	}

	select {
	case msg, ok := <-waiter.ch:
		if !ok {
			return nil, jkerrors.NewNetworkError(waiter.rejectReason, nil)
		}
		return msg, nil
	case <-ctx.Done():
		c.removePending(correlationKey)
		return nil, jkerrors.NewNetworkError("request cancelled", ctx.Err())
	case <-time.After(timeout):
		c.removePending(correlationKey)
		timeoutErr := jkerrors.NewTimeoutError(
			fmt.Sprintf("no %q response from clearnode within %v", correlationKey, timeout),
			timeout,
		)
		timeoutErr.WithContext("correlationKey", correlationKey)
		return nil, timeoutErr
	}
}

// readLoop dispatches every inbound frame until the socket closes.
func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
		metrics.SocketFramesIn.Inc()
		c.dispatch(raw)
	}
}

// dispatch parses one frame, resolves any matching correlation waiter and
// broadcasts to all message handlers. Non-JSON frames still reach the
// handlers as the raw payload. A handler panic never blocks sibling
// handlers or the correlation matcher.
func (c *Connection) dispatch(raw []byte) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		parsed = nil
	}

	if parsed != nil {
		key := frameCorrelationKey(parsed)
		if key != "" {
			c.mu.Lock()
			waiter, ok := c.pending[key]
			if ok {
				delete(c.pending, key)
				metrics.PendingCorrelations.Dec()
			}
			c.mu.Unlock()
			if ok {
				waiter.ch <- parsed
			}
		}
	}

	c.mu.Lock()
	handlers := append([]MessageHandler(nil), c.handlers...)
	c.mu.Unlock()

	frame := Frame{Raw: raw, Parsed: parsed}
	for _, handler := range handlers {
		c.invokeHandler(handler, frame)
	}
}

func (c *Connection) invokeHandler(handler MessageHandler, frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorWithScope(logger.WS, "Message handler panicked: %v", r)
		}
	}()
	handler(frame)
}

// handleReadError tears down after an unexpected close and, when
// configured, reconnects with exponential backoff.
func (c *Connection) handleReadError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	// A stale read loop from a previous socket must not tear down the
	// current one.
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	intentional := c.intentionally
	c.conn = nil
	if c.state == StateConnected {
		c.state = StateDisconnected
	}
	disconnectHandlers := append([]EventHandler(nil), c.onDisconnect...)
	c.rejectPendingLocked("connection closed by clearnode")
	c.mu.Unlock()

	if intentional {
		return
	}

	c.logger.NoticeWithScope(logger.WS, "Clearnode socket closed unexpectedly: %v", err)
	c.emit(disconnectHandlers)

	maxAttempts := c.cfg.MaxReconnectAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		delay := CalculateBackoffDelay(c.cfg.ReconnectDelay, attempt)
		c.logger.InfoWithScope(logger.WS, "Reconnecting to clearnode in %v (attempt %d/%d)", delay, attempt, maxAttempts)
		time.Sleep(delay)

		if c.State() == StateDisposed {
			return
		}
		if err := c.Connect(context.Background()); err == nil {
			return
		} else {
			c.logger.DebugWithScope(logger.WS, "Reconnect attempt %d failed: %v", attempt, err)
		}
	}
	if maxAttempts > 0 {
		c.logger.ErrorWithScope(logger.WS, "Gave up reconnecting to clearnode after %d attempts", maxAttempts)
	}
}

// rejectPendingLocked closes every correlation waiter with the given
// reason. Callers hold c.mu.
func (c *Connection) rejectPendingLocked(reason string) {
	for key, waiter := range c.pending {
		waiter.rejectReason = reason
		close(waiter.ch)
		delete(c.pending, key)
		metrics.PendingCorrelations.Dec()
	}
}

func (c *Connection) removePending(correlationKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[correlationKey]; ok {
		delete(c.pending, correlationKey)
		metrics.PendingCorrelations.Dec()
	}
}

// emit runs lifecycle handlers with panic isolation.
func (c *Connection) emit(handlers []EventHandler) {
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.ErrorWithScope(logger.WS, "Event handler panicked: %v", r)
				}
			}()
			handler()
		}()
	}
}

// frameCorrelationKey extracts the method or type field used for
// correlation. Method wins when both are present.
func frameCorrelationKey(parsed map[string]interface{}) string {
	if method, ok := parsed["method"].(string); ok && method != "" {
		return method
	}
	if typ, ok := parsed["type"].(string); ok && typ != "" {
		return typ
	}
	return ""
}
