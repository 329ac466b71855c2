// Package yellow implements the client side of the Yellow state-channel
// coordination protocol: a persistent clearnode socket with request
// correlation, channel lifecycle operations, a local channel-state cache
// and pure mappers from channel signals to the canonical execution
// vocabulary. Channel queries degrade to an explicit fallback payload
// when no clearnode is reachable.
package yellow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/metrics"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// FallbackReasonUnavailable marks a channel query answered locally
// because no live clearnode connection was available.
const FallbackReasonUnavailable = "YELLOW_UNAVAILABLE"

// Clearnode RPC methods.
const (
	MethodGetChannelState = "get_channel_state"
	MethodGetChannels     = "get_channels"
	MethodChannelOpen     = "channel_open"
	MethodChannelResize   = "channel_resize"
	MethodChannelClose    = "channel_close"
)

// Config configures the yellow protocol client.
type Config struct {
	// URL is the clearnode websocket address.
	URL string
	// MessageTimeout bounds each correlated request.
	MessageTimeout time.Duration
	// ReconnectDelay seeds the reconnect backoff.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps automatic reconnection; zero disables it.
	MaxReconnectAttempts int
	// CacheTTL bounds channel-state cache freshness.
	CacheTTL time.Duration
	Logger   logger.Logger
}

// request is the outbound RPC frame shape.
type request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

func newRequest(method string, params interface{}) request {
	return request{
		ID:     "req_" + uuid.NewString(),
		Method: method,
		Params: params,
	}
}

// Client presents channel lifecycle operations over one clearnode
// connection plus a locally cached view of channel state.
type Client struct {
	conn   *Connection
	cache  *ChannelCache
	logger logger.Logger
}

// NewClient creates a yellow client. The connection stays closed until
// Connect is called.
func NewClient(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	c := &Client{
		conn: NewConnection(ConnectionConfig{
			URL:                  cfg.URL,
			MessageTimeout:       cfg.MessageTimeout,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			Logger:               log,
		}),
		cache:  NewChannelCache(cfg.CacheTTL),
		logger: log,
	}
	c.conn.OnMessage(c.handleNotification)
	return c
}

// Connect opens the clearnode socket.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Disconnect closes the socket, rejecting pending requests.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Dispose disconnects and retires the client permanently.
func (c *Client) Dispose() {
	c.conn.Dispose()
}

// IsConnected reports whether the clearnode socket is open.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Connection exposes the underlying connection for event registration.
func (c *Client) Connection() *Connection {
	return c.conn
}

// GetChannelState returns the cached state when connected and fresh,
// refreshes through the connection otherwise, and degrades to an explicit
// fallback result when no clearnode is reachable. Callers branch on the
// Fallback field; "no live clearnode" is a normal, handleable outcome.
func (c *Client) GetChannelState(ctx context.Context, channelID string) models.ChannelStateResult {
	if c.conn.IsConnected() {
		if state, ok := c.cache.Get(channelID); ok {
			return models.ChannelStateResult{ChannelID: channelID, State: &state}
		}
		state, err := c.refreshChannelState(ctx, channelID)
		if err == nil {
			return models.ChannelStateResult{ChannelID: channelID, State: &state}
		}
		c.logger.DebugWithScope(logger.WS, "Channel state refresh for %s failed: %v", channelID, err)
	}

	return models.ChannelStateResult{
		ChannelID: channelID,
		Fallback: &models.Fallback{
			ReasonCode: FallbackReasonUnavailable,
			Message:    "clearnode unavailable, channel state unknown",
		},
	}
}

// refreshChannelState fetches one channel's state and caches it.
func (c *Client) refreshChannelState(ctx context.Context, channelID string) (models.ChannelState, error) {
	msg, err := c.conn.SendAndWait(ctx, newRequest(MethodGetChannelState, map[string]string{"channelId": channelID}), MethodGetChannelState, 0)
	if err != nil {
		metrics.ChannelCacheRefreshes.WithLabelValues("error").Inc()
		return models.ChannelState{}, err
	}
	state, err := channelStateFromMessage(msg)
	if err != nil {
		metrics.ChannelCacheRefreshes.WithLabelValues("error").Inc()
		return models.ChannelState{}, err
	}
	c.cache.Set(state)
	metrics.ChannelCacheRefreshes.WithLabelValues("success").Inc()
	return state, nil
}

// OpenChannel asks the clearnode to open a channel with the given
// allocations and caches the resulting state.
func (c *Client) OpenChannel(ctx context.Context, allocations []models.Allocation) (models.ChannelState, error) {
	return c.channelOp(ctx, MethodChannelOpen, map[string]interface{}{"allocations": allocations})
}

// ResizeChannel asks the clearnode to resize a channel's allocations.
func (c *Client) ResizeChannel(ctx context.Context, channelID string, allocations []models.Allocation) (models.ChannelState, error) {
	return c.channelOp(ctx, MethodChannelResize, map[string]interface{}{
		"channelId":   channelID,
		"allocations": allocations,
	})
}

// CloseChannel asks the clearnode to finalize a channel.
func (c *Client) CloseChannel(ctx context.Context, channelID string) (models.ChannelState, error) {
	return c.channelOp(ctx, MethodChannelClose, map[string]string{"channelId": channelID})
}

func (c *Client) channelOp(ctx context.Context, method string, params interface{}) (models.ChannelState, error) {
	msg, err := c.conn.SendAndWait(ctx, newRequest(method, params), method, 0)
	if err != nil {
		return models.ChannelState{}, err
	}
	state, err := channelStateFromMessage(msg)
	if err != nil {
		return models.ChannelState{}, err
	}
	c.cache.Set(state)
	return state, nil
}

// GetChannels lists every channel known to the clearnode for this client
// and refreshes the cache with each entry.
func (c *Client) GetChannels(ctx context.Context) ([]models.ChannelState, error) {
	msg, err := c.conn.SendAndWait(ctx, newRequest(MethodGetChannels, nil), MethodGetChannels, 0)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(msg["params"])
	if err != nil {
		return nil, fmt.Errorf("yellow: failed to re-encode channel list: %w", err)
	}
	var wrapper struct {
		Channels []models.ChannelState `json:"channels"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("yellow: failed to decode channel list: %w", err)
	}
	for _, state := range wrapper.Channels {
		c.cache.Set(state)
	}
	return wrapper.Channels, nil
}

// Cache exposes the channel-state cache.
func (c *Client) Cache() *ChannelCache {
	return c.cache
}

// handleNotification triggers a best-effort cache refresh for
// channel-id-bearing notification frames. Failures are swallowed: a
// transient clearnode hiccup must never break the primary request flow.
func (c *Client) handleNotification(frame Frame) {
	if frame.Parsed == nil {
		return
	}
	// Correlated responses carry a method field; only push-style
	// notification frames refresh the cache.
	if _, hasMethod := frame.Parsed["method"]; hasMethod {
		return
	}
	if typ, _ := frame.Parsed["type"].(string); typ != "notification" {
		return
	}
	channelID := notificationChannelID(frame.Parsed)
	if channelID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.conn.cfg.MessageTimeout)
		defer cancel()
		if _, err := c.refreshChannelState(ctx, channelID); err != nil {
			c.logger.DebugWithScope(logger.WS, "Opportunistic refresh for channel %s failed: %v", channelID, err)
		}
	}()
}

// notificationChannelID digs the channel id out of a notification frame,
// checking the top level and then the params object.
func notificationChannelID(parsed map[string]interface{}) string {
	if id, ok := parsed["channelId"].(string); ok {
		return id
	}
	if params, ok := parsed["params"].(map[string]interface{}); ok {
		if id, ok := params["channelId"].(string); ok {
			return id
		}
	}
	return ""
}

// channelStateFromMessage decodes the params object of a correlated
// response into a channel state.
func channelStateFromMessage(msg map[string]interface{}) (models.ChannelState, error) {
	var state models.ChannelState
	raw, err := json.Marshal(msg["params"])
	if err != nil {
		return state, fmt.Errorf("yellow: failed to re-encode channel state: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("yellow: failed to decode channel state: %w", err)
	}
	if state.ChannelID == "" {
		return state, fmt.Errorf("yellow: response missing channel id")
	}
	return state, nil
}
