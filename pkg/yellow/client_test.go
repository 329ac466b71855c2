package yellow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

func testClientConfig(url string) Config {
	return Config{
		URL:            url,
		MessageTimeout: time.Second,
		ReconnectDelay: 10 * time.Millisecond,
		CacheTTL:       time.Minute,
	}
}

func stateParams(channelID string, status models.ChannelStatus) map[string]interface{} {
	return map[string]interface{}{
		"channelId": channelID,
		"status":    string(status),
		"allocations": []map[string]string{
			{"participant": "0x1111111111111111111111111111111111111111", "asset": "usdc", "amount": "1000000"},
		},
	}
}

func TestGetChannelState(t *testing.T) {
	t.Run("degrades to a fallback when disconnected", func(t *testing.T) {
		client := NewClient(testClientConfig("ws://127.0.0.1:1/nowhere"))

		result := client.GetChannelState(context.Background(), "ch_1")
		assert.Equal(t, "ch_1", result.ChannelID)
		assert.Nil(t, result.State)
		require.NotNil(t, result.Fallback)
		assert.Equal(t, FallbackReasonUnavailable, result.Fallback.ReasonCode)
		assert.NotEmpty(t, result.Fallback.Message)
	})

	t.Run("refreshes through the clearnode and caches the state", func(t *testing.T) {
		var stateRequests int32
		node := newFakeClearnode(t, func(conn *websocket.Conn, writeMu *sync.Mutex, msg map[string]interface{}) {
			if msg["method"] != MethodGetChannelState {
				return
			}
			atomic.AddInt32(&stateRequests, 1)
			echoResponder(stateParams("ch_1", models.ChannelActive))(conn, writeMu, msg)
		})
		client := NewClient(testClientConfig(node.URL()))
		require.NoError(t, client.Connect(context.Background()))
		defer client.Disconnect()

		first := client.GetChannelState(context.Background(), "ch_1")
		require.NotNil(t, first.State)
		assert.Equal(t, models.ChannelActive, first.State.Status)
		assert.Nil(t, first.Fallback)

		second := client.GetChannelState(context.Background(), "ch_1")
		require.NotNil(t, second.State)
		assert.Equal(t, int32(1), atomic.LoadInt32(&stateRequests))
	})

	t.Run("falls back when the clearnode never answers", func(t *testing.T) {
		node := newFakeClearnode(t, nil)
		cfg := testClientConfig(node.URL())
		cfg.MessageTimeout = 30 * time.Millisecond
		client := NewClient(cfg)
		require.NoError(t, client.Connect(context.Background()))
		defer client.Disconnect()

		result := client.GetChannelState(context.Background(), "ch_1")
		assert.Nil(t, result.State)
		require.NotNil(t, result.Fallback)
		assert.Equal(t, FallbackReasonUnavailable, result.Fallback.ReasonCode)
	})
}

func TestChannelOperations(t *testing.T) {
	node := newFakeClearnode(t, func(conn *websocket.Conn, writeMu *sync.Mutex, msg map[string]interface{}) {
		switch msg["method"] {
		case MethodChannelOpen:
			echoResponder(stateParams("ch_new", models.ChannelInitial))(conn, writeMu, msg)
		case MethodChannelResize:
			echoResponder(stateParams("ch_new", models.ChannelActive))(conn, writeMu, msg)
		case MethodChannelClose:
			echoResponder(stateParams("ch_new", models.ChannelFinal))(conn, writeMu, msg)
		}
	})
	client := NewClient(testClientConfig(node.URL()))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	allocations := []models.Allocation{
		{Participant: "0x1111111111111111111111111111111111111111", Asset: "usdc", Amount: "1000000"},
	}

	t.Run("open", func(t *testing.T) {
		state, err := client.OpenChannel(context.Background(), allocations)
		require.NoError(t, err)
		assert.Equal(t, "ch_new", state.ChannelID)
		assert.Equal(t, models.ChannelInitial, state.Status)
	})

	t.Run("resize", func(t *testing.T) {
		state, err := client.ResizeChannel(context.Background(), "ch_new", allocations)
		require.NoError(t, err)
		assert.Equal(t, models.ChannelActive, state.Status)
	})

	t.Run("close caches the final state", func(t *testing.T) {
		state, err := client.CloseChannel(context.Background(), "ch_new")
		require.NoError(t, err)
		assert.Equal(t, models.ChannelFinal, state.Status)

		cached, ok := client.Cache().Get("ch_new")
		require.True(t, ok)
		assert.Equal(t, models.ChannelFinal, cached.Status)
	})
}

func TestGetChannels(t *testing.T) {
	node := newFakeClearnode(t, func(conn *websocket.Conn, writeMu *sync.Mutex, msg map[string]interface{}) {
		if msg["method"] != MethodGetChannels {
			return
		}
		echoResponder(map[string]interface{}{
			"channels": []map[string]interface{}{
				stateParams("ch_1", models.ChannelActive),
				stateParams("ch_2", models.ChannelFinal),
			},
		})(conn, writeMu, msg)
	})
	client := NewClient(testClientConfig(node.URL()))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	channels, err := client.GetChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "ch_1", channels[0].ChannelID)

	// Each listed channel lands in the cache.
	_, ok := client.Cache().Get("ch_2")
	assert.True(t, ok)
}

func TestHandleNotification(t *testing.T) {
	t.Run("notification frames trigger a cache refresh", func(t *testing.T) {
		var refreshes int32
		node := newFakeClearnode(t, func(conn *websocket.Conn, writeMu *sync.Mutex, msg map[string]interface{}) {
			if msg["method"] != MethodGetChannelState {
				return
			}
			atomic.AddInt32(&refreshes, 1)
			echoResponder(stateParams("ch_1", models.ChannelActive))(conn, writeMu, msg)
		})
		client := NewClient(testClientConfig(node.URL()))
		require.NoError(t, client.Connect(context.Background()))
		defer client.Disconnect()

		node.Broadcast(t, map[string]interface{}{
			"type":   "notification",
			"params": map[string]interface{}{"channelId": "ch_1"},
		})

		deadline := time.Now().Add(2 * time.Second)
		for atomic.LoadInt32(&refreshes) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))

		cacheDeadline := time.Now().Add(time.Second)
		for time.Now().Before(cacheDeadline) {
			if _, ok := client.Cache().Get("ch_1"); ok {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("notification never refreshed the cache")
	})

	t.Run("correlated responses never trigger a refresh", func(t *testing.T) {
		var stateRequests int32
		node := newFakeClearnode(t, func(conn *websocket.Conn, writeMu *sync.Mutex, msg map[string]interface{}) {
			if msg["method"] != MethodGetChannelState {
				return
			}
			atomic.AddInt32(&stateRequests, 1)
			echoResponder(stateParams("ch_1", models.ChannelActive))(conn, writeMu, msg)
		})
		client := NewClient(testClientConfig(node.URL()))
		require.NoError(t, client.Connect(context.Background()))
		defer client.Disconnect()

		result := client.GetChannelState(context.Background(), "ch_1")
		require.NotNil(t, result.State)

		// A response frame carries a method field; it must not spiral into
		// a refresh loop.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), atomic.LoadInt32(&stateRequests))
	})

	t.Run("notifications without a channel id are ignored", func(t *testing.T) {
		var stateRequests int32
		node := newFakeClearnode(t, func(conn *websocket.Conn, writeMu *sync.Mutex, msg map[string]interface{}) {
			if msg["method"] == MethodGetChannelState {
				atomic.AddInt32(&stateRequests, 1)
			}
		})
		client := NewClient(testClientConfig(node.URL()))
		require.NoError(t, client.Connect(context.Background()))
		defer client.Disconnect()

		node.Broadcast(t, map[string]interface{}{"type": "notification"})
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(0), atomic.LoadInt32(&stateRequests))
	})
}

func TestSingleton(t *testing.T) {
	t.Cleanup(Reset)

	t.Run("get before init returns nil", func(t *testing.T) {
		Reset()
		assert.Nil(t, Get())
	})

	t.Run("init then get returns the same client", func(t *testing.T) {
		Reset()
		client, err := Init(testClientConfig("ws://127.0.0.1:1/nowhere"))
		require.NoError(t, err)
		assert.Same(t, client, Get())
	})

	t.Run("double init fails until reset", func(t *testing.T) {
		Reset()
		_, err := Init(testClientConfig("ws://127.0.0.1:1/nowhere"))
		require.NoError(t, err)

		_, err = Init(testClientConfig("ws://127.0.0.1:1/nowhere"))
		assert.ErrorContains(t, err, "already initialized")

		Reset()
		_, err = Init(testClientConfig("ws://127.0.0.1:1/nowhere"))
		assert.NoError(t, err)
	})

	t.Run("reset is safe with no client", func(t *testing.T) {
		Reset()
		Reset()
	})
}
