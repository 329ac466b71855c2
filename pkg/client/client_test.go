package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetkite-hq/jetkite-go/pkg/jkerrors"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/tracker"
	"github.com/jetkite-hq/jetkite-go/pkg/transport"
	"github.com/jetkite-hq/jetkite-go/pkg/yellow"
)

func validParams() models.IntentParams {
	return models.IntentParams{
		SourceChain:  "ethereum",
		DestChain:    "base",
		TokenIn:      "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		TokenOut:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		AmountIn:     "1000000000000000000",
		MinAmountOut: "995000000000000000",
		Deadline:     time.Now().Add(time.Hour).UnixMilli(),
	}
}

// intentBackend tracks submissions and walks each intent through a fixed
// status script, one step per status poll.
type intentBackend struct {
	script []models.ExecutionStatus
	polls  int32
}

func (b *intentBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		_, _ = w.Write([]byte(`{"intentId":"JK-a1b2c3d4e"}`))
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/intents/")
	n := atomic.AddInt32(&b.polls, 1)
	idx := int(n) - 1
	if idx >= len(b.script) {
		idx = len(b.script) - 1
	}
	fmt.Fprintf(w, `{"id":"%s","status":"%s"}`, id, b.script[idx])
}

func newFacade(t *testing.T, handler http.Handler, yellowCfg *yellow.Config) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tcfg := transport.DefaultConfig(server.URL)
	tcfg.MaxRetries = 0
	tcfg.RetryDelay = time.Millisecond
	c, err := New(Config{Transport: tcfg, Yellow: yellowCfg})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNew(t *testing.T) {
	t.Run("wires every subsystem", func(t *testing.T) {
		c := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), nil)
		assert.NotNil(t, c.Transport)
		assert.NotNil(t, c.Intents)
		assert.NotNil(t, c.Tracker)
		assert.NotNil(t, c.Agent)
		assert.NotNil(t, c.Quoter)
		assert.Nil(t, c.Yellow)
	})

	t.Run("yellow is built only when configured", func(t *testing.T) {
		c := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
			&yellow.Config{URL: "ws://127.0.0.1:1/nowhere"})
		assert.NotNil(t, c.Yellow)
		assert.False(t, c.Yellow.IsConnected())
	})

	t.Run("invalid transport config fails fast", func(t *testing.T) {
		_, err := New(Config{Transport: transport.Config{}})
		require.Error(t, err)
	})
}

func TestSubmitAndWait(t *testing.T) {
	backend := &intentBackend{script: []models.ExecutionStatus{
		models.StatusCreated, models.StatusExecuting, models.StatusSettled,
	}}
	c := newFacade(t, backend, nil)

	it, err := c.SubmitAndWait(context.Background(), validParams(), "0xsig",
		&tracker.WaitOptions{Interval: 5 * time.Millisecond, Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "JK-a1b2c3d4e", it.ID)
	assert.Equal(t, models.StatusSettled, it.Status)
}

func TestWaitForSettlement(t *testing.T) {
	fastOpts := &tracker.WaitOptions{Interval: 5 * time.Millisecond, Timeout: 2 * time.Second}

	t.Run("returns the settled snapshot", func(t *testing.T) {
		backend := &intentBackend{script: []models.ExecutionStatus{
			models.StatusSettling, models.StatusSettled,
		}}
		c := newFacade(t, backend, nil)

		it, err := c.WaitForSettlement(context.Background(), "JK-a1b2c3d4e", fastOpts)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSettled, it.Status)
	})

	t.Run("an aborted intent ends the wait early", func(t *testing.T) {
		backend := &intentBackend{script: []models.ExecutionStatus{
			models.StatusExecuting, models.StatusAborted,
		}}
		c := newFacade(t, backend, nil)

		start := time.Now()
		it, err := c.WaitForSettlement(context.Background(), "JK-a1b2c3d4e", fastOpts)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAborted, it.Status)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestSubmitValidation(t *testing.T) {
	var hits int32
	c := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}), nil)

	params := validParams()
	params.AmountIn = "banana"
	_, err := c.Submit(context.Background(), params, "0xsig")

	var validationErr *jkerrors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchQuote(t *testing.T) {
	c := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amountOut":"997000000000000000"}`))
	}), nil)

	quote := c.FetchQuote(context.Background(), validParams())
	require.NotNil(t, quote)
	assert.Equal(t, "997000000000000000", quote.AmountOut)
	assert.False(t, quote.IsFallback())
}

func TestConnectYellow(t *testing.T) {
	t.Run("fails when yellow is not configured", func(t *testing.T) {
		c := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), nil)
		assert.ErrorContains(t, c.ConnectYellow(context.Background()), "not configured")
	})

	t.Run("propagates connection failures", func(t *testing.T) {
		c := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
			&yellow.Config{URL: "ws://127.0.0.1:1/nowhere"})
		assert.Error(t, c.ConnectYellow(context.Background()))
	})
}

func TestWatch(t *testing.T) {
	backend := &intentBackend{script: []models.ExecutionStatus{
		models.StatusCreated, models.StatusSettled,
	}}
	c := newFacade(t, backend, nil)

	var completes int32
	w := c.Watch("JK-a1b2c3d4e", &tracker.WaitOptions{Interval: 5 * time.Millisecond, Timeout: 2 * time.Second}).
		OnComplete(func(*models.Intent) { atomic.AddInt32(&completes, 1) })

	deadline := time.Now().Add(2 * time.Second)
	for !w.Stopped() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	require.True(t, w.Stopped())
	assert.Equal(t, int32(1), atomic.LoadInt32(&completes))
}
