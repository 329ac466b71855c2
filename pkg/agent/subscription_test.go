package agent

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// scriptedIntents serves a per-id status sequence, one step per poll.
type scriptedIntents struct {
	mu      sync.Mutex
	scripts map[string][]models.ExecutionStatus
	polls   map[string]int
}

func (s *scriptedIntents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/intents/")
	s.mu.Lock()
	script := s.scripts[id]
	idx := s.polls[id]
	s.polls[id] = idx + 1
	s.mu.Unlock()

	if len(script) == 0 {
		http.Error(w, `{"message":"unknown intent"}`, http.StatusNotFound)
		return
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	fmt.Fprintf(w, `{"id":"%s","status":"%s"}`, id, script[idx])
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSubscribeToUpdates(t *testing.T) {
	fastOpts := &SubscriptionOptions{Interval: 5 * time.Millisecond}

	t.Run("reports each change and ends when all intents finish", func(t *testing.T) {
		backend := &scriptedIntents{
			scripts: map[string][]models.ExecutionStatus{
				"JK-one": {models.StatusCreated, models.StatusSettled},
				"JK-two": {models.StatusExecuting, models.StatusExecuting, models.StatusAborted},
			},
			polls: make(map[string]int),
		}
		a, _ := newTestAgent(t, backend)

		var mu sync.Mutex
		seen := make(map[string][]models.ExecutionStatus)
		sub := a.SubscribeToUpdates([]string{"JK-one", "JK-two"}, func(it *models.Intent) {
			mu.Lock()
			seen[it.ID] = append(seen[it.ID], it.Status)
			mu.Unlock()
		}, fastOpts)

		waitUntil(t, sub.Stopped)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []models.ExecutionStatus{models.StatusCreated, models.StatusSettled}, seen["JK-one"])
		// The repeated EXECUTING poll does not refire the callback.
		assert.Equal(t, []models.ExecutionStatus{models.StatusExecuting, models.StatusAborted}, seen["JK-two"])
	})

	t.Run("terminal intents are not polled again", func(t *testing.T) {
		backend := &scriptedIntents{
			scripts: map[string][]models.ExecutionStatus{
				"JK-done":    {models.StatusSettled},
				"JK-pending": {models.StatusCreated, models.StatusCreated, models.StatusSettled},
			},
			polls: make(map[string]int),
		}
		a, _ := newTestAgent(t, backend)

		sub := a.SubscribeToUpdates([]string{"JK-done", "JK-pending"}, func(*models.Intent) {}, fastOpts)
		waitUntil(t, sub.Stopped)

		backend.mu.Lock()
		defer backend.mu.Unlock()
		assert.Equal(t, 1, backend.polls["JK-done"])
		assert.Equal(t, 3, backend.polls["JK-pending"])
	})

	t.Run("a failing intent never aborts its neighbours", func(t *testing.T) {
		backend := &scriptedIntents{
			scripts: map[string][]models.ExecutionStatus{
				"JK-good": {models.StatusCreated, models.StatusSettled},
			},
			polls: make(map[string]int),
		}
		a, _ := newTestAgent(t, backend)

		var goodUpdates int32
		sub := a.SubscribeToUpdates([]string{"JK-gone", "JK-good"}, func(it *models.Intent) {
			if it.ID == "JK-good" {
				atomic.AddInt32(&goodUpdates, 1)
			}
		}, fastOpts)

		waitUntil(t, func() bool { return atomic.LoadInt32(&goodUpdates) >= 2 })
		sub.Unsubscribe()
	})

	t.Run("unsubscribe halts polling and is idempotent", func(t *testing.T) {
		backend := &scriptedIntents{
			scripts: map[string][]models.ExecutionStatus{
				"JK-slow": {models.StatusCreated},
			},
			polls: make(map[string]int),
		}
		a, _ := newTestAgent(t, backend)

		sub := a.SubscribeToUpdates([]string{"JK-slow"}, func(*models.Intent) {}, fastOpts)
		waitUntil(t, func() bool {
			backend.mu.Lock()
			defer backend.mu.Unlock()
			return backend.polls["JK-slow"] >= 1
		})

		sub.Unsubscribe()
		sub.Unsubscribe()
		assert.True(t, sub.Stopped())

		backend.mu.Lock()
		settled := backend.polls["JK-slow"]
		backend.mu.Unlock()
		time.Sleep(40 * time.Millisecond)
		backend.mu.Lock()
		defer backend.mu.Unlock()
		assert.LessOrEqual(t, backend.polls["JK-slow"], settled+1)
	})

	t.Run("panicking callback does not end the subscription", func(t *testing.T) {
		backend := &scriptedIntents{
			scripts: map[string][]models.ExecutionStatus{
				"JK-one": {models.StatusCreated, models.StatusQuoted, models.StatusSettled},
			},
			polls: make(map[string]int),
		}
		a, _ := newTestAgent(t, backend)

		var calls int32
		sub := a.SubscribeToUpdates([]string{"JK-one"}, func(*models.Intent) {
			atomic.AddInt32(&calls, 1)
			panic("broken handler")
		}, fastOpts)

		waitUntil(t, sub.Stopped)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}
