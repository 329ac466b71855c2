package agent

import (
	"context"
	"sync"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/metrics"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// DefaultSubscriptionInterval is the delay between subscription sweeps.
const DefaultSubscriptionInterval = 5 * time.Second

// SubscriptionOptions tunes a multi-intent subscription.
type SubscriptionOptions struct {
	Interval time.Duration
}

// Subscription periodically fetches a set of intents and reports status
// changes through one callback. It ends naturally once every watched
// intent is terminal, or when Unsubscribe is called.
type Subscription struct {
	ids      []string
	callback func(*models.Intent)
	interval time.Duration
	agent    *Agent

	mu         sync.Mutex
	lastStatus map[string]models.ExecutionStatus
	done       map[string]bool
	stopped    bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// SubscribeToUpdates starts polling every id and invokes callback once
// per observed status change. Per-intent failures are logged and retried
// on the next sweep; they never abort the other intents.
func (a *Agent) SubscribeToUpdates(ids []string, callback func(*models.Intent), opts *SubscriptionOptions) *Subscription {
	interval := DefaultSubscriptionInterval
	if opts != nil && opts.Interval > 0 {
		interval = opts.Interval
	}
	s := &Subscription{
		ids:        append([]string(nil), ids...),
		callback:   callback,
		interval:   interval,
		agent:      a,
		lastStatus: make(map[string]models.ExecutionStatus),
		done:       make(map[string]bool),
		stopCh:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Unsubscribe halts all future polling. Safe to call multiple times or
// after the subscription's own natural end.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.stopCh)
	})
}

// Stopped reports whether the subscription has halted.
func (s *Subscription) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Subscription) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	for {
		if s.sweep(ctx) {
			s.Unsubscribe()
			return
		}
		select {
		case <-s.stopCh:
			return
		case <-time.After(s.interval):
		}
	}
}

// sweep polls every non-terminal intent once and reports whether all of
// them have finished.
func (s *Subscription) sweep(ctx context.Context) bool {
	remaining := 0
	for _, id := range s.ids {
		if s.Stopped() {
			return false
		}
		s.mu.Lock()
		finished := s.done[id]
		s.mu.Unlock()
		if finished {
			continue
		}
		remaining++

		it, err := s.agent.tracker.GetStatus(ctx, id)
		if err != nil {
			metrics.WatcherPolls.WithLabelValues("error").Inc()
			s.agent.logger.DebugWithScope(logger.Agent, "Subscription poll for %s failed: %v", id, err)
			continue
		}
		metrics.WatcherPolls.WithLabelValues("success").Inc()

		s.mu.Lock()
		last, seen := s.lastStatus[id]
		changed := !seen || last != it.Status
		s.lastStatus[id] = it.Status
		if it.Status.IsTerminal() {
			s.done[id] = true
			remaining--
		}
		stopped := s.stopped
		s.mu.Unlock()

		if changed && !stopped {
			s.invoke(it)
		}
	}
	return remaining == 0
}

// invoke runs the callback with panic isolation.
func (s *Subscription) invoke(it *models.Intent) {
	defer func() {
		if r := recover(); r != nil {
			s.agent.logger.ErrorWithScope(logger.Agent, "Subscription callback panicked: %v", r)
		}
	}()
	s.callback(it)
}
