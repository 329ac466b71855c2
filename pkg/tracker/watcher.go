package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/jkerrors"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/metrics"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// UpdateCallback receives a fresh snapshot after a genuine status change.
type UpdateCallback func(*models.Intent)

// ErrorCallback receives the single terminal error of a watcher.
type ErrorCallback func(error)

// Watcher is a long-lived, cancellable subscription over one intent's
// status. OnUpdate fires only on genuine transitions (the baseline poll
// never fires it), OnComplete fires exactly once on a terminal status and
// OnError fires exactly once on a transport failure or internal timeout.
// After either terminal event, polling stops automatically.
type Watcher struct {
	id      string
	tracker *Tracker
	opts    WaitOptions

	mu          sync.Mutex
	updateFns   []UpdateCallback
	completeFns []UpdateCallback
	errorFns    []ErrorCallback
	lastStatus  models.ExecutionStatus
	baselined   bool
	stopped     bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Watch starts polling the intent and returns its watcher. Callbacks may
// be registered before or after the first poll; the registries are
// independent and a callback panic never blocks its siblings.
func (t *Tracker) Watch(id string, opts *WaitOptions) *Watcher {
	w := &Watcher{
		id:      id,
		tracker: t,
		opts:    opts.normalize(),
		stopCh:  make(chan struct{}),
	}
	metrics.ActiveWatchers.Inc()
	go w.run()
	return w
}

// OnUpdate registers a callback for genuine status transitions.
func (w *Watcher) OnUpdate(fn UpdateCallback) *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updateFns = append(w.updateFns, fn)
	return w
}

// OnComplete registers a callback for the terminal snapshot.
func (w *Watcher) OnComplete(fn UpdateCallback) *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.completeFns = append(w.completeFns, fn)
	return w
}

// OnError registers a callback for the watcher's terminal error.
func (w *Watcher) OnError(fn ErrorCallback) *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errorFns = append(w.errorFns, fn)
	return w
}

// Stop halts polling. Idempotent: safe to call repeatedly, concurrently
// and after natural completion.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.stopCh)
		metrics.ActiveWatchers.Dec()
	})
}

// Unsubscribe is an alias for Stop.
func (w *Watcher) Unsubscribe() {
	w.Stop()
}

// Stopped reports whether the watcher has halted.
func (w *Watcher) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// run is the polling loop. It polls immediately to establish the
// baseline, then on every interval tick until a terminal event or Stop.
func (w *Watcher) run() {
	deadline := time.Now().Add(w.opts.Timeout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.stopCh
		cancel()
	}()

	for {
		if w.Stopped() {
			return
		}
		if time.Now().After(deadline) {
			timeoutErr := jkerrors.NewTimeoutError(
				fmt.Sprintf("watcher for intent %s timed out after %v", w.id, w.opts.Timeout),
				w.opts.Timeout,
			)
			timeoutErr.WithContext("intentId", w.id)
			w.fail(timeoutErr)
			return
		}

		it, err := w.tracker.GetStatus(ctx, w.id)
		if w.Stopped() {
			// Stop raced the poll; drop the result silently.
			return
		}
		if err != nil {
			metrics.WatcherPolls.WithLabelValues("error").Inc()
			w.fail(err)
			return
		}
		metrics.WatcherPolls.WithLabelValues("success").Inc()

		if w.observe(it) {
			return
		}

		select {
		case <-w.stopCh:
			return
		case <-time.After(w.opts.Interval):
		}
	}
}

// observe applies one fresh snapshot and reports whether polling is done.
func (w *Watcher) observe(it *models.Intent) bool {
	w.mu.Lock()
	firstPoll := !w.baselined
	changed := w.baselined && it.Status != w.lastStatus
	w.baselined = true
	w.lastStatus = it.Status
	updateFns := append([]UpdateCallback(nil), w.updateFns...)
	completeFns := append([]UpdateCallback(nil), w.completeFns...)
	w.mu.Unlock()

	if changed {
		for _, fn := range updateFns {
			safeInvoke(w.tracker.logger, func() { fn(it) })
		}
	}

	terminal := it.Status.IsTerminal() || statusIn(it.Status, w.opts.StopStatuses)
	if terminal {
		if !firstPoll || it.Status.IsTerminal() {
			for _, fn := range completeFns {
				safeInvoke(w.tracker.logger, func() { fn(it) })
			}
		}
		w.Stop()
		return true
	}
	return false
}

// fail dispatches the watcher's single terminal error and stops polling.
func (w *Watcher) fail(err error) {
	w.mu.Lock()
	errorFns := append([]ErrorCallback(nil), w.errorFns...)
	w.mu.Unlock()

	for _, fn := range errorFns {
		safeInvoke(w.tracker.logger, func() { fn(err) })
	}
	w.Stop()
}

// safeInvoke runs one callback with panic isolation so a broken handler
// never blocks its siblings.
func safeInvoke(log logger.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorWithScope(logger.Track, "Watcher callback panicked: %v", r)
		}
	}()
	fn()
}
