// Package tracker follows intent execution: single status fetches,
// one-shot waits and long-lived cancellable watchers, all driven by
// polling through the transport client.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/jkerrors"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/transport"
)

const (
	// DefaultPollInterval is the delay between status polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultWaitTimeout bounds WaitForStatus and watcher lifetimes.
	// Finite by default: no wait may block forever.
	DefaultWaitTimeout = 60 * time.Second
)

// WaitOptions tunes a wait or watch loop. Zero values take the defaults.
type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// StopStatuses end the wait as successfully observed even when not
	// in the target set.
	StopStatuses []models.ExecutionStatus
}

func (o *WaitOptions) normalize() WaitOptions {
	out := WaitOptions{Interval: DefaultPollInterval, Timeout: DefaultWaitTimeout}
	if o != nil {
		if o.Interval > 0 {
			out.Interval = o.Interval
		}
		if o.Timeout > 0 {
			out.Timeout = o.Timeout
		}
		out.StopStatuses = o.StopStatuses
	}
	return out
}

// Tracker polls intent status through the transport client.
type Tracker struct {
	transport *transport.Client
	logger    logger.Logger
}

// NewTracker creates an execution tracker.
func NewTracker(tc *transport.Client, log logger.Logger) *Tracker {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Tracker{transport: tc, logger: log}
}

// GetStatus fetches a fresh intent snapshot. Polling always bypasses the
// response cache: a cached status would hide transitions for a whole TTL.
func (t *Tracker) GetStatus(ctx context.Context, id string) (*models.Intent, error) {
	raw, err := t.transport.Get(ctx, "/intents/"+id, &transport.RequestOptions{SkipCache: true})
	if err != nil {
		return nil, err
	}
	var it models.Intent
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil, fmt.Errorf("failed to decode intent %s: %w", id, err)
	}
	return &it, nil
}

// WaitForStatus polls until the intent reaches one of the target statuses
// or one of the stop statuses, returning the matching snapshot. It fails
// with a Timeout error carrying the intent id, targets and elapsed time
// when neither is reached within the configured timeout.
func (t *Tracker) WaitForStatus(ctx context.Context, id string, targets []models.ExecutionStatus, opts *WaitOptions) (*models.Intent, error) {
	cfg := opts.normalize()
	start := time.Now()
	deadline := start.Add(cfg.Timeout)

	for {
		it, err := t.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if statusIn(it.Status, targets) || statusIn(it.Status, cfg.StopStatuses) {
			return it, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := cfg.Interval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, jkerrors.NewNetworkError("wait cancelled", ctx.Err())
		case <-time.After(wait):
		}
		if time.Now().After(deadline) {
			break
		}
	}

	elapsed := time.Since(start)
	t.logger.DebugWithScope(logger.Track, "Wait for intent %s timed out after %v", id, elapsed)
	timeoutErr := jkerrors.NewTimeoutError(
		fmt.Sprintf("intent %s did not reach %v within %v", id, targets, cfg.Timeout),
		cfg.Timeout,
	)
	timeoutErr.WithContext("intentId", id)
	timeoutErr.WithContext("targets", targets)
	timeoutErr.WithContext("elapsed", elapsed)
	return nil, timeoutErr
}

func statusIn(status models.ExecutionStatus, set []models.ExecutionStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
