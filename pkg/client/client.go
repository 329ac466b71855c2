// Package client is the JetKite facade: one object aggregating intent
// submission, execution tracking, agent utilities, quoting and the
// optional Yellow state-channel client.
package client

import (
	"context"
	"fmt"

	"github.com/jetkite-hq/jetkite-go/pkg/agent"
	"github.com/jetkite-hq/jetkite-go/pkg/intent"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/quoter"
	"github.com/jetkite-hq/jetkite-go/pkg/tracker"
	"github.com/jetkite-hq/jetkite-go/pkg/transport"
	"github.com/jetkite-hq/jetkite-go/pkg/yellow"
)

// Config wires the facade. Yellow is optional: the state-channel client
// is only constructed when a yellow config is supplied.
type Config struct {
	Transport transport.Config
	// Yellow enables the state-channel client when non-nil.
	Yellow *yellow.Config
	Logger logger.Logger
}

// Client is the facade over every JetKite subsystem.
type Client struct {
	Transport *transport.Client
	Intents   *intent.Manager
	Tracker   *tracker.Tracker
	Agent     *agent.Agent
	Quoter    *quoter.Quoter
	// Yellow is nil unless Config.Yellow was supplied.
	Yellow *yellow.Client

	logger logger.Logger
}

// New builds the facade. Construction fails fast on invalid transport
// configuration.
func New(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.Transport.Logger == nil {
		cfg.Transport.Logger = log
	}

	tc, err := transport.NewClient(cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	manager := intent.NewManager(tc, log)
	trk := tracker.NewTracker(tc, log)

	c := &Client{
		Transport: tc,
		Intents:   manager,
		Tracker:   trk,
		Agent:     agent.New(manager, trk, log),
		Quoter:    quoter.New(tc, log),
		logger:    log,
	}

	if cfg.Yellow != nil {
		ycfg := *cfg.Yellow
		if ycfg.Logger == nil {
			ycfg.Logger = log
		}
		c.Yellow = yellow.NewClient(ycfg)
	}
	return c, nil
}

// Submit validates and submits an intent, returning its server id.
func (c *Client) Submit(ctx context.Context, params models.IntentParams, signature string) (string, error) {
	return c.Intents.Submit(ctx, params, signature)
}

// SubmitAndWait submits an intent and blocks until it reaches any
// terminal status.
func (c *Client) SubmitAndWait(ctx context.Context, params models.IntentParams, signature string, opts *tracker.WaitOptions) (*models.Intent, error) {
	id, err := c.Intents.Submit(ctx, params, signature)
	if err != nil {
		return nil, err
	}
	terminal := []models.ExecutionStatus{models.StatusSettled, models.StatusAborted, models.StatusExpired}
	return c.Tracker.WaitForStatus(ctx, id, terminal, opts)
}

// WaitForSettlement waits for SETTLED, stopping early on ABORTED or
// EXPIRED so a dead intent never burns the whole timeout.
func (c *Client) WaitForSettlement(ctx context.Context, id string, opts *tracker.WaitOptions) (*models.Intent, error) {
	waitOpts := tracker.WaitOptions{}
	if opts != nil {
		waitOpts = *opts
	}
	waitOpts.StopStatuses = append(waitOpts.StopStatuses, models.StatusAborted, models.StatusExpired)
	return c.Tracker.WaitForStatus(ctx, id, []models.ExecutionStatus{models.StatusSettled}, &waitOpts)
}

// Watch starts a long-lived watcher on an intent.
func (c *Client) Watch(id string, opts *tracker.WaitOptions) *tracker.Watcher {
	return c.Tracker.Watch(id, opts)
}

// FetchQuote asks the routing aggregator for a quote, degrading to a
// deterministic fallback quote when it is unreachable.
func (c *Client) FetchQuote(ctx context.Context, params models.IntentParams) *models.Quote {
	return c.Quoter.FetchQuote(ctx, params)
}

// ConnectYellow opens the clearnode socket. Fails when the facade was
// built without a yellow config.
func (c *Client) ConnectYellow(ctx context.Context) error {
	if c.Yellow == nil {
		return fmt.Errorf("client: yellow is not configured")
	}
	return c.Yellow.Connect(ctx)
}

// Close tears down long-lived resources: the yellow connection and the
// transport cache. Watchers hold their own stop handles.
func (c *Client) Close() {
	if c.Yellow != nil {
		c.Yellow.Dispose()
	}
	c.Transport.ClearCache()
}
