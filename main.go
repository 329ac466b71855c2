package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/circuitbreaker"
	"github.com/jetkite-hq/jetkite-go/pkg/client"
	"github.com/jetkite-hq/jetkite-go/pkg/config"
	"github.com/jetkite-hq/jetkite-go/pkg/health"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/models"
	"github.com/jetkite-hq/jetkite-go/pkg/tracker"
	"github.com/jetkite-hq/jetkite-go/pkg/transport"
	"github.com/jetkite-hq/jetkite-go/pkg/yellow"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		stdLogger,
	)

	clientCfg := client.Config{
		Transport: transport.Config{
			BaseURL:           cfg.APIEndpoint,
			Timeout:           cfg.Transport.Timeout,
			MaxRetries:        cfg.Transport.MaxRetries,
			RetryDelay:        cfg.Transport.RetryDelay,
			BackoffMultiplier: cfg.Transport.BackoffMultiplier,
			CacheEnabled:      cfg.Transport.CacheEnabled,
			CacheTTL:          cfg.Transport.CacheTTL,
			Breaker:           breaker,
		},
		Logger: stdLogger,
	}
	if cfg.Yellow.Enabled {
		clientCfg.Yellow = &yellow.Config{
			URL:                  cfg.Yellow.URL,
			MessageTimeout:       cfg.Yellow.MessageTimeout,
			ReconnectDelay:       cfg.Yellow.ReconnectDelay,
			MaxReconnectAttempts: cfg.Yellow.MaxReconnectAttempts,
			CacheTTL:             cfg.Yellow.CacheTTL,
		}
	}

	jk, err := client.New(clientCfg)
	if err != nil {
		log.Fatalf("Failed to create JetKite client: %v", err)
	}
	defer jk.Close()

	if jk.Yellow != nil {
		if err := jk.ConnectYellow(ctx); err != nil {
			stdLogger.Notice("Clearnode unavailable, continuing without it: %v", err)
		}
	}

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Start the health and metrics server
	healthServer := health.NewServer(cfg.MetricsPort, cfg.APIEndpoint, breaker, jk.Yellow)
	go func() {
		if err := healthServer.Start(ctx); err != nil {
			stdLogger.Error("Health server error: %v", err)
		}
	}()

	log.Println("Starting the intent watcher...")
	watchIntents(ctx, jk, cfg, stdLogger)
}

// watchIntents follows every open intent to its terminal status and picks
// up newly submitted ones on each sweep.
func watchIntents(ctx context.Context, jk *client.Client, cfg *config.Config, stdLogger logger.Logger) {
	watched := make(map[string]*tracker.Watcher)
	defer func() {
		for _, w := range watched {
			w.Stop()
		}
	}()

	for {
		intents, err := jk.Intents.List(ctx)
		if err != nil {
			stdLogger.Error("Failed to list intents: %v", err)
		}

		for _, it := range intents {
			if it.Status.IsTerminal() {
				continue
			}
			if _, ok := watched[it.ID]; ok {
				continue
			}
			id := it.ID
			stdLogger.InfoWithScope(logger.Track, "Watching intent %s (status %s)", id, it.Status)
			watched[id] = jk.Watch(id, &tracker.WaitOptions{
				Interval: cfg.PollingInterval,
				Timeout:  cfg.WaitTimeout,
			}).OnUpdate(func(it *models.Intent) {
				stdLogger.InfoWithScope(logger.Track, "Intent %s -> %s", id, it.Status)
			}).OnComplete(func(it *models.Intent) {
				stdLogger.NoticeWithScope(logger.Track, "Intent %s finished as %s (tx %s)", id, it.Status, it.SettlementTx)
			}).OnError(func(err error) {
				stdLogger.ErrorWithScope(logger.Track, "Watcher for intent %s failed: %v", id, err)
			})
		}

		// Drop finished watchers so a re-listed id can be watched again.
		for id, w := range watched {
			if w.Stopped() {
				delete(watched, id)
			}
		}

		select {
		case <-ctx.Done():
			log.Println("Intent watcher shutting down")
			return
		case <-time.After(cfg.PollingInterval * 5):
		}
	}
}
