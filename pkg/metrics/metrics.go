package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jetkite_requests_total",
		Help: "The total number of API requests by method and outcome",
	}, []string{"method", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jetkite_request_duration_seconds",
		Help:    "Time taken by API requests including retries",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // Start at 10ms with 12 buckets doubling in size
	}, []string{"method"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jetkite_request_retries_total",
		Help: "The total number of request retry attempts",
	}, []string{"method"})

	RetriesExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jetkite_request_retries_exhausted_total",
		Help: "Number of requests that failed after exhausting every retry",
	}, []string{"method"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jetkite_response_cache_hits_total",
		Help: "Number of GET responses served from the local cache",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jetkite_response_cache_misses_total",
		Help: "Number of cacheable GET requests that went to the wire",
	})

	CircuitBreakerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jetkite_circuit_breaker_rejections_total",
		Help: "Requests rejected locally because the circuit breaker was open",
	})

	IntentsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jetkite_intents_submitted_total",
		Help: "The total number of submitted intents by outcome",
	}, []string{"outcome"})

	ActiveWatchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jetkite_active_watchers",
		Help: "Number of currently polling intent watchers",
	})

	WatcherPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jetkite_watcher_polls_total",
		Help: "Status polls performed by watchers and subscriptions",
	}, []string{"outcome"})

	SocketFramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jetkite_socket_frames_in_total",
		Help: "Inbound frames received on the clearnode socket",
	})

	SocketFramesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jetkite_socket_frames_out_total",
		Help: "Outbound frames written to the clearnode socket",
	})

	PendingCorrelations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jetkite_socket_pending_correlations",
		Help: "Requests awaiting a correlated clearnode response",
	})

	ChannelCacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jetkite_channel_cache_refreshes_total",
		Help: "Channel state cache refreshes by outcome",
	}, []string{"outcome"})
)
