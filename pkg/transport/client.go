// Package transport implements the resilient HTTP request layer every
// higher JetKite component issues requests through: per-attempt timeouts,
// retry with exponential backoff, status classification, GET response
// caching and an optional circuit breaker.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/circuitbreaker"
	"github.com/jetkite-hq/jetkite-go/pkg/jkerrors"
	"github.com/jetkite-hq/jetkite-go/pkg/logger"
	"github.com/jetkite-hq/jetkite-go/pkg/metrics"
)

const (
	// DefaultTimeout bounds each individual request attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of additional attempts beyond the first.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the delay before the first retry.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultBackoffMultiplier grows the delay between consecutive retries.
	DefaultBackoffMultiplier = 2.0

	// DefaultCacheTTL bounds how long GET responses are served locally.
	DefaultCacheTTL = 30 * time.Second
)

// Config holds the configuration for the transport client
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	CacheEnabled      bool
	CacheTTL          time.Duration
	DefaultHeaders    map[string]string

	// Logger defaults to EmptyLogger when nil.
	Logger logger.Logger
	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
	// Breaker optionally short-circuits requests while the upstream is
	// failing. Nil disables the breaker.
	Breaker *circuitbreaker.CircuitBreaker
}

// DefaultConfig returns a config with production defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           DefaultTimeout,
		MaxRetries:        DefaultMaxRetries,
		RetryDelay:        DefaultRetryDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		CacheEnabled:      true,
		CacheTTL:          DefaultCacheTTL,
	}
}

// RequestOptions tweaks a single request.
type RequestOptions struct {
	// SkipCache bypasses the response cache for this request.
	SkipCache bool
	// Headers are merged over the client's default headers.
	Headers map[string]string
}

// Client executes JSON HTTP requests against the JetKite API
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *ResponseCache
	logger     logger.Logger
}

// NewClient validates the configuration and creates a transport client.
// Invalid configuration fails fast rather than surfacing later as odd
// request behavior.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("transport: timeout must be positive, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("transport: max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("transport: retry delay must not be negative, got %v", cfg.RetryDelay)
	}
	if cfg.BackoffMultiplier < 1 {
		return nil, fmt.Errorf("transport: backoff multiplier must be >= 1, got %v", cfg.BackoffMultiplier)
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("transport: cache TTL must not be negative, got %v", cfg.CacheTTL)
	}

	log := cfg.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		cache:      NewResponseCache(cfg.CacheTTL),
		logger:     log,
	}, nil
}

// Get executes a GET request against path.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, path, nil, opts)
}

// Post executes a POST request with a JSON body against path.
func (c *Client) Post(ctx context.Context, path string, body interface{}, opts *RequestOptions) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPost, path, body, opts)
}

// Request executes an HTTP request with retry, caching and classification.
// 4xx responses surface immediately as API failures; 5xx responses and
// network-level failures are retried up to MaxRetries additional attempts
// and then wrapped in a Retry failure.
func (c *Client) Request(ctx context.Context, method, path string, body interface{}, opts *RequestOptions) (json.RawMessage, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	cacheable := c.config.CacheEnabled && method == http.MethodGet && !opts.SkipCache
	cacheKey := method + " " + path + " " + string(bodyBytes)
	if cacheable {
		if cached, ok := c.cache.Get(cacheKey); ok {
			metrics.CacheHits.Inc()
			c.logger.DebugWithScope(logger.HTTP, "Cache hit for %s %s", method, path)
			return cached, nil
		}
		metrics.CacheMisses.Inc()
	}

	if c.config.Breaker != nil && c.config.Breaker.IsOpen() {
		metrics.CircuitBreakerRejections.Inc()
		return nil, jkerrors.NewNetworkError("circuit breaker open for "+c.config.BaseURL, nil)
	}

	start := time.Now()
	attempts := c.config.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := retryDelay(c.config.RetryDelay, c.config.BackoffMultiplier, attempt-1)
			c.logger.DebugWithScope(logger.HTTP, "Retrying %s %s in %v (attempt %d/%d)", method, path, delay, attempt, attempts)
			metrics.RetriesTotal.WithLabelValues(method).Inc()
			select {
			case <-ctx.Done():
				return nil, jkerrors.NewNetworkError("request cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		data, err := c.attempt(ctx, method, path, bodyBytes, opts.Headers)
		if err == nil {
			if cacheable {
				c.cache.Set(cacheKey, data)
			}
			metrics.RequestsTotal.WithLabelValues(method, "success").Inc()
			metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			return data, nil
		}

		lastErr = err

		// The caller going away is not a transport failure to retry.
		if ctx.Err() != nil {
			return nil, jkerrors.NewNetworkError("request cancelled", ctx.Err())
		}

		if !retryableAttempt(err) {
			metrics.RequestsTotal.WithLabelValues(method, "error").Inc()
			return nil, err
		}

		c.logger.DebugWithScope(logger.HTTP, "Attempt %d/%d for %s %s failed: %v", attempt, attempts, method, path, err)
	}

	if c.config.Breaker != nil {
		c.config.Breaker.RecordFailure()
	}
	metrics.RequestsTotal.WithLabelValues(method, "error").Inc()
	metrics.RetriesExhausted.WithLabelValues(method).Inc()
	c.logger.ErrorWithScope(logger.HTTP, "All %d attempts for %s %s failed: %v", attempts, method, path, lastErr)

	retryErr := jkerrors.NewRetryError(attempts, lastErr)
	retryErr.WithContext("method", method)
	retryErr.WithContext("path", path)
	return nil, retryErr
}

// attempt executes exactly one bounded request attempt.
func (c *Client) attempt(ctx context.Context, method, path string, bodyBytes []byte, headers map[string]string) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var reader io.Reader
	if bodyBytes != nil {
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, jkerrors.NewNetworkError("failed to build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range c.config.DefaultHeaders {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Attempt deadline elapsed: the in-flight call was cancelled.
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			timeoutErr := jkerrors.NewTimeoutError(
				fmt.Sprintf("%s %s timed out after %v", method, path, c.config.Timeout),
				c.config.Timeout,
			)
			timeoutErr.WithContext("path", path)
			return nil, timeoutErr
		}
		return nil, jkerrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.ErrorWithScope(logger.HTTP, "Failed to close response body: %v", err)
		}
	}()

	// Read the response body regardless of status code
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, jkerrors.NewNetworkError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyError(resp.StatusCode, raw)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, jkerrors.NewAPIError("failed to parse response body", resp.StatusCode, string(raw))
	}
	return json.RawMessage(raw), nil
}

// ClearCache removes every cached response.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// ClearCachePrefix removes cached responses whose method+path key starts
// with prefix, e.g. "GET /intents".
func (c *Client) ClearCachePrefix(prefix string) {
	c.cache.ClearPrefix(prefix)
}

// BaseURL returns the configured base address.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// classifyError turns a non-2xx response into an APIError, preferring the
// server's message field when the body parses as JSON.
func classifyError(statusCode int, raw []byte) *jkerrors.APIError {
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		message := fmt.Sprintf("request failed with status %d", statusCode)
		if m, ok := parsed["message"].(string); ok && m != "" {
			message = m
		}
		return jkerrors.NewAPIError(message, statusCode, parsed)
	}
	return jkerrors.NewAPIError(
		fmt.Sprintf("request failed with status %d", statusCode),
		statusCode,
		string(raw),
	)
}

// retryableAttempt reports whether a single failed attempt should be
// retried: network failures, per-attempt timeouts and 5xx responses.
func retryableAttempt(err error) bool {
	var timeoutErr *jkerrors.TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	return jkerrors.IsRetryable(err)
}

// retryDelay computes the delay after the given failed attempt (1-based):
// base × multiplier^(attempt-1).
func retryDelay(base time.Duration, multiplier float64, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
	}
	return time.Duration(delay)
}
