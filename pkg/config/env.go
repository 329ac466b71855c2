package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/logger"
)

const (
	// DefaultAPIEndpoint defines the default API endpoint for the JetKite service
	DefaultAPIEndpoint = "https://api.jetkite.exchange"

	// DefaultPollingInterval defines the default status polling interval in seconds
	DefaultPollingInterval = 2

	// DefaultWaitTimeout defines the default wait timeout in seconds
	DefaultWaitTimeout = 60

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultRequestTimeout defines the per-attempt request timeout in seconds
	DefaultRequestTimeout = 10

	// DefaultMaxRetries defines the retry attempts beyond the first
	DefaultMaxRetries = 3

	// DefaultRetryDelayMs defines the delay before the first retry in milliseconds
	DefaultRetryDelayMs = 500

	// DefaultBackoffMultiplier grows the delay between consecutive retries
	DefaultBackoffMultiplier = 2.0

	// DefaultCacheEnabled defines whether GET response caching is enabled
	DefaultCacheEnabled = true

	// DefaultCacheTTL defines the response cache time-to-live in seconds
	DefaultCacheTTL = 30

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in minutes
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in minutes
	DefaultCircuitBreakerReset = 15

	// DefaultYellowMessageTimeout defines the clearnode message timeout in seconds
	DefaultYellowMessageTimeout = 10

	// DefaultYellowReconnectDelayMs defines the initial reconnect delay in milliseconds
	DefaultYellowReconnectDelayMs = 1000

	// DefaultYellowMaxReconnectAttempts caps automatic clearnode reconnection
	DefaultYellowMaxReconnectAttempts = 5

	// DefaultYellowCacheTTL defines the channel-state cache time-to-live in seconds
	DefaultYellowCacheTTL = 30
)

// GetEnvAPIEndpoint returns the API endpoint from environment variables
func GetEnvAPIEndpoint() (string, error) {
	endpoint := os.Getenv("API_ENDPOINT")
	if endpoint == "" {
		return DefaultAPIEndpoint, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", fmt.Errorf("invalid API_ENDPOINT value: %s, must be a valid URL", endpoint)
	}
	return endpoint, nil
}

// GetEnvPollingInterval returns the polling interval in seconds from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	return envSeconds("POLLING_INTERVAL", DefaultPollingInterval)
}

// GetEnvWaitTimeout returns the wait timeout in seconds from environment variables
func GetEnvWaitTimeout() (time.Duration, error) {
	return envSeconds("WAIT_TIMEOUT", DefaultWaitTimeout)
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvTransportConfig returns the request-layer tuning from environment variables
func GetEnvTransportConfig() (TransportConfig, error) {
	cfg := TransportConfig{}

	timeout, err := envSeconds("REQUEST_TIMEOUT", DefaultRequestTimeout)
	if err != nil {
		return cfg, err
	}
	cfg.Timeout = timeout

	maxRetries, err := envInt("MAX_RETRIES", DefaultMaxRetries, 0)
	if err != nil {
		return cfg, err
	}
	cfg.MaxRetries = maxRetries

	retryDelay, err := envMillis("RETRY_DELAY_MS", DefaultRetryDelayMs)
	if err != nil {
		return cfg, err
	}
	cfg.RetryDelay = retryDelay

	backoff := os.Getenv("BACKOFF_MULTIPLIER")
	if backoff == "" {
		cfg.BackoffMultiplier = DefaultBackoffMultiplier
	} else {
		multiplier, err := strconv.ParseFloat(backoff, 64)
		if err != nil || multiplier < 1 {
			return cfg, fmt.Errorf("invalid BACKOFF_MULTIPLIER value: %s, must be a number >= 1", backoff)
		}
		cfg.BackoffMultiplier = multiplier
	}

	cacheEnabled, err := envBool("CACHE_ENABLED", DefaultCacheEnabled)
	if err != nil {
		return cfg, err
	}
	cfg.CacheEnabled = cacheEnabled

	cacheTTL, err := envSeconds("CACHE_TTL", DefaultCacheTTL)
	if err != nil {
		return cfg, err
	}
	cfg.CacheTTL = cacheTTL

	return cfg, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	return envBool("CIRCUIT_BREAKER_ENABLED", DefaultCircuitBreakerEnabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	return envInt("CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold, 1)
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	minutes, err := envInt("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow, 1)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	minutes, err := envInt("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset, 1)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetEnvYellowConfig returns the clearnode connection configuration from environment variables
func GetEnvYellowConfig() (YellowConfig, error) {
	cfg := YellowConfig{}

	enabled, err := envBool("YELLOW_ENABLED", false)
	if err != nil {
		return cfg, err
	}
	cfg.Enabled = enabled

	cfg.URL = os.Getenv("YELLOW_CLEARNODE_URL")
	if cfg.URL != "" {
		if _, err := url.ParseRequestURI(cfg.URL); err != nil {
			return cfg, fmt.Errorf("invalid YELLOW_CLEARNODE_URL value: %s, must be a valid URL", cfg.URL)
		}
	}

	messageTimeout, err := envSeconds("YELLOW_MESSAGE_TIMEOUT", DefaultYellowMessageTimeout)
	if err != nil {
		return cfg, err
	}
	cfg.MessageTimeout = messageTimeout

	reconnectDelay, err := envMillis("YELLOW_RECONNECT_DELAY_MS", DefaultYellowReconnectDelayMs)
	if err != nil {
		return cfg, err
	}
	cfg.ReconnectDelay = reconnectDelay

	maxAttempts, err := envInt("YELLOW_MAX_RECONNECT_ATTEMPTS", DefaultYellowMaxReconnectAttempts, 0)
	if err != nil {
		return cfg, err
	}
	cfg.MaxReconnectAttempts = maxAttempts

	cacheTTL, err := envSeconds("YELLOW_CACHE_TTL", DefaultYellowCacheTTL)
	if err != nil {
		return cfg, err
	}
	cfg.CacheTTL = cacheTTL

	return cfg, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	return envBool("LOG_COLORING", true)
}

// envSeconds reads an integer number of seconds with a default
func envSeconds(name string, defaultSeconds int) (time.Duration, error) {
	value := os.Getenv(name)
	if value == "" {
		return time.Duration(defaultSeconds) * time.Second, nil
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", name, value)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", name)
	}
	return time.Duration(seconds) * time.Second, nil
}

// envMillis reads an integer number of milliseconds with a default
func envMillis(name string, defaultMillis int) (time.Duration, error) {
	value := os.Getenv(name)
	if value == "" {
		return time.Duration(defaultMillis) * time.Millisecond, nil
	}

	millis, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", name, value)
	}
	if millis < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return time.Duration(millis) * time.Millisecond, nil
}

// envInt reads an integer with a default and a minimum
func envInt(name string, defaultValue, min int) (int, error) {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", name, value)
	}
	if parsed < min {
		return 0, fmt.Errorf("%s must be at least %d", name, min)
	}
	return parsed, nil
}

// envBool reads a boolean flag with a default
func envBool(name string, defaultValue bool) (bool, error) {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue, nil
	}

	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", name, value)
}
