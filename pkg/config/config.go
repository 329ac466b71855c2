package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/jetkite-hq/jetkite-go/pkg/logger"
)

// Config holds the configuration for the intent watcher daemon
type Config struct {
	APIEndpoint     string
	Transport       TransportConfig
	CircuitBreaker  CircuitBreakerConfig
	Yellow          YellowConfig
	PollingInterval time.Duration
	WaitTimeout     time.Duration
	MetricsPort     string
	LoggerConfig    LoggerConfig
}

// TransportConfig holds request-layer tuning
type TransportConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	CacheEnabled      bool
	CacheTTL          time.Duration
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// YellowConfig holds the clearnode connection configuration
type YellowConfig struct {
	Enabled              bool
	URL                  string
	MessageTimeout       time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	CacheTTL             time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	apiEndpoint, err := GetEnvAPIEndpoint()
	if err != nil {
		return nil, err
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	waitTimeout, err := GetEnvWaitTimeout()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	transportCfg, err := GetEnvTransportConfig()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	yellowCfg, err := GetEnvYellowConfig()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIEndpoint:     apiEndpoint,
		Transport:       transportCfg,
		Yellow:          yellowCfg,
		PollingInterval: pollingInterval,
		WaitTimeout:     waitTimeout,
		MetricsPort:     metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.APIEndpoint == "" {
		return fmt.Errorf("API_ENDPOINT environment variable is required")
	}
	if cfg.Yellow.Enabled && cfg.Yellow.URL == "" {
		return fmt.Errorf("YELLOW_CLEARNODE_URL is required when YELLOW_ENABLED is true")
	}
	return nil
}
