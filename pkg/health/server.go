package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jetkite-hq/jetkite-go/pkg/circuitbreaker"
	"github.com/jetkite-hq/jetkite-go/pkg/yellow"
)

// Server represents a health check HTTP server
type Server struct {
	port          string
	apiEndpoint   string
	breaker       *circuitbreaker.CircuitBreaker
	yellowClient  *yellow.Client
	metricsAPIKey string
}

// NewServer creates a new health check server. breaker and yellowClient
// may be nil when the corresponding subsystem is disabled.
func NewServer(port, apiEndpoint string, breaker *circuitbreaker.CircuitBreaker, yellowClient *yellow.Client) *Server {
	return &Server{
		port:          port,
		apiEndpoint:   apiEndpoint,
		breaker:       breaker,
		yellowClient:  yellowClient,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
	}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Get API key from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		// Check if the header has the correct format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthStatus is the response body of the health endpoint
type healthStatus struct {
	Status         string `json:"status"`
	APIEndpoint    string `json:"apiEndpoint"`
	CircuitBreaker string `json:"circuitBreaker,omitempty"`
	Yellow         string `json:"yellow,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := healthStatus{
		Status:      "ok",
		APIEndpoint: s.apiEndpoint,
	}

	if s.breaker != nil && s.breaker.IsEnabled() {
		if s.breaker.IsOpen() {
			status.CircuitBreaker = "open"
			status.Status = "degraded"
		} else {
			status.CircuitBreaker = "closed"
		}
	}

	if s.yellowClient != nil {
		if s.yellowClient.IsConnected() {
			status.Yellow = "connected"
		} else {
			status.Yellow = "disconnected"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("Failed to encode health response: %v", err)
	}
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		log.Printf("Failed to write readiness response: %v", err)
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Health server shutdown error: %v", err)
		}
	}()

	log.Printf("Health server listening on :%s", s.port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server failed: %w", err)
	}
	return nil
}
