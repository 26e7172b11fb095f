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

	"github.com/fracshare-hq/asset-purchaser/pkg/circuitbreaker"
	"github.com/fracshare-hq/asset-purchaser/pkg/ledger"
	"github.com/fracshare-hq/asset-purchaser/pkg/models"
)

// SessionSource exposes the current purchase session for the status endpoint.
type SessionSource interface {
	Session() (models.PurchaseSession, bool)
}

// Server represents a health check HTTP server
type Server struct {
	port            string
	backendEndpoint string
	ledgerClient    ledger.Client
	breaker         *circuitbreaker.CircuitBreaker
	sessions        SessionSource
	metricsAPIKey   string
}

// NewServer creates a new health check server
func NewServer(port string, backendEndpoint string, ledgerClient ledger.Client, breaker *circuitbreaker.CircuitBreaker, sessions SessionSource) *Server {
	return &Server{
		port:            port,
		backendEndpoint: backendEndpoint,
		ledgerClient:    ledgerClient,
		breaker:         breaker,
		sessions:        sessions,
		metricsAPIKey:   os.Getenv("METRICS_API_KEY"),
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

		// Validate API key
		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the health check server
func (s *Server) Start() {
	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness check: the ledger RPC must answer
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := s.ledgerClient.BlockHeight(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("Ledger RPC unreachable: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	// Status endpoint
	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := make(map[string]interface{})

		circuitStatus := "closed"
		if s.breaker != nil && s.breaker.IsOpen() {
			circuitStatus = "open"
		}
		status["circuit"] = circuitStatus
		status["backend_endpoint"] = s.backendEndpoint

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if height, err := s.ledgerClient.BlockHeight(ctx); err == nil {
			status["ledger_block_height"] = height
		} else {
			status["ledger_error"] = err.Error()
		}

		if s.sessions != nil {
			if session, ok := s.sessions.Session(); ok {
				status["session"] = map[string]interface{}{
					"asset_id":    session.AssetID,
					"status":      string(session.Status),
					"trade_id":    session.TradeID,
					"retry_count": session.RetryCount,
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding status JSON: %v", err)
		}
	})

	// Circuit breaker admin control endpoint
	http.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if s.breaker == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("No circuit breaker configured"))
			return
		}

		s.breaker.Reset()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Circuit breaker reset"))
	})

	// Expose Prometheus metrics with API key authentication
	http.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	log.Printf("Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, nil); err != nil {
		log.Printf("Health server error: %v", err)
	}
}
