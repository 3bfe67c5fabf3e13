// Package server provides the worker's HTTP surface (health probes and
// metrics) and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the response from health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Message   string        `json:"message,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker is a function that performs a health check.
type HealthChecker func(ctx context.Context) HealthCheck

// ReadinessProbe reports why the service cannot take traffic yet, or nil.
type ReadinessProbe func(ctx context.Context) error

// HealthServer provides HTTP health check endpoints.
type HealthServer struct {
	mu           sync.RWMutex
	checks       map[string]HealthChecker
	handlers     map[string]http.Handler
	probe        ReadinessProbe
	version      string
	ready        bool
	logger       *slog.Logger
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string
	Addr    string // Address to listen on (default: ":8080")
	Logger  *slog.Logger
}

// NewHealthServer creates a new health server.
func NewHealthServer(config *HealthConfig) *HealthServer {
	version := ""
	logger := slog.Default()
	if config != nil {
		version = config.Version
		if config.Logger != nil {
			logger = config.Logger
		}
	}

	return &HealthServer{
		checks:       make(map[string]HealthChecker),
		handlers:     make(map[string]http.Handler),
		version:      version,
		ready:        false,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// RegisterCheck adds a health check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// Handle mounts an extra handler, such as /metrics, next to the probes.
func (s *HealthServer) Handle(pattern string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[pattern] = h
}

// SetReadinessProbe installs a probe consulted by /ready once the server
// has been marked ready.
func (s *HealthServer) SetReadinessProbe(p ReadinessProbe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probe = p
}

// SetReady marks the server as ready to accept traffic.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Handler returns an http.Handler for the health endpoints and any handler
// mounted with Handle.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/healthz", s.handleHealth) // Kubernetes alias
	mux.HandleFunc("/readyz", s.handleReady)   // Kubernetes alias
	mux.HandleFunc("/livez", s.handleLive)     // Kubernetes alias

	s.mu.RLock()
	for pattern, h := range s.handlers {
		mux.Handle(pattern, h)
	}
	s.mu.RUnlock()
	return mux
}

// ListenAndServe starts the health server. It returns nil after Shutdown.
func (s *HealthServer) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-s.shutdownChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			s.logger.Warn("health server shutdown", "error", err)
		}
	}()

	s.logger.Info("health server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the health server. It is safe to call twice.
func (s *HealthServer) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
}

// handleHealth handles the /health endpoint - full health check.
func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		names = append(names, k)
		checks[k] = v
	}
	version := s.version
	s.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(checks)),
	}

	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)

		if check.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if check.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy {
			response.Status = HealthStatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, statusCode, response)
}

// handleReady handles the /ready endpoint - readiness probe.
func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	probe := s.probe
	s.mu.RUnlock()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
	}

	if !ready {
		response.Status = HealthStatusUnhealthy
		s.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	if probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := probe(ctx); err != nil {
			response.Status = HealthStatusUnhealthy
			response.Message = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleLive handles the /live endpoint. The process answering is the
// liveness signal.
func (s *HealthServer) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
	})
}

func (s *HealthServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write health response", "error", err)
	}
}

// Common health checkers

// IndexReadiness is a ReadinessProbe that fails until the knowledge index
// holds at least one document.
func IndexReadiness(countFn func(ctx context.Context) (int, error)) ReadinessProbe {
	return func(ctx context.Context) error {
		n, err := countFn(ctx)
		if err != nil {
			return fmt.Errorf("knowledge index: %w", err)
		}
		if n == 0 {
			return errors.New("knowledge index is empty")
		}
		return nil
	}
}

// IndexHealthChecker reports the knowledge index size.
func IndexHealthChecker(backend string, countFn func(ctx context.Context) (int, error)) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		n, err := countFn(ctx)
		details := map[string]string{"backend": backend}
		switch {
		case err != nil:
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Knowledge index unavailable: " + err.Error(),
				Details: details,
			}
		case n == 0:
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "Knowledge index is empty",
				Details: details,
			}
		}
		details["documents"] = fmt.Sprintf("%d", n)
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "Knowledge index OK",
			Details: details,
		}
	}
}

// TemporalHealthChecker creates a health check for Temporal connectivity.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		err := checkFn(ctx)
		if err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Temporal connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "Temporal connection OK",
		}
	}
}

// DatabaseHealthChecker creates a health check for an optional database
// such as the stats store or the food graph. A failing database degrades
// the service rather than taking it down.
func DatabaseHealthChecker(name string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		err := checkFn(ctx)
		if err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: name + " connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: name + " connection OK",
		}
	}
}
