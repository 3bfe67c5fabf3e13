package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownHandler manages graceful shutdown of services.
type ShutdownHandler struct {
	mu           sync.Mutex
	hooks        []ShutdownHook
	timeout      time.Duration
	signals      []os.Signal
	logger       *slog.Logger
	shutdownCh   chan struct{}
	doneCh       chan struct{}
	started      bool
	shutdownOnce sync.Once
	doneOnce     sync.Once
}

// ShutdownHook is a function called during shutdown.
type ShutdownHook struct {
	Name     string
	Priority int // Lower priority runs first
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout for graceful shutdown (default: 30s)
	Timeout time.Duration
	// Signals to listen for (default: SIGTERM, SIGINT)
	Signals []os.Signal
	Logger  *slog.Logger
}

// DefaultShutdownConfig returns default configuration.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// NewShutdownHandler creates a new shutdown handler.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	cfg := *DefaultShutdownConfig()
	if config != nil {
		if config.Timeout > 0 {
			cfg.Timeout = config.Timeout
		}
		if len(config.Signals) > 0 {
			cfg.Signals = config.Signals
		}
		cfg.Logger = config.Logger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ShutdownHandler{
		timeout:    cfg.Timeout,
		signals:    cfg.Signals,
		logger:     logger,
		shutdownCh: make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
	}
}

// RegisterHook adds a shutdown hook.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, ShutdownHook{
		Name:     name,
		Priority: priority,
		Fn:       fn,
	})

	// Sort by priority (lower first)
	for i := len(s.hooks) - 1; i > 0; i-- {
		if s.hooks[i].Priority < s.hooks[i-1].Priority {
			s.hooks[i], s.hooks[i-1] = s.hooks[i-1], s.hooks[i]
		}
	}
}

// Register adds a prebuilt hook such as TracingShutdownHook.
func (s *ShutdownHandler) Register(hook ShutdownHook) {
	s.RegisterHook(hook.Name, hook.Priority, hook.Fn)
}

// Start begins listening for shutdown signals.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			signal.Stop(sigCh)
			s.shutdown(sig)
		case <-s.shutdownCh:
			signal.Stop(sigCh)
			s.shutdown(nil)
		}
	}()
}

// Shutdown triggers a manual shutdown.
func (s *ShutdownHandler) Shutdown() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// Wait blocks until shutdown is complete.
func (s *ShutdownHandler) Wait() {
	<-s.Done()
}

// Done returns a channel that closes when shutdown is complete.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.doneCh
}

// ShutdownCh returns a channel that receives when shutdown starts.
func (s *ShutdownHandler) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

func (s *ShutdownHandler) shutdown(sig os.Signal) {
	if sig != nil {
		s.logger.Info("shutdown signal received", "signal", sig.String())
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	// A failing hook does not stop the rest.
	for _, hook := range hooks {
		if err := hook.Fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", "hook", hook.Name, "error", err)
			continue
		}
		s.logger.Debug("shutdown hook done", "hook", hook.Name)
	}

	s.doneOnce.Do(func() {
		close(s.doneCh)
	})
}

// Common shutdown hooks

// TemporalWorkerShutdownHook creates a hook for Temporal worker shutdown.
func TemporalWorkerShutdownHook(stopFn func()) ShutdownHook {
	return ShutdownHook{
		Name:     "temporal-worker",
		Priority: 20, // Run after HTTP servers
		Fn: func(ctx context.Context) error {
			stopFn()
			return nil
		},
	}
}

// DatabaseShutdownHook creates a hook for database connection shutdown.
func DatabaseShutdownHook(name string, closeFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     name,
		Priority: 90, // Run late, after workers are done
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// IndexShutdownHook creates a hook that closes the knowledge index store.
func IndexShutdownHook(closeFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     "knowledge-index",
		Priority: 95, // Badger must flush after every reader is gone
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// TracingShutdownHook creates a hook for tracing provider shutdown.
func TracingShutdownHook(shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{
		Name:     "tracing",
		Priority: 80,
		Fn:       shutdownFn,
	}
}

// GracefulServer combines health checks with shutdown handling.
type GracefulServer struct {
	Health   *HealthServer
	Shutdown *ShutdownHandler
}

// NewGracefulServer creates a server with health checks and graceful shutdown.
func NewGracefulServer(healthConfig *HealthConfig, shutdownConfig *ShutdownConfig) *GracefulServer {
	health := NewHealthServer(healthConfig)
	shutdown := NewShutdownHandler(shutdownConfig)

	// Register health server shutdown
	shutdown.RegisterHook("health-server", 5, func(ctx context.Context) error {
		health.Shutdown()
		return nil
	})

	// Mark as not ready when shutdown starts
	go func() {
		<-shutdown.ShutdownCh()
		health.SetReady(false)
	}()

	return &GracefulServer{
		Health:   health,
		Shutdown: shutdown,
	}
}

// Start starts the health server and shutdown handler. The server stays
// unready until the caller marks it ready, normally after the knowledge
// index has been loaded.
func (g *GracefulServer) Start(addr string) error {
	g.Shutdown.Start()

	go func() {
		if err := g.Health.ListenAndServe(addr); err != nil {
			g.Shutdown.logger.Error("health server stopped", "error", err)
			g.Shutdown.Shutdown()
		}
	}()

	return nil
}

// MarkReady marks the server ready to accept traffic.
func (g *GracefulServer) MarkReady() {
	g.Health.SetReady(true)
}

// Wait waits for shutdown to complete.
func (g *GracefulServer) Wait() {
	g.Shutdown.Wait()
}

// RegisterHook adds a shutdown hook.
func (g *GracefulServer) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	g.Shutdown.RegisterHook(name, priority, fn)
}
