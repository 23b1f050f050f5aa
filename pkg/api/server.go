// Package api provides the HTTP endpoints for monitoring a running
// SwiftFS instance: liveness, a connectivity health check against the
// bound cluster, and the Prometheus metrics of the REST engine.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker is the probe the server runs against the object store.
// The swift client satisfies it through a container HEAD.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Server serves the monitoring surface for one filesystem binding.
type Server struct {
	httpServer *http.Server
	checker    HealthChecker
	metrics    http.Handler
	logger     *slog.Logger
	config     ServerConfig
	started    time.Time
}

// ServerConfig configures the monitoring server.
type ServerConfig struct {
	// Address to bind to, e.g. "localhost:8080".
	Address string `yaml:"address" json:"address"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// HealthTimeout bounds one connectivity probe.
	HealthTimeout time.Duration `yaml:"health_timeout" json:"health_timeout"`
}

// DefaultServerConfig returns the default monitoring configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:       "localhost:8080",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		IdleTimeout:   60 * time.Second,
		HealthTimeout: 5 * time.Second,
	}
}

// NewServer builds the monitoring server. metrics is the Prometheus
// handler of the REST engine; checker may be nil when no live probe is
// wanted.
func NewServer(config ServerConfig, checker HealthChecker, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		checker: checker,
		metrics: metrics,
		logger:  logger.With("component", "api"),
		config:  config,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.HandleFunc("/info", s.handleInfo)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      s.loggingMiddleware(mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler exposes the composed mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("monitoring server listening", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// StartBackground starts the server in a goroutine.
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("monitoring server failed", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadiness probes the bound cluster. A failing probe returns 503
// so orchestrators stop routing to an instance whose endpoint is gone.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.HealthTimeout)
	defer cancel()

	if err := s.checker.CheckHealth(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "swiftfs",
		"uptime":  time.Since(s.started).String(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
