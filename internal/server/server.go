// Package server implements HTTP server for health checks and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Options configures the listeners and routes of the HTTP servers.
// A zero port disables the corresponding server.
type Options struct {
	HealthPort    int
	MetricsPort   int
	LivenessPath  string
	ReadinessPath string
	MetricsPath   string
}

func (o Options) withDefaults() Options {
	if o.LivenessPath == "" {
		o.LivenessPath = "/health/live"
	}
	if o.ReadinessPath == "" {
		o.ReadinessPath = "/health/ready"
	}
	if o.MetricsPath == "" {
		o.MetricsPath = "/metrics"
	}
	return o
}

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	opts Options,
	healthChecker HealthChecker,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	opts = opts.withDefaults()
	s := &Server{logger: logger}

	if opts.HealthPort > 0 {
		healthMux := http.NewServeMux()
		healthMux.HandleFunc(opts.LivenessPath, LivenessHandler(healthChecker, logger))
		healthMux.HandleFunc(opts.ReadinessPath, ReadinessHandler(healthChecker, logger))

		s.healthServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", opts.HealthPort),
			Handler:      healthMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	if opts.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(opts.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", opts.MetricsPort),
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

func (s *Server) servers() []*http.Server {
	var out []*http.Server
	if s.healthServer != nil {
		out = append(out, s.healthServer)
	}
	if s.metricsServer != nil {
		out = append(out, s.metricsServer)
	}
	return out
}

// Start starts the configured HTTP servers.
func (s *Server) Start() error {
	if s.healthServer != nil {
		go func() {
			s.logger.Info("starting health server", "addr", s.healthServer.Addr)
			if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("health server failed", "error", err)
			}
		}()
	}

	if s.metricsServer != nil {
		go func() {
			s.logger.Info("starting metrics server", "addr", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	return nil
}

// Shutdown gracefully shuts down the running servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	servers := s.servers()
	errChan := make(chan error, len(servers))

	for _, srv := range servers {
		go func(srv *http.Server) {
			errChan <- srv.Shutdown(ctx)
		}(srv)
	}

	var lastErr error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			lastErr = err
		}
	}

	return lastErr
}
