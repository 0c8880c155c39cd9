// Package metrics exposes the Prometheus scrape endpoint and health probes
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"backtest_engine/internal/core"
	"backtest_engine/internal/infrastructure/health"
)

// Server handles Prometheus metrics export and the /healthz probe
type Server struct {
	port   int
	logger core.ILogger
	health *health.Manager
	srv    *http.Server
}

// NewServer creates a new metrics server
func NewServer(port int, healthManager *health.Manager, logger core.ILogger) *Server {
	return &Server{
		port:   port,
		logger: logger.WithField("component", "metrics_server"),
		health: healthManager,
	}
}

// Start starts the metrics HTTP server
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("Starting Prometheus metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.health != nil && !s.health.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	status := map[string]string{}
	if s.health != nil {
		status = s.health.Status()
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping metrics server")
	return s.srv.Shutdown(ctx)
}
