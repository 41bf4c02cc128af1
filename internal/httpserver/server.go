// Package httpserver exposes health, readiness and Prometheus endpoints.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/videoshop/core/logger"
)

// Config holds listener settings. An empty Addr disables the server.
type Config struct {
	Addr string `yaml:"addr" envconfig:"HTTP_ADDR"`
}

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// Server wraps an http.Server with predefined routes.
type Server struct {
	httpServer *http.Server
	checks     map[string]Check
}

// New creates a server listening on addr. gatherer backs /metrics; checks back /readyz.
func New(addr string, gatherer prometheus.Gatherer, checks map[string]Check) *Server {
	s := &Server{checks: checks}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", healthHandler)
	r.Get("/readyz", s.readyHandler)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	logger.Info(context.Background(), "http", "http.listen", slog.String("listen", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info(ctx, "http", "http.shutdown")
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			logger.Warn(ctx, "http", "ready.check", slog.String("check", name), logger.Err(err))
			continue
		}
		out[name] = "ok"
	}
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
