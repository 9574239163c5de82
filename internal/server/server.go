// Package server provides the HTTP server for posturecam.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/app"
	"github.com/ayusman/posturecam/internal/metrics"
	"github.com/ayusman/posturecam/internal/report"
	"github.com/ayusman/posturecam/internal/server/api"
	"github.com/ayusman/posturecam/internal/snapshot"
	"github.com/ayusman/posturecam/internal/thresholds"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration. Routes whose dependencies are nil are not registered.
type Config struct {
	Addr        string
	ReadTimeout time.Duration
	StaticDir   string

	App        *app.App
	Thresholds *thresholds.Store
	Snapshot   *snapshot.Controller
	Reports    *report.Manager
	Executor   *report.Executor
	Live       *LiveHub
	Metrics    *metrics.Metrics
}

// Server represents the HTTP server for posturecam.
type Server struct {
	config     Config
	mux        *http.ServeMux
	httpServer *http.Server
	start      time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: config.ReadTimeout,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App.Broadcaster()))

		cameras := api.NewCamerasHandler(s.config.App)
		s.mux.Handle("/api/cameras", cameras)
		s.mux.Handle("/api/cameras/", cameras)
	}

	if s.config.Live != nil {
		s.mux.Handle("/api/live", s.config.Live)
	}

	if s.config.Thresholds != nil {
		s.mux.Handle("/api/thresholds", api.NewThresholdsHandler(s.config.Thresholds))
	}

	if s.config.Snapshot != nil {
		var live api.LiveSource
		if s.config.App != nil {
			live = s.config.App
		}
		measurements := api.NewMeasurementsHandler(s.config.Snapshot, live)
		s.mux.Handle("/api/measurements", measurements)
		s.mux.Handle("/api/measurements/", measurements)
	}

	if s.config.Reports != nil && s.config.Snapshot != nil && s.config.Thresholds != nil {
		executor := s.config.Executor
		if executor == nil {
			executor = report.NewExecutor(report.DefaultTimeout)
		}
		reports := api.NewReportHandler(s.config.Reports, executor, s.config.Snapshot, s.config.Thresholds)
		s.mux.Handle("/api/report", reports)
		s.mux.Handle("/api/report/", reports)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["camera"] = s.config.App.Status()
		response["pipeline_running"] = s.config.App.Running()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Start listens on the configured address and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
	return s.Shutdown()
}

// Shutdown stops the server, waiting up to five seconds for in-flight requests. Long-lived
// stream and live connections are closed first.
func (s *Server) Shutdown() error {
	log.Info().Msg("shutting down http server")
	if s.config.Live != nil {
		s.config.Live.Close()
	}
	if s.config.App != nil {
		s.config.App.Broadcaster().Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
