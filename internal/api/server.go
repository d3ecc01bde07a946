// Package api exposes the HTTP control surface: task queue management,
// run history, ad-hoc product status checks and report exports.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/domain"
	"stocksync/internal/export"
	"stocksync/internal/metrics"
	"stocksync/internal/queue"
	"stocksync/internal/recon"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// CheckerFactory returns an ad-hoc status checker for a configured
// site, or nil when the site is unknown.
type CheckerFactory func(site string) *recon.Checker

type Server struct {
	cfg      config.APIConfig
	repo     domain.Repository
	tasks    *queue.Service
	exporter *export.Exporter
	checker  CheckerFactory
	server   *http.Server
	auth     *Auth
	logger   zerolog.Logger
}

func NewServer(cfg config.APIConfig, repo domain.Repository, tasks *queue.Service, exporter *export.Exporter, checker CheckerFactory, logger *zerolog.Logger) *Server {
	srv := &Server{
		cfg:      cfg,
		repo:     repo,
		tasks:    tasks,
		exporter: exporter,
		checker:  checker,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	srv.auth = NewAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tasks", srv.handleTasks)
	mux.HandleFunc("/api/v1/tasks/", srv.handleTask)
	mux.HandleFunc("/api/v1/runs", srv.handleRuns)
	mux.HandleFunc("/api/v1/status/check", srv.handleStatusCheck)
	mux.HandleFunc("/api/v1/exports", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
