// Package server exposes the ingestion pipeline over HTTP so that an
// external scheduler can trigger runs.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Runner runs one pipeline pass for a user. *ingest.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, user string) (ingest.RunSummary, error)
}

// Server serves the sync trigger, health and metrics endpoints.
type Server struct {
	runner Runner
	logger zerolog.Logger

	// mu serializes runs; two runs for one user would race on its cursor.
	mu sync.Mutex

	http *http.Server
}

// SyncResponse is the body returned by POST /sync.
type SyncResponse struct {
	User       string `json:"user"`
	RunID      string `json:"run_id,omitempty"`
	Batches    int    `json:"batches"`
	Persisted  int    `json:"persisted"`
	Duplicates int    `json:"duplicates"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// New creates a Server listening on addr.
func New(addr string, runner Runner, logger zerolog.Logger) *Server {
	s := &Server{
		runner: runner,
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request")
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/sync", s.handleSync)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server starting")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info().Msg("HTTP server shutting down")
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeJSON(w, http.StatusBadRequest, SyncResponse{Error: ingest.ErrMissingUser.Error()})
		return
	}

	s.mu.Lock()
	summary, err := s.runner.Run(r.Context(), user)
	s.mu.Unlock()

	resp := SyncResponse{
		User:       user,
		RunID:      summary.RunID,
		Batches:    summary.Batches,
		Persisted:  summary.Inserted,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ingest.ErrMissingUser):
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		hlog.FromRequest(r).Error().Err(err).Str("user", user).Msg("Sync failed")
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
