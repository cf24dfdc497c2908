package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/water-violation-explainer/internal/pipeline"
)

const readinessTimeout = 2 * time.Second

// ReadinessChecker reports whether a dependency of serve mode is usable.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Check is a named readiness probe reported individually on /readyz.
type Check struct {
	Name    string
	Checker ReadinessChecker
}

// RunReporter exposes the last completed generation cycle.
type RunReporter interface {
	LastRun() (pipeline.CompletedRun, bool)
}

// Server serves health, readiness, metrics and last-run status for serve mode.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	checks     []Check
	runs       RunReporter
}

// NewServer creates a server with /healthz, /readyz, /metrics and /runs/last.
func NewServer(addr string, checks []Check, runs RunReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		checks: checks,
		runs:   runs,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /runs/last", s.handleLastRun)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady runs every check, so a failing database does not hide a
// missing first cycle or the other way round.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := readyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	for _, c := range s.checks {
		if err := c.Checker.CheckReadiness(ctx); err != nil {
			resp.Status = "not ready"
			resp.Checks[c.Name] = err.Error()
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
		s.logger.Debug("readiness check failed", "checks", resp.Checks)
	}
	writeJSON(w, status, resp)
}

type lastRunResponse struct {
	RunID       string    `json:"run_id"`
	FinishedAt  time.Time `json:"finished_at"`
	Selected    int       `json:"selected"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Fallbacks   int       `json:"fallbacks"`
	Interrupted bool      `json:"interrupted"`
	Summary     string    `json:"summary"`
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	run, ok := s.runs.LastRun()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "no completed run"})
		return
	}
	writeJSON(w, http.StatusOK, lastRunResponse{
		RunID:       run.RunID,
		FinishedAt:  run.FinishedAt,
		Selected:    run.Selected,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
		Fallbacks:   run.Fallbacks,
		Interrupted: run.Interrupted,
		Summary:     run.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort status response
}
