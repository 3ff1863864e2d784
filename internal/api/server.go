// Package api exposes the operational HTTP surface: health, metrics and
// pipeline status.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lmeyrat/jobpilot/internal/apply"
	"github.com/lmeyrat/jobpilot/internal/metrics"
)

// Server wires the operational HTTP handlers.
type Server struct {
	router       chi.Router
	orchestrator *apply.Orchestrator
	metrics      *metrics.Metrics
	log          *zap.Logger
}

// NewServer constructs the server with its routes.
func NewServer(orchestrator *apply.Orchestrator, m *metrics.Metrics, log *zap.Logger) *Server {
	s := &Server{orchestrator: orchestrator, metrics: m, log: log}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/applications/pending", s.pending)
	})
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id must be an integer"})
		return
	}
	totalQuickApply, alreadyApplied, pending, err := s.orchestrator.PendingCounts(r.Context(), userID)
	if err != nil {
		s.log.Error("pending counts lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"total_quick_apply": totalQuickApply,
		"already_applied":   alreadyApplied,
		"pending":           pending,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("response write failed", zap.Error(err))
	}
}
