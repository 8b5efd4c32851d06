// Package httpapi exposes the research orchestrator over HTTP: a query
// endpoint, health and metrics endpoints, and per-run event streams (SSE
// and WebSocket).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/models"
	"github.com/fintelhq/fintel/internal/orchestrator"
	"github.com/fintelhq/fintel/internal/streaming"
)

// Runner is the slice of the orchestrator the API needs.
type Runner interface {
	Run(ctx context.Context, query, defaultTimeframe string) (*orchestrator.Result, error)
}

// Server wires the HTTP surface.
type Server struct {
	runner     Runner
	events     *streaming.Manager
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewServer builds the API server. runTimeout bounds one full orchestration
// run; <= 0 defaults to 5 minutes.
func NewServer(runner Runner, events *streaming.Manager, runTimeout time.Duration, logger *zap.Logger) *Server {
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	return &Server{runner: runner, events: events, runTimeout: runTimeout, logger: logger.Named("httpapi")}
}

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/runs/events", s.handleSSE)
	mux.HandleFunc("/v1/runs/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

type queryRequest struct {
	Query     string `json:"query"`
	Timeframe string `json:"timeframe,omitempty"`
}

type queryResponse struct {
	RunID         string                    `json:"run_id"`
	Answer        *models.SynthesizedAnswer `json:"answer"`
	Intent        models.Intent             `json:"intent"`
	Entities      []string                  `json:"entities"`
	Iterations    int                       `json:"iterations"`
	Observations  []string                  `json:"observations"`
	Uncertainties []string                  `json:"uncertainties,omitempty"`
}

// handleQuery runs one research query synchronously.
// POST /v1/query {"query": "...", "timeframe": "..."}
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	res, err := s.runner.Run(ctx, req.Query, req.Timeframe)
	if err != nil {
		s.logger.Error("Query run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "research run failed")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		RunID:         res.Context.RunID,
		Answer:        res.Answer,
		Intent:        res.Context.Intent,
		Entities:      res.Context.Entities,
		Iterations:    res.Context.Iteration,
		Observations:  res.Context.Observations,
		Uncertainties: res.Context.Uncertainties,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
