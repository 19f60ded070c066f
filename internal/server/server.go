// Package server exposes the enrichment pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/store"
)

// Enricher runs one enrichment pass. *enrich.Pipeline satisfies it.
type Enricher interface {
	Run(ctx context.Context, req model.EnrichmentRequest) (*model.EnrichmentBundle, error)
}

// Server handles enrichment requests over HTTP. The store is optional;
// without one the run endpoints return 404 for everything and enrich
// responses are not persisted.
type Server struct {
	enricher Enricher
	store    store.Store
}

// New builds a Server. st may be nil.
func New(enricher Enricher, st store.Store) *Server {
	return &Server{enricher: enricher, store: st}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/enrich", s.handleEnrich)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req model.EnrichmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	var run *store.Run
	if s.store != nil {
		created, err := s.store.CreateRun(r.Context(), req)
		if err != nil {
			zap.L().Warn("create run failed", zap.Error(err))
		} else {
			run = created
		}
	}

	start := time.Now()
	bundle, err := s.enricher.Run(r.Context(), req)
	if err != nil {
		if run != nil {
			if ferr := s.store.FailRun(r.Context(), run.ID, err.Error()); ferr != nil {
				zap.L().Warn("fail run update failed", zap.Error(ferr))
			}
		}
		zap.L().Error("enrichment failed", zap.String("address", req.Address), zap.Error(err))
		writeError(w, http.StatusBadGateway, "enrichment failed")
		return
	}
	if run != nil {
		if cerr := s.store.CompleteRun(r.Context(), run.ID, bundle); cerr != nil {
			zap.L().Warn("complete run update failed", zap.Error(cerr))
		}
	}

	zap.L().Info("enrichment served",
		zap.String("address", req.Address),
		zap.Int("quality_score", bundle.Consensus.QualityScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run store not configured")
		return
	}

	filter := store.RunFilter{
		Status:  store.RunStatus(r.URL.Query().Get("status")),
		Address: r.URL.Query().Get("address"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run store not configured")
		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		zap.L().Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
