package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ImportTeam/extensionBack/internal/failure"
)

// analyticsWindow is the default lookback for the read models.
const analyticsWindow = 7 * 24 * time.Hour

func (s *Server) requireStore(w http.ResponseWriter) failure.Store {
	if s.deps.FailureStore == nil {
		writeError(w, http.StatusServiceUnavailable, "ANALYTICS_DISABLED", "failure store is not configured")
		return nil
	}
	return s.deps.FailureStore
}

type dashboardResponse struct {
	Stats          failure.Stats           `json:"stats"`
	CommonFailures []failure.CommonFailure `json:"common_failures"`
	ResolutionRate float64                 `json:"resolution_rate"`
	PendingRate    float64                 `json:"pending_rate"`
}

func (s *Server) analyticsDashboard(w http.ResponseWriter, r *http.Request) {
	store := s.requireStore(w)
	if store == nil {
		return
	}
	stats, err := store.Stats(r.Context(), analyticsWindow)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "analytics query failed")
		return
	}
	common, err := store.Common(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "analytics query failed")
		return
	}
	resp := dashboardResponse{Stats: stats, CommonFailures: common}
	if stats.Total > 0 {
		resp.ResolutionRate = float64(stats.Resolved) / float64(stats.Total) * 100
		resp.PendingRate = float64(stats.Pending) / float64(stats.Total) * 100
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) analyticsCommon(w http.ResponseWriter, r *http.Request) {
	store := s.requireStore(w)
	if store == nil {
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be 1..500")
			return
		}
		limit = n
	}
	common, err := store.Common(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "analytics query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"common_failures": common})
}

func (s *Server) analyticsImprovements(w http.ResponseWriter, r *http.Request) {
	store := s.requireStore(w)
	if store == nil {
		return
	}
	suggestions, err := store.Suggestions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "analytics query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) analyticsExport(w http.ResponseWriter, r *http.Request) {
	store := s.requireStore(w)
	if store == nil {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "format must be json or csv")
		return
	}
	records, err := store.Recent(r.Context(), 30*24*time.Hour, 500)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "analytics query failed")
		return
	}

	if format == "json" {
		writeJSON(w, http.StatusOK, map[string]any{"records": records})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="search_failures.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"id", "original_query", "normalized_query", "candidates",
		"attempted_count", "error_message", "category", "brand", "model",
		"status", "created_at",
	})
	for _, rec := range records {
		_ = cw.Write([]string{
			strconv.FormatInt(rec.ID, 10),
			rec.OriginalQuery,
			rec.NormalizedQuery,
			strings.Join(rec.Candidates, "|"),
			strconv.Itoa(rec.AttemptedCount),
			rec.ErrorMessage,
			rec.Category,
			rec.Brand,
			rec.Model,
			rec.Status,
			rec.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

type resolveRequest struct {
	Status         string `json:"status"`
	CorrectName    string `json:"correct_name"`
	CorrectProduct string `json:"correct_product_id"`
}

var validResolutions = map[string]struct{}{
	failure.StatusManualFixed: {},
	failure.StatusAutoLearned: {},
	failure.StatusNotProduct:  {},
}

func (s *Server) analyticsResolve(w http.ResponseWriter, r *http.Request) {
	store := s.requireStore(w)
	if store == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid record id")
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
		return
	}
	if _, ok := validResolutions[req.Status]; !ok {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid resolution status")
		return
	}
	if err := store.Resolve(r.Context(), id, req.Status, req.CorrectName, req.CorrectProduct); err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}
