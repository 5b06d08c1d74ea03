// Package api exposes the HTTP interface for the price search engine.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ImportTeam/extensionBack/internal/engine"
	"github.com/ImportTeam/extensionBack/internal/failure"
	"github.com/ImportTeam/extensionBack/internal/metrics"
)

// Searcher runs one query through the pipeline.
type Searcher interface {
	Search(ctx context.Context, q engine.Query) *engine.SearchResult
}

// Prober reports a dependency's reachability.
type Prober interface {
	Ping(ctx context.Context) error
}

// BrowserStatus reports the pool's readiness.
type BrowserStatus func() string

// Deps bundles what the server needs. CacheProber, StoreProber,
// FailureStore, and Browser may be nil/absent.
type Deps struct {
	Searcher     Searcher
	FailureStore failure.Store
	CacheProber  Prober
	StoreProber  Prober
	Browser      BrowserStatus
	Logger       *zap.Logger
}

// Server wires chi routes to the engine.
type Server struct {
	router chi.Router
	deps   Deps
}

// requestTimeout bounds one HTTP request end to end: the engine's
// 12-second budget plus framing headroom.
const requestTimeout = 15 * time.Second

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(recoverMiddleware(deps.Logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/price/search", s.searchPrice)
		r.Get("/health", s.health)
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/dashboard", s.analyticsDashboard)
			r.Get("/common", s.analyticsCommon)
			r.Get("/improvements", s.analyticsImprovements)
			r.Get("/export", s.analyticsExport)
			r.Post("/resolve/{id}", s.analyticsResolve)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Status: "error", ErrorCode: code, Message: message})
}
