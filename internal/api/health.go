package api

import (
	"context"
	"net/http"
	"time"
)

// Dependency health states.
const (
	depConnected    = "connected"
	depDisconnected = "disconnected"
	depDisabled     = "disabled"
)

type healthResponse struct {
	Status  string `json:"status"`
	Redis   string `json:"redis"`
	DB      string `json:"database"`
	Browser string `json:"browser"`
}

// probeTimeout bounds each dependency probe.
const probeTimeout = 2 * time.Second

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	probe := func(p Prober) string {
		if p == nil {
			return depDisabled
		}
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return depDisconnected
		}
		return depConnected
	}

	resp := healthResponse{
		Redis:   probe(s.deps.CacheProber),
		DB:      probe(s.deps.StoreProber),
		Browser: depDisabled,
	}
	if s.deps.Browser != nil {
		resp.Browser = s.deps.Browser()
	}

	switch {
	case resp.Redis == depDisconnected && resp.DB == depDisconnected:
		resp.Status = "error"
	case resp.Redis == depDisconnected || resp.DB == depDisconnected:
		resp.Status = "degraded"
	default:
		resp.Status = "healthy"
	}

	status := http.StatusOK
	if resp.Status == "error" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
