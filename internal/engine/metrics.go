package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// searchesTotal counts finished searches by terminal status and source.
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesearch_searches_total",
		Help: "Total searches by terminal status and source.",
	}, []string{"status", "source"})

	// stageSeconds observes per-stage latency.
	stageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricesearch_stage_duration_seconds",
		Help:    "Wall-clock time spent per pipeline stage.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 12},
	}, []string{"stage"})

	// breakerTrips counts circuit breaker trips per origin.
	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesearch_breaker_trips_total",
		Help: "Circuit breaker trips by origin.",
	}, []string{"origin"})

	// cacheLookups counts positive-cache outcomes.
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesearch_cache_lookups_total",
		Help: "Positive cache lookups by outcome.",
	}, []string{"outcome"})
)
