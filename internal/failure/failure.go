// Package failure persists terminal search failures for continuous
// rule improvement and serves the analytics read models built on top
// of them.
package failure

import (
	"context"
	"time"
)

// Resolution states of a failure record. Records are created pending
// and mutated only through the analytics/curation surface.
const (
	StatusPending     = "pending"
	StatusManualFixed = "manual_fixed"
	StatusAutoLearned = "auto_learned"
	StatusNotProduct  = "not_product"
)

// Record is one durable failed search.
type Record struct {
	ID              int64     `json:"id"`
	OriginalQuery   string    `json:"original_query"`
	NormalizedQuery string    `json:"normalized_query"`
	Candidates      []string  `json:"candidates"`
	AttemptedCount  int       `json:"attempted_count"`
	ErrorMessage    string    `json:"error_message"`
	Category        string    `json:"category"`
	Brand           string    `json:"brand"`
	Model           string    `json:"model"`
	Status          string    `json:"status"`
	CorrectName     string    `json:"correct_name,omitempty"`
	CorrectProduct  string    `json:"correct_product_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CategoryCount is one category's share of failures.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Stats summarizes failures inside a window.
type Stats struct {
	Total      int64           `json:"total"`
	Pending    int64           `json:"pending"`
	Resolved   int64           `json:"resolved"`
	ByCategory []CategoryCount `json:"by_category"`
}

// CommonFailure is a repeated (original, normalized) query pair.
type CommonFailure struct {
	OriginalQuery   string `json:"original_query"`
	NormalizedQuery string `json:"normalized_query"`
	Count           int64  `json:"count"`
}

// Suggestion priorities.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Suggestion is one curation recommendation derived from repeated
// failure patterns.
type Suggestion struct {
	OriginalQuery   string `json:"original_query"`
	NormalizedQuery string `json:"normalized_query"`
	Count           int64  `json:"count"`
	Priority        string `json:"priority"`
	Action          string `json:"action"`
}

// Store is the durable backend for failure records.
type Store interface {
	Insert(ctx context.Context, rec Record) (int64, error)
	Stats(ctx context.Context, window time.Duration) (Stats, error)
	Common(ctx context.Context, limit int) ([]CommonFailure, error)
	Suggestions(ctx context.Context) ([]Suggestion, error)
	Recent(ctx context.Context, window time.Duration, limit int) ([]Record, error)
	Resolve(ctx context.Context, id int64, status, correctName, correctProduct string) error
	Ping(ctx context.Context) error
	Close()
}
