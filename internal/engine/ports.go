package engine

import (
	"context"
	"time"
)

// Normalizer rewrites a raw product name into a primary query plus
// ordered fallback candidates.
type Normalizer interface {
	Normalize(raw string) NormalizedQuery
}

// Executor runs one candidate query to completion under the deadline
// carried by ctx. Implementations map every failure onto the engine
// error taxonomy before returning.
type Executor interface {
	Search(ctx context.Context, candidate string) (*Finding, error)
}

// Gate is the post-hoc plausibility check applied to results obtained
// from meaning-reducing (Level-2) candidates.
type Gate interface {
	Validate(raw string, category Category, f *Finding) error
}

// Cache abstracts the shared key-value store. Implementations key by
// SHA-256 of the normalized primary query, never the raw query, and
// must swallow every backend error: a broken cache behaves as all
// misses and dropped writes, not as a request failure.
type Cache interface {
	GetPositive(ctx context.Context, query string) (*SearchResult, bool)
	SetPositive(ctx context.Context, query string, res *SearchResult)

	GetNegative(ctx context.Context, query string) (string, bool)
	SetNegative(ctx context.Context, query, reason string)

	// Consecutive terminal-failure bookkeeping for the hard-skip rule.
	FailureCount(ctx context.Context, query string) int
	BumpFailure(ctx context.Context, query string) int
	ResetFailure(ctx context.Context, query string)

	// Circuit breaker state for an upstream origin.
	BreakerOpen(ctx context.Context, origin string) bool
	BreakerTrip(ctx context.Context, origin string)
	BreakerReset(ctx context.Context, origin string)
}

// FailureReport is the engine-side view of a terminal failure handed
// to the recorder.
type FailureReport struct {
	OriginalQuery   string
	NormalizedQuery string
	Candidates      []string
	AttemptedCount  int
	ErrorMessage    string
	Category        Category
	Brand           string
	Model           string
	Elapsed         time.Duration
}

// FailureSink accepts failure reports without blocking the request
// path.
type FailureSink interface {
	Record(report FailureReport)
}
