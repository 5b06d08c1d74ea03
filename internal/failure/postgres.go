package failure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPool is the subset of pgxpool.Pool the store uses; pgxmock
// satisfies it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore persists failure records via pgx.
type PostgresStore struct {
	pool pgxPool
}

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// NewPostgresStore connects a pool and returns the store.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool (tests).
func NewPostgresStoreWithPool(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping probes the backend for health reporting.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Insert writes one failure record and returns its ID.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) (int64, error) {
	candidates, err := json.Marshal(rec.Candidates)
	if err != nil {
		return 0, fmt.Errorf("marshal candidates: %w", err)
	}
	status := rec.Status
	if status == "" {
		status = StatusPending
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
INSERT INTO search_failures (
	original_query, normalized_query, candidates, attempted_count,
	error_message, category, brand, model, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		rec.OriginalQuery, rec.NormalizedQuery, candidates, rec.AttemptedCount,
		rec.ErrorMessage, rec.Category, rec.Brand, rec.Model, status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert failure record: %w", err)
	}
	return id, nil
}

// Stats aggregates counts inside the window.
func (s *PostgresStore) Stats(ctx context.Context, window time.Duration) (Stats, error) {
	since := time.Now().Add(-window)
	var st Stats
	err := s.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status <> 'pending')
FROM search_failures
WHERE created_at >= $1`, since).Scan(&st.Total, &st.Pending, &st.Resolved)
	if err != nil {
		return Stats{}, fmt.Errorf("failure stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT category, COUNT(*)
FROM search_failures
WHERE created_at >= $1
GROUP BY category
ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return Stats{}, fmt.Errorf("failure stats by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return Stats{}, fmt.Errorf("scan category count: %w", err)
		}
		st.ByCategory = append(st.ByCategory, cc)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate category counts: %w", err)
	}
	return st, nil
}

// Common returns the most-repeated (original, normalized) pairs.
func (s *PostgresStore) Common(ctx context.Context, limit int) ([]CommonFailure, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
SELECT original_query, normalized_query, COUNT(*) AS cnt
FROM search_failures
GROUP BY original_query, normalized_query
ORDER BY cnt DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("common failures: %w", err)
	}
	defer rows.Close()

	var out []CommonFailure
	for rows.Next() {
		var cf CommonFailure
		if err := rows.Scan(&cf.OriginalQuery, &cf.NormalizedQuery, &cf.Count); err != nil {
			return nil, fmt.Errorf("scan common failure: %w", err)
		}
		out = append(out, cf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate common failures: %w", err)
	}
	return out, nil
}

// Suggestions ranks patterns with at least three occurrences.
func (s *PostgresStore) Suggestions(ctx context.Context) ([]Suggestion, error) {
	rows, err := s.pool.Query(ctx, `
SELECT original_query, normalized_query, COUNT(*) AS cnt
FROM search_failures
WHERE status = 'pending'
GROUP BY original_query, normalized_query
HAVING COUNT(*) >= 3
ORDER BY cnt DESC`)
	if err != nil {
		return nil, fmt.Errorf("failure suggestions: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sg Suggestion
		if err := rows.Scan(&sg.OriginalQuery, &sg.NormalizedQuery, &sg.Count); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		switch {
		case sg.Count >= 10:
			sg.Priority = PriorityHigh
			sg.Action = "add a hard mapping for this query"
		case sg.Count >= 5:
			sg.Priority = PriorityMedium
			sg.Action = "review normalization output for this query"
		default:
			sg.Priority = PriorityLow
			sg.Action = "monitor"
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return out, nil
}

// Recent returns the newest records inside the window.
func (s *PostgresStore) Recent(ctx context.Context, window time.Duration, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	since := time.Now().Add(-window)
	rows, err := s.pool.Query(ctx, `
SELECT id, original_query, normalized_query, candidates, attempted_count,
	error_message, category, brand, model, status,
	COALESCE(correct_name, ''), COALESCE(correct_product_id, ''),
	created_at, updated_at
FROM search_failures
WHERE created_at >= $1
ORDER BY created_at DESC
LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent failures: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var candidates []byte
		if err := rows.Scan(
			&rec.ID, &rec.OriginalQuery, &rec.NormalizedQuery, &candidates,
			&rec.AttemptedCount, &rec.ErrorMessage, &rec.Category, &rec.Brand,
			&rec.Model, &rec.Status, &rec.CorrectName, &rec.CorrectProduct,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan failure record: %w", err)
		}
		if len(candidates) > 0 {
			if err := json.Unmarshal(candidates, &rec.Candidates); err != nil {
				rec.Candidates = nil
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failure records: %w", err)
	}
	return out, nil
}

// Resolve mutates one record's resolution state.
func (s *PostgresStore) Resolve(ctx context.Context, id int64, status, correctName, correctProduct string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE search_failures
SET status = $2,
	correct_name = NULLIF($3, ''),
	correct_product_id = NULLIF($4, ''),
	updated_at = NOW()
WHERE id = $1`, id, status, correctName, correctProduct)
	if err != nil {
		return fmt.Errorf("resolve failure record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failure record %d not found", id)
	}
	return nil
}
