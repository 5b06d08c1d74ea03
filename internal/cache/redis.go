package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

// Redis implements engine.Cache on a Redis backend. All operations are
// best-effort: reads fail to misses, writes fail silently (logged),
// and the caller's deadline bounds every round trip.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis builds the adapter from a redis URL
// (redis://[:password@]host:port/db).
func NewRedis(url string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: redis.NewClient(opts), logger: logger}, nil
}

// NewRedisWithClient wraps an existing client (tests).
func NewRedisWithClient(client *redis.Client, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, logger: logger}
}

// Ping probes the backend for health reporting.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// GetPositive returns the stored result envelope for the query, or a
// miss. The stored envelope keeps its original source tag.
func (r *Redis) GetPositive(ctx context.Context, query string) (*engine.SearchResult, bool) {
	data, err := r.client.Get(ctx, positiveKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("positive cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var res engine.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		r.logger.Warn("positive cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &res, true
}

// SetPositive writes the result envelope with the 6-hour TTL.
func (r *Redis) SetPositive(ctx context.Context, query string, res *engine.SearchResult) {
	data, err := json.Marshal(res)
	if err != nil {
		r.logger.Warn("positive cache marshal failed", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, positiveKey(query), data, PositiveTTL).Err(); err != nil {
		r.logger.Warn("positive cache write failed", zap.Error(err))
	}
}

// GetNegative returns the short failure reason for the query, or a
// miss.
func (r *Redis) GetNegative(ctx context.Context, query string) (string, bool) {
	reason, err := r.client.Get(ctx, negativeKey(query)).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("negative cache read failed", zap.Error(err))
		}
		return "", false
	}
	return reason, true
}

// SetNegative marks the query unfound for the 60-second TTL.
func (r *Redis) SetNegative(ctx context.Context, query, reason string) {
	if err := r.client.Set(ctx, negativeKey(query), reason, NegativeTTL).Err(); err != nil {
		r.logger.Warn("negative cache write failed", zap.Error(err))
	}
}

// FailureCount returns the consecutive terminal-failure count.
func (r *Redis) FailureCount(ctx context.Context, query string) int {
	n, err := r.client.Get(ctx, failCountKey(query)).Int()
	if err != nil {
		return 0
	}
	return n
}

// BumpFailure increments the consecutive-failure counter.
func (r *Redis) BumpFailure(ctx context.Context, query string) int {
	key := failCountKey(query)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Warn("failure counter increment failed", zap.Error(err))
		return 1
	}
	r.client.Expire(ctx, key, FailCountTTL)
	return int(n)
}

// ResetFailure clears the counter after a success.
func (r *Redis) ResetFailure(ctx context.Context, query string) {
	if err := r.client.Del(ctx, failCountKey(query)).Err(); err != nil {
		r.logger.Warn("failure counter reset failed", zap.Error(err))
	}
}

// BreakerOpen reports whether the origin's breaker is currently open.
func (r *Redis) BreakerOpen(ctx context.Context, origin string) bool {
	n, err := r.client.Exists(ctx, breakerOpenKey(origin)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// BreakerTrip records one upstream failure; at the threshold the
// breaker opens for 60 seconds. Lost updates under contention are
// tolerated by design.
func (r *Redis) BreakerTrip(ctx context.Context, origin string) {
	key := breakerFailKey(origin)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Warn("breaker increment failed", zap.Error(err))
		return
	}
	r.client.Expire(ctx, key, FailCountTTL)
	if n >= BreakerThreshold {
		if err := r.client.Set(ctx, breakerOpenKey(origin), time.Now().Add(BreakerOpen).UnixMilli(), BreakerOpen).Err(); err != nil {
			r.logger.Warn("breaker open write failed", zap.Error(err))
		}
	}
}

// BreakerReset closes the breaker after an upstream success.
func (r *Redis) BreakerReset(ctx context.Context, origin string) {
	if err := r.client.Del(ctx, breakerFailKey(origin), breakerOpenKey(origin)).Err(); err != nil {
		r.logger.Warn("breaker reset failed", zap.Error(err))
	}
}
