package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process engine.Cache used in tests and when no
// Redis URL is configured. Same key discipline and TTLs as the Redis
// adapter.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}}
}

func (m *Memory) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (m *Memory) del(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
}

// GetPositive returns the cached envelope as stored.
func (m *Memory) GetPositive(_ context.Context, query string) (*engine.SearchResult, bool) {
	v, ok := m.get(positiveKey(query))
	if !ok {
		return nil, false
	}
	res, ok := v.(engine.SearchResult)
	if !ok {
		return nil, false
	}
	copied := res
	return &copied, true
}

// SetPositive stores a copy of the envelope.
func (m *Memory) SetPositive(_ context.Context, query string, res *engine.SearchResult) {
	if res == nil {
		return
	}
	m.set(positiveKey(query), *res, PositiveTTL)
}

// GetNegative returns the stored failure reason, or a miss.
func (m *Memory) GetNegative(_ context.Context, query string) (string, bool) {
	v, ok := m.get(negativeKey(query))
	if !ok {
		return "", false
	}
	reason, _ := v.(string)
	return reason, true
}

// SetNegative stores the failure reason for the negative TTL.
func (m *Memory) SetNegative(_ context.Context, query, reason string) {
	m.set(negativeKey(query), reason, NegativeTTL)
}

// FailureCount returns the consecutive-failure count.
func (m *Memory) FailureCount(_ context.Context, query string) int {
	v, ok := m.get(failCountKey(query))
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

// BumpFailure increments the consecutive-failure counter.
func (m *Memory) BumpFailure(ctx context.Context, query string) int {
	n := m.FailureCount(ctx, query) + 1
	m.set(failCountKey(query), n, FailCountTTL)
	return n
}

// ResetFailure clears the counter.
func (m *Memory) ResetFailure(_ context.Context, query string) {
	m.del(failCountKey(query))
}

// BreakerOpen reports whether the origin's breaker is open.
func (m *Memory) BreakerOpen(_ context.Context, origin string) bool {
	_, ok := m.get(breakerOpenKey(origin))
	return ok
}

// BreakerTrip counts one failure and opens the breaker at threshold.
func (m *Memory) BreakerTrip(_ context.Context, origin string) {
	key := breakerFailKey(origin)
	n := 1
	if v, ok := m.get(key); ok {
		if prev, isInt := v.(int); isInt {
			n = prev + 1
		}
	}
	m.set(key, n, FailCountTTL)
	if n >= BreakerThreshold {
		m.set(breakerOpenKey(origin), time.Now().Add(BreakerOpen).UnixMilli(), BreakerOpen)
	}
}

// BreakerReset closes the breaker.
func (m *Memory) BreakerReset(_ context.Context, origin string) {
	m.del(breakerFailKey(origin), breakerOpenKey(origin))
}
