package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

func TestKeysAreHashedAndNamespaced(t *testing.T) {
	pos := positiveKey("맥북 에어 15")
	neg := negativeKey("맥북 에어 15")

	assert.NotContains(t, pos, "맥북", "raw query must never appear in a key")
	assert.Contains(t, pos, "price:pos:")
	assert.Contains(t, neg, "price:neg:")
	// Same query, different namespaces, same digest.
	assert.Equal(t, pos[len("price:pos:"):], neg[len("price:neg:"):])
	// Distinct queries hash apart.
	assert.NotEqual(t, positiveKey("a"), positiveKey("b"))

	assert.Equal(t, "cb:agg.example:open", breakerOpenKey("agg.example"))
}

func TestMemoryPositiveRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok := m.GetPositive(ctx, "q")
	assert.False(t, ok)

	stored := &engine.SearchResult{
		Status:      engine.StatusFastPathSuccess,
		Source:      engine.SourceFastPath,
		LowestPrice: 1000,
		TopOffers:   []engine.Offer{{Rank: 1, Price: 1000, Link: "https://x.example"}},
	}
	m.SetPositive(ctx, "q", stored)

	got, ok := m.GetPositive(ctx, "q")
	require.True(t, ok)
	// The stored envelope keeps its original source tag; relabeling is
	// the orchestrator's job.
	assert.Equal(t, engine.SourceFastPath, got.Source)
	assert.Equal(t, int64(1000), got.LowestPrice)

	// Mutating the returned envelope must not corrupt the cache.
	got.Source = engine.SourceCache
	again, ok := m.GetPositive(ctx, "q")
	require.True(t, ok)
	assert.Equal(t, engine.SourceFastPath, again.Source)
}

func TestMemoryNegative(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok := m.GetNegative(ctx, "q")
	assert.False(t, ok)

	m.SetNegative(ctx, "q", "no matching product found")
	reason, ok := m.GetNegative(ctx, "q")
	require.True(t, ok)
	assert.Equal(t, "no matching product found", reason)
}

func TestMemoryFailureCounter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	assert.Equal(t, 0, m.FailureCount(ctx, "q"))
	assert.Equal(t, 1, m.BumpFailure(ctx, "q"))
	assert.Equal(t, 2, m.BumpFailure(ctx, "q"))
	assert.Equal(t, 2, m.FailureCount(ctx, "q"))

	m.ResetFailure(ctx, "q")
	assert.Equal(t, 0, m.FailureCount(ctx, "q"))
}

func TestMemoryBreaker(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	origin := "agg.example"

	assert.False(t, m.BreakerOpen(ctx, origin))
	m.BreakerTrip(ctx, origin)
	m.BreakerTrip(ctx, origin)
	assert.False(t, m.BreakerOpen(ctx, origin), "below threshold stays closed")

	m.BreakerTrip(ctx, origin)
	assert.True(t, m.BreakerOpen(ctx, origin), "third trip opens the breaker")

	// Other origins are unaffected.
	assert.False(t, m.BreakerOpen(ctx, "other.example"))

	m.BreakerReset(ctx, origin)
	assert.False(t, m.BreakerOpen(ctx, origin))
	// And the failure count restarted.
	m.BreakerTrip(ctx, origin)
	assert.False(t, m.BreakerOpen(ctx, origin))
}

func TestMemoryImplementsEngineCache(t *testing.T) {
	var _ engine.Cache = NewMemory()
	var _ engine.Cache = &Redis{}
}
