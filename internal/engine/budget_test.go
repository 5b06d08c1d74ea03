package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BudgetConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultBudgetConfig(), wantErr: false},
		{
			name: "stage sum exceeds total",
			cfg: BudgetConfig{
				Total:    5 * time.Second,
				Cache:    time.Second,
				FastPath: 3 * time.Second,
				SlowPath: 3 * time.Second,
			},
			wantErr: true,
		},
		{name: "zero total", cfg: BudgetConfig{}, wantErr: true},
		{
			name: "negative min remaining",
			cfg: BudgetConfig{
				Total:        10 * time.Second,
				MinRemaining: -time.Second,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBudgetRemaining(t *testing.T) {
	b, err := NewBudget(DefaultBudgetConfig())
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), b.Elapsed())

	b.Start()
	assert.LessOrEqual(t, b.Elapsed(), 100*time.Millisecond)
	assert.Greater(t, b.Remaining(), 11*time.Second)
	assert.False(t, b.IsExhausted())
}

func TestBudgetTimeoutFor(t *testing.T) {
	cfg := BudgetConfig{
		Total:        200 * time.Millisecond,
		Cache:        50 * time.Millisecond,
		FastPath:     100 * time.Millisecond,
		SlowPath:     50 * time.Millisecond,
		MinRemaining: 10 * time.Millisecond,
	}
	b, err := NewBudget(cfg)
	require.NoError(t, err)
	b.Start()

	// Fresh budget: stage defaults win.
	assert.Equal(t, 50*time.Millisecond, b.TimeoutFor(StageCache))
	assert.Equal(t, 100*time.Millisecond, b.TimeoutFor(StageFastPath))

	time.Sleep(160 * time.Millisecond)
	// Stage default exceeds what is left; remaining wins and is never
	// negative.
	assert.LessOrEqual(t, b.TimeoutFor(StageFastPath), 50*time.Millisecond)
	assert.GreaterOrEqual(t, b.TimeoutFor(StageSlowPath), time.Duration(0))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, time.Duration(0), b.Remaining())
	assert.True(t, b.IsExhausted())
	assert.False(t, b.CanRun(StageSlowPath))
}

func TestBudgetCanRunIsStrict(t *testing.T) {
	cfg := BudgetConfig{
		Total:        100 * time.Millisecond,
		Cache:        10 * time.Millisecond,
		FastPath:     40 * time.Millisecond,
		SlowPath:     50 * time.Millisecond,
		MinRemaining: 5 * time.Millisecond,
	}
	b, err := NewBudget(cfg)
	require.NoError(t, err)
	b.Start()

	assert.True(t, b.CanRun(StageSlowPath))
	time.Sleep(60 * time.Millisecond)
	// A partially consumed stage allocation is not enough.
	assert.False(t, b.CanRun(StageSlowPath))
}

func TestBudgetCandidateTimeout(t *testing.T) {
	cfg := BudgetConfig{
		Total:        10 * time.Second,
		Cache:        500 * time.Millisecond,
		FastPath:     4 * time.Second,
		SlowPath:     5 * time.Second,
		MinRemaining: time.Second,
	}
	b, err := NewBudget(cfg)
	require.NoError(t, err)
	b.Start()

	// Four candidates left: each gets a quarter of the stage default.
	perCandidate := b.CandidateTimeout(StageFastPath, 4)
	assert.InDelta(t, float64(time.Second), float64(perCandidate), float64(50*time.Millisecond))

	// One candidate left: the full stage default (bounded by remaining).
	assert.InDelta(t, float64(4*time.Second), float64(b.CandidateTimeout(StageFastPath, 1)),
		float64(100*time.Millisecond))

	// Degenerate count is clamped.
	assert.Greater(t, b.CandidateTimeout(StageFastPath, 0), time.Duration(0))
}

func TestBudgetCheckpoints(t *testing.T) {
	b, err := NewBudget(DefaultBudgetConfig())
	require.NoError(t, err)

	// Checkpoints before Start are dropped.
	b.Checkpoint("ignored")
	assert.Empty(t, b.Checkpoints())

	b.Start()
	b.Checkpoint("cache_miss")
	b.Checkpoint("fastpath_success")

	cps := b.Checkpoints()
	require.Len(t, cps, 2)
	assert.Equal(t, "cache_miss", cps[0].Name)
	assert.Equal(t, "fastpath_success", cps[1].Name)
	assert.LessOrEqual(t, cps[0].Elapsed, cps[1].Elapsed)

	report := b.Report()
	assert.Equal(t, int64(12000), report["total_ms"])
	checkpoints, ok := report["checkpoints"].(map[string]int64)
	require.True(t, ok)
	assert.Contains(t, checkpoints, "cache_miss")
}
