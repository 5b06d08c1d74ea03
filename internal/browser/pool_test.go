package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Launching Chrome is out of scope for unit tests; these cover the
// construction contract and capacity defaults.

func TestNewRejectsZeroCapacity(t *testing.T) {
	_, err := New(Config{MaxPages: 0}, nil)
	assert.Error(t, err)

	_, err = New(Config{MaxPages: -1}, nil)
	assert.Error(t, err)
}

func TestNewDefaultsWarmContexts(t *testing.T) {
	p, err := New(Config{MaxPages: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.allocCancel() })

	assert.Equal(t, 1, p.cfg.WarmContexts)
	assert.NotNil(t, p.sem)
}

func TestReleaseNilPageIsSafe(t *testing.T) {
	p, err := New(Config{MaxPages: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.allocCancel() })

	p.Release(nil, true)
	p.Release(nil, false)
}
