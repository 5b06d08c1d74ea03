package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 12*time.Second, cfg.EngineBudget().Total)
	assert.Equal(t, 500*time.Millisecond, cfg.EngineBudget().Cache)
	assert.Equal(t, 4*time.Second, cfg.EngineBudget().FastPath)
	assert.Equal(t, 6500*time.Millisecond, cfg.EngineBudget().SlowPath)
	assert.True(t, cfg.Features.SlowPathEnabled)
	assert.Equal(t, "resources", cfg.Resources.Dir)
	assert.Equal(t, "search.danawa.com", cfg.Crawler.Origin)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
budget:
  fastpath_ms: 3000
features:
  slowpath_enabled: false
cache:
  redis_url: redis://localhost:6379/0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.EngineBudget().FastPath)
	assert.False(t, cfg.Features.SlowPathEnabled)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
}

func TestLoadRejectsBudgetOverflow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
budget:
  total_ms: 5000
  fastpath_ms: 3000
  slowpath_ms: 3000
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
}

func TestLoadRejectsBadBrowserConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
features:
  slowpath_enabled: true
browser:
  max_pages: 0
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PRICESEARCH_SERVER_PORT", "7070")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}
