package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Orchestrator.MaxIterations)
	assert.InDelta(t, 0.6, cfg.Orchestrator.QualityThreshold, 1e-9)
	assert.Equal(t, "finance_news", cfg.Knowledge.Collection)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MAX_ITERATIONS", "5")
	t.Setenv("ORCHESTRATOR_QUALITY_THRESHOLD", "0.8")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("QDRANT_HOST", "qdrant.internal")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Orchestrator.MaxIterations)
	assert.InDelta(t, 0.8, cfg.Orchestrator.QualityThreshold, 1e-9)
	assert.True(t, cfg.Cache.Enabled, "setting REDIS_ADDR enables the cache")
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	assert.Equal(t, "qdrant.internal", cfg.Knowledge.Host)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fintel.yaml")
	content := []byte(`
orchestrator:
  max_iterations: 3
  quality_threshold: 0.7
knowledge:
  collection: custom_news
  host: kb.local
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Orchestrator.MaxIterations)
	assert.InDelta(t, 0.7, cfg.Orchestrator.QualityThreshold, 1e-9)
	assert.Equal(t, "custom_news", cfg.Knowledge.Collection)
	assert.Equal(t, "kb.local", cfg.Knowledge.Host)
	// Untouched sections keep defaults.
	assert.Equal(t, 8080, cfg.Service.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.MaxIterations = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Orchestrator.QualityThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Knowledge.Collection = ""
	assert.Error(t, cfg.Validate())
}
