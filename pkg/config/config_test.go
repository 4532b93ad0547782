package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, Weights{S: 0.45, R: 0.20, I: 0.25, Q: 0.10}, cfg.Weights)
	assert.Equal(t, 0.95, cfg.ApprovalPercentile)
	assert.Equal(t, 20, cfg.LLM.DailyLimit)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("LLM_DAILY_LIMIT", "5")
	t.Setenv("LENGTHY_APPROVAL_PERCENTILE", "0.9")
	t.Setenv("LLM_TIMEOUT_SECONDS", "2.5")

	cfg := Load()
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.DailyLimit)
	assert.Equal(t, 0.9, cfg.ApprovalPercentile)
	assert.Equal(t, 2500*time.Millisecond, cfg.LLM.Timeout)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("LLM_DAILY_LIMIT", "not-a-number")
	cfg := Load()
	assert.Equal(t, 20, cfg.LLM.DailyLimit)
}

func TestApplyProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
weights:
  wS: 0.5
  wR: 0.2
  wI: 0.2
  wQ: 0.1
thresholds:
  lengthy_approval:
    p: 0.9
llm:
  provider: mock
  timeout_seconds: 10
`), 0o644))

	base := Default()
	cfg, err := ApplyProfile(base, path)
	require.NoError(t, err)

	assert.Equal(t, Weights{S: 0.5, R: 0.2, I: 0.2, Q: 0.1}, cfg.Weights)
	assert.Equal(t, 0.9, cfg.ApprovalPercentile)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	// base untouched
	assert.Equal(t, 0.95, base.ApprovalPercentile)
	assert.Equal(t, "openai", base.LLM.Provider)
}

func TestApplyProfileMissingFile(t *testing.T) {
	_, err := ApplyProfile(Default(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
