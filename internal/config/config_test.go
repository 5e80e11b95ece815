package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
storage:
  type: memory
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 70, cfg.Capability.Baseline)
	assert.Equal(t, 5, cfg.Capability.Step)
	assert.Equal(t, 10, cfg.Capability.SimplifyPenalty)
	assert.Equal(t, 20, cfg.Capability.Window)
	assert.Equal(t, 30, cfg.Capability.LowMax)
	assert.Equal(t, 60, cfg.Capability.MediumMax)
	assert.Contains(t, cfg.Capability.ConfusionKeywords, "confused")
	assert.Equal(t, 3, cfg.Speech.Workers)
	assert.Equal(t, time.Minute, cfg.Speech.JobTimeout())
	assert.Equal(t, 30*24*time.Hour, cfg.Cache.MaxIdle())
	assert.Equal(t, "logs/app.log", cfg.Log.File)
	assert.Equal(t, "vidyabot-backend", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadConfigRejectsSampleRatio(t *testing.T) {
	dir := writeConfig(t, `
storage:
  type: memory
tracing:
  sample_ratio: 1.5
`)

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "sample_ratio")
}

func TestLoadConfigOverridesTunables(t *testing.T) {
	dir := writeConfig(t, `
storage:
  type: memory
capability:
  medium_max: 70
  confusion_keywords: [lost]
speech:
  workers: 5
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.Capability.MediumMax)
	assert.Equal(t, []string{"lost"}, cfg.Capability.ConfusionKeywords)
	assert.Equal(t, 5, cfg.Speech.Workers)
}

func TestLoadConfigRejectsInvalidThresholds(t *testing.T) {
	dir := writeConfig(t, `
storage:
  type: memory
capability:
  low_max: 60
  medium_max: 40
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds")
}

func TestLoadConfigRejectsEmptyPool(t *testing.T) {
	dir := writeConfig(t, `
storage:
  type: memory
speech:
  workers: 0
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}
