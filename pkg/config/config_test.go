package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/orchestrator"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "costray.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

func TestLoadOrchestratorConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
max_concurrent_batches: 3
batch_size: 25
unit_timeout: 90s
priority_categories: [compute, database]
breaker:
  failure_threshold: 10
  recovery_timeout: 2m
retry:
  max_attempts: 5
  jitter: false
  retryable_classes: [throttled]
`)

	cfg, err := LoadOrchestratorConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxConcurrentBatches)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.UnitTimeout)
	assert.Equal(t, []string{"compute", "database"}, cfg.PriorityCategories)
	assert.Equal(t, 10, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, []models.ErrorClass{models.ErrorClassThrottled}, cfg.Retry.RetryableClasses)

	// Untouched fields keep their defaults.
	defaults := orchestrator.DefaultConfig()
	assert.Equal(t, defaults.DeadlineMargin, cfg.DeadlineMargin)
	assert.Equal(t, defaults.Breaker.HalfOpenMaxCalls, cfg.Breaker.HalfOpenMaxCalls)
	assert.Equal(t, defaults.Retry.BaseDelay, cfg.Retry.BaseDelay)
}

func TestLoadOrchestratorConfig_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadOrchestratorConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, orchestrator.DefaultConfig(), cfg)
}

func TestLoadOrchestratorConfig_MissingFile(t *testing.T) {
	_, err := LoadOrchestratorConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadOrchestratorConfig_MalformedYAML(t *testing.T) {
	_, err := LoadOrchestratorConfig(writeConfig(t, "max_concurrent_batches: [oops"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}
