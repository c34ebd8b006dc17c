// Package config provides YAML configuration loading for the orchestrator.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/orchestrator"
)

// File is the on-disk shape of an orchestrator configuration. Every field is
// optional; absent fields keep their defaults.
type File struct {
	MaxConcurrentBatches int           `yaml:"max_concurrent_batches"`
	BatchSize            int           `yaml:"batch_size"`
	UnitTimeout          time.Duration `yaml:"unit_timeout"`
	DeadlineMargin       time.Duration `yaml:"deadline_margin"`
	PriorityCategories   []string      `yaml:"priority_categories"`

	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold"`
		RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
		HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
		SuccessThreshold int           `yaml:"success_threshold"`
	} `yaml:"breaker"`

	Retry struct {
		MaxAttempts       int           `yaml:"max_attempts"`
		BaseDelay         time.Duration `yaml:"base_delay"`
		MaxDelay          time.Duration `yaml:"max_delay"`
		BackoffMultiplier float64       `yaml:"backoff_multiplier"`
		Jitter            *bool         `yaml:"jitter"`
		RetryableClasses  []string      `yaml:"retryable_classes"`
	} `yaml:"retry"`
}

// LoadOrchestratorConfig reads a YAML file and overlays it onto the default
// orchestrator configuration. The result is validated by the orchestrator at
// construction, not here.
func LoadOrchestratorConfig(path string) (orchestrator.Config, error) {
	cfg := orchestrator.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	applyFile(&cfg, file)

	return cfg, nil
}

func applyFile(cfg *orchestrator.Config, file File) {
	if file.MaxConcurrentBatches > 0 {
		cfg.MaxConcurrentBatches = file.MaxConcurrentBatches
	}

	if file.BatchSize > 0 {
		cfg.BatchSize = file.BatchSize
	}

	if file.UnitTimeout > 0 {
		cfg.UnitTimeout = file.UnitTimeout
	}

	if file.DeadlineMargin > 0 {
		cfg.DeadlineMargin = file.DeadlineMargin
	}

	if len(file.PriorityCategories) > 0 {
		cfg.PriorityCategories = file.PriorityCategories
	}

	if file.Breaker.FailureThreshold > 0 {
		cfg.Breaker.FailureThreshold = file.Breaker.FailureThreshold
	}

	if file.Breaker.RecoveryTimeout > 0 {
		cfg.Breaker.RecoveryTimeout = file.Breaker.RecoveryTimeout
	}

	if file.Breaker.HalfOpenMaxCalls > 0 {
		cfg.Breaker.HalfOpenMaxCalls = file.Breaker.HalfOpenMaxCalls
	}

	if file.Breaker.SuccessThreshold > 0 {
		cfg.Breaker.SuccessThreshold = file.Breaker.SuccessThreshold
	}

	if file.Retry.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = file.Retry.MaxAttempts
	}

	if file.Retry.BaseDelay > 0 {
		cfg.Retry.BaseDelay = file.Retry.BaseDelay
	}

	if file.Retry.MaxDelay > 0 {
		cfg.Retry.MaxDelay = file.Retry.MaxDelay
	}

	if file.Retry.BackoffMultiplier > 0 {
		cfg.Retry.BackoffMultiplier = file.Retry.BackoffMultiplier
	}

	if file.Retry.Jitter != nil {
		cfg.Retry.Jitter = *file.Retry.Jitter
	}

	if len(file.Retry.RetryableClasses) > 0 {
		classes := make([]models.ErrorClass, 0, len(file.Retry.RetryableClasses))
		for _, class := range file.Retry.RetryableClasses {
			classes = append(classes, models.ErrorClass(class))
		}

		cfg.Retry.RetryableClasses = classes
	}
}
