// Package testutil provides test data builders and fake units for testing.
package testutil

import (
	"context"
	"sync"

	"github.com/costray/costray/pkg/models"
)

// FakeUnit is a configurable in-memory unit implementation. The zero value
// reports healthy and returns empty payloads; overrides adjust behavior.
type FakeUnit struct {
	UnitName     string
	UnitCategory string

	Health          models.HealthStatus
	ResourcePayload map[string]any
	UsagePayload    map[string]any
	MetricsPayload  map[string]any
	Recs            []models.Recommendation

	// HealthErr, ResourceErr etc. make the corresponding step fail.
	HealthErr   error
	ResourceErr error
	UsageErr    error
	MetricsErr  error
	RecsErr     error

	// FailuresBeforeSuccess makes the resource step fail that many times
	// with ResourceErr before succeeding, for retry scenarios.
	FailuresBeforeSuccess int

	mu        sync.Mutex
	calls     int
	stepOrder []string
}

// NewFakeUnit creates a healthy fake unit with default values that can be
// overridden.
func NewFakeUnit(name, category string, overrides ...func(*FakeUnit)) *FakeUnit {
	unit := &FakeUnit{
		UnitName:     name,
		UnitCategory: category,
		Health:       models.HealthStatus{Status: models.HealthHealthy, LatencyMs: 12},
		ResourcePayload: map[string]any{
			"count": float64(3),
		},
		UsagePayload:   map[string]any{"avg_utilization": 0.42},
		MetricsPayload: map[string]any{"datapoints": float64(100)},
	}

	for _, override := range overrides {
		override(unit)
	}

	return unit
}

// WithRecommendations sets the recommendations the fake returns.
func WithRecommendations(recs ...models.Recommendation) func(*FakeUnit) {
	return func(u *FakeUnit) {
		u.Recs = recs
	}
}

// WithPipelineError makes the resource enumeration step fail permanently.
func WithPipelineError(err error) func(*FakeUnit) {
	return func(u *FakeUnit) {
		u.ResourceErr = err
	}
}

// WithFlakyResources makes the resource step fail n times before succeeding.
func WithFlakyResources(n int, err error) func(*FakeUnit) {
	return func(u *FakeUnit) {
		u.FailuresBeforeSuccess = n
		u.ResourceErr = err
	}
}

func (u *FakeUnit) Name() string     { return u.UnitName }
func (u *FakeUnit) Category() string { return u.UnitCategory }

func (u *FakeUnit) recordStep(step string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.stepOrder = append(u.stepOrder, step)
}

// HealthCheck implements protocol.Unit.
func (u *FakeUnit) HealthCheck(_ context.Context) (models.HealthStatus, error) {
	u.recordStep("health")

	if u.HealthErr != nil {
		return models.HealthStatus{Status: models.HealthUnhealthy, Error: u.HealthErr.Error()}, u.HealthErr
	}

	return u.Health, nil
}

// Resources implements protocol.Unit.
func (u *FakeUnit) Resources(_ context.Context) (map[string]any, error) {
	u.recordStep("resources")

	u.mu.Lock()
	u.calls++
	calls := u.calls
	u.mu.Unlock()

	if u.ResourceErr != nil {
		if u.FailuresBeforeSuccess == 0 || calls <= u.FailuresBeforeSuccess {
			return nil, u.ResourceErr
		}
	}

	return u.ResourcePayload, nil
}

// AnalyzeUsage implements protocol.Unit.
func (u *FakeUnit) AnalyzeUsage(_ context.Context) (map[string]any, error) {
	u.recordStep("usage")

	if u.UsageErr != nil {
		return nil, u.UsageErr
	}

	return u.UsagePayload, nil
}

// CollectMetrics implements protocol.Unit.
func (u *FakeUnit) CollectMetrics(_ context.Context) (map[string]any, error) {
	u.recordStep("metrics")

	if u.MetricsErr != nil {
		return nil, u.MetricsErr
	}

	return u.MetricsPayload, nil
}

// Recommendations implements protocol.Unit.
func (u *FakeUnit) Recommendations(_ context.Context) ([]models.Recommendation, error) {
	u.recordStep("recommendations")

	if u.RecsErr != nil {
		return nil, u.RecsErr
	}

	return u.Recs, nil
}

// PipelineCalls returns how many times the resource step ran.
func (u *FakeUnit) PipelineCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.calls
}

// StepOrder returns the recorded pipeline step sequence.
func (u *FakeUnit) StepOrder() []string {
	u.mu.Lock()
	defer u.mu.Unlock()

	order := make([]string, len(u.stepOrder))
	copy(order, u.stepOrder)

	return order
}

// Rec builds a recommendation value with sensible defaults.
func Rec(unitName, category string, savings float64) models.Recommendation {
	return models.Recommendation{
		UnitName:                unitName,
		Category:                category,
		Description:             "rightsize underutilized resources",
		EstimatedMonthlySavings: savings,
		Effort:                  models.EffortMedium,
		Risk:                    models.RiskLow,
	}
}
