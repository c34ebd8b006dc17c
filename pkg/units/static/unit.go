// Package static provides a unit whose inventory and recommendations come
// straight from its catalog configuration. It exists for dry runs, demos and
// wiring tests; real per-service analyzers register their own factories.
package static

import (
	"context"
	"fmt"

	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/protocol"
)

type Unit struct {
	name            string
	category        string
	resources       map[string]any
	usage           map[string]any
	metrics         map[string]any
	recommendations []models.Recommendation
}

func (u *Unit) Name() string     { return u.name }
func (u *Unit) Category() string { return u.category }

func (u *Unit) HealthCheck(_ context.Context) (models.HealthStatus, error) {
	return models.HealthStatus{Status: models.HealthHealthy}, nil
}

func (u *Unit) Resources(_ context.Context) (map[string]any, error) {
	return u.resources, nil
}

func (u *Unit) AnalyzeUsage(_ context.Context) (map[string]any, error) {
	return u.usage, nil
}

func (u *Unit) CollectMetrics(_ context.Context) (map[string]any, error) {
	return u.metrics, nil
}

func (u *Unit) Recommendations(_ context.Context) ([]models.Recommendation, error) {
	return u.recommendations, nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return "static"
}

// Create builds a static unit from a catalog descriptor. The config may
// carry "resources", "usage", "metrics" maps and a "recommendations" list.
func (f *Factory) Create(descriptor models.UnitDescriptor) (protocol.Unit, error) {
	unit := &Unit{
		name:      descriptor.Name,
		category:  descriptor.Category,
		resources: map[string]any{},
		usage:     map[string]any{},
		metrics:   map[string]any{},
	}

	if m, ok := descriptor.Config["resources"].(map[string]any); ok {
		unit.resources = m
	}

	if m, ok := descriptor.Config["usage"].(map[string]any); ok {
		unit.usage = m
	}

	if m, ok := descriptor.Config["metrics"].(map[string]any); ok {
		unit.metrics = m
	}

	if raw, ok := descriptor.Config["recommendations"].([]any); ok {
		for i, entry := range raw {
			rec, err := parseRecommendation(descriptor.Name, descriptor.Category, entry)
			if err != nil {
				return nil, fmt.Errorf("recommendation %d for unit %s: %w", i, descriptor.Name, err)
			}

			unit.recommendations = append(unit.recommendations, rec)
		}
	}

	return unit, nil
}

func parseRecommendation(unitName, category string, entry any) (models.Recommendation, error) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return models.Recommendation{}, fmt.Errorf("expected object, got %T", entry)
	}

	rec := models.Recommendation{
		UnitName: unitName,
		Category: category,
		Effort:   models.EffortMedium,
		Risk:     models.RiskMedium,
	}

	if v, ok := fields["description"].(string); ok {
		rec.Description = v
	}

	if v, ok := fields["estimated_monthly_savings"].(float64); ok {
		if v < 0 {
			return models.Recommendation{}, fmt.Errorf("savings must be non-negative, got %v", v)
		}

		rec.EstimatedMonthlySavings = v
	}

	if v, ok := fields["effort"].(string); ok {
		rec.Effort = models.EffortLevel(v)
	}

	if v, ok := fields["risk"].(string); ok {
		rec.Risk = models.RiskLevel(v)
	}

	return rec, nil
}
