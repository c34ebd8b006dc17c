// Package protocol defines the contracts between the batch engine and the
// per-service analyzers it drives.
package protocol

import (
	"context"

	"github.com/costray/costray/pkg/models"
)

// Unit is one independently analyzable cloud service. The engine treats the
// payloads as opaque: only the recommendation list has structure it cares
// about. The five pipeline methods are always invoked strictly in the order
// they are declared here.
type Unit interface {
	Name() string
	Category() string

	HealthCheck(ctx context.Context) (models.HealthStatus, error)
	Resources(ctx context.Context) (map[string]any, error)
	AnalyzeUsage(ctx context.Context) (map[string]any, error)
	CollectMetrics(ctx context.Context) (map[string]any, error)
	Recommendations(ctx context.Context) ([]models.Recommendation, error)
}

// UnitFactory creates unit instances from catalog configuration.
type UnitFactory interface {
	Create(descriptor models.UnitDescriptor) (Unit, error)
	ID() string
}
