// Package checkpoint provides the durable storage abstraction that makes
// multi-hour runs resumable. Implementations must survive process restarts
// and provide read-after-write consistency per key; concurrent writes for
// different unit names never conflict.
package checkpoint

import (
	"context"

	"github.com/costray/costray/pkg/models"
)

// Store persists execution state, per-unit checkpoints and final reports.
// SaveResult must be idempotent: writing the same (execution, unit) pair
// twice is safe and IsCompleted reflects the most recent successful write.
type Store interface {
	CreateExecution(ctx context.Context, totalUnits int) (*models.ExecutionState, error)
	LoadExecution(ctx context.Context, executionID string) (*models.ExecutionState, error)
	UpdateExecution(ctx context.Context, state *models.ExecutionState) error

	SaveResult(ctx context.Context, cp *models.Checkpoint) error
	LoadResult(ctx context.Context, executionID, unitName string) (*models.Checkpoint, error)
	IsCompleted(ctx context.Context, executionID, unitName string) (bool, error)

	SaveReport(ctx context.Context, report *models.FinalReport) error
	LoadReport(ctx context.Context, executionID string) (*models.FinalReport, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
