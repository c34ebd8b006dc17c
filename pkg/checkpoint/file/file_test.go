package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore(t.TempDir())
	require.NoError(t, store.HealthCheck(context.Background()))

	return store
}

func TestStore_CreateAndLoadExecution(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	state, err := store.CreateExecution(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, state.ID)
	assert.Equal(t, models.ExecutionRunning, state.Status)
	assert.Equal(t, 10, state.TotalUnits)

	loaded, err := store.LoadExecution(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.ID, loaded.ID)
	assert.Equal(t, 10, loaded.TotalUnits)
}

func TestStore_LoadExecution_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadExecution(context.Background(), "exec-missing")
	assert.ErrorIs(t, err, checkpoint.ErrExecutionNotFound)
}

func TestStore_UpdateExecution_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	state, err := store.CreateExecution(ctx, 3)
	require.NoError(t, err)

	state.MarkCompleted("ec2")
	state.MarkFailed("rds")
	state.Seal()
	require.NoError(t, store.UpdateExecution(ctx, state))

	// A second store over the same root simulates a process restart.
	reopened := NewStore(store.root)

	loaded, err := reopened.LoadExecution(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionPartial, loaded.Status)
	assert.Equal(t, []string{"ec2"}, loaded.CompletedUnits)
	assert.Equal(t, []string{"rds"}, loaded.FailedUnits)
}

func TestStore_SaveResult_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	cp := &models.Checkpoint{
		UnitName:    "ec2",
		ExecutionID: "exec-abc12345",
		Result:      map[string]any{"instances": float64(12)},
		SavedAt:     time.Now().UTC(),
	}

	require.NoError(t, store.SaveResult(ctx, cp))
	require.NoError(t, store.SaveResult(ctx, cp))

	loaded, err := store.LoadResult(ctx, "exec-abc12345", "ec2")
	require.NoError(t, err)
	assert.Equal(t, cp.Result, loaded.Result)

	done, err := store.IsCompleted(ctx, "exec-abc12345", "ec2")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestStore_IsCompleted_FalseWhenMissing(t *testing.T) {
	store := newTestStore(t)

	done, err := store.IsCompleted(context.Background(), "exec-abc12345", "ec2")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStore_LoadResult_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadResult(context.Background(), "exec-abc12345", "ec2")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestStore_SaveAndLoadReport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	report := &models.FinalReport{
		ExecutionID:       "exec-abc12345",
		Timestamp:         time.Now().UTC(),
		Status:            models.ExecutionCompleted,
		ServicesTotal:     2,
		ServicesCompleted: 2,
		SuccessRate:       1,
		Recommendations: []models.Recommendation{
			{UnitName: "ec2", Category: "compute", EstimatedMonthlySavings: 1200, Effort: models.EffortLow, Risk: models.RiskLow},
		},
		TotalPotentialSavings: 1200,
	}

	require.NoError(t, store.SaveReport(ctx, report))

	loaded, err := store.LoadReport(ctx, "exec-abc12345")
	require.NoError(t, err)
	assert.Equal(t, report.TotalPotentialSavings, loaded.TotalPotentialSavings)
	assert.Len(t, loaded.Recommendations, 1)
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.LoadExecution(ctx, "../escape")
	require.Error(t, err)
	assert.NotErrorIs(t, err, checkpoint.ErrExecutionNotFound)

	err = store.SaveResult(ctx, &models.Checkpoint{ExecutionID: "exec-1", UnitName: "a/b"})
	assert.Error(t, err)
}
