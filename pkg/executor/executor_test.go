package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/costray/costray/pkg/breaker"
	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/checkpoint/file"
	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/protocol"
	"github.com/costray/costray/pkg/retry"
	"github.com/costray/costray/pkg/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
		RetryableClasses: []models.ErrorClass{
			models.ErrorClassTransient,
			models.ErrorClassThrottled,
		},
	}
}

func newTestExecutor(t *testing.T, store checkpoint.Store) (*Executor, *breaker.Arena) {
	t.Helper()

	arena := breaker.NewArena(breaker.DefaultSettings())
	exec := NewExecutor(store, arena, testPolicy(),
		noop.NewTracerProvider().Tracer("test"), testLogger(), time.Minute)

	return exec, arena
}

// flakyStore wraps a real store and injects errors per method.
type flakyStore struct {
	checkpoint.Store

	isCompletedErr error
	saveResultErr  error
}

func (s *flakyStore) IsCompleted(ctx context.Context, executionID, unitName string) (bool, error) {
	if s.isCompletedErr != nil {
		return false, s.isCompletedErr
	}

	return s.Store.IsCompleted(ctx, executionID, unitName)
}

func (s *flakyStore) SaveResult(ctx context.Context, cp *models.Checkpoint) error {
	if s.saveResultErr != nil {
		return s.saveResultErr
	}

	return s.Store.SaveResult(ctx, cp)
}

func TestExecutor_SuccessfulRunPersistsCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := file.NewStore(t.TempDir())
	exec, _ := newTestExecutor(t, store)

	unit := testutil.NewFakeUnit("ec2", "compute",
		testutil.WithRecommendations(testutil.Rec("ec2", "compute", 120)))

	outcome, err := exec.Run(ctx, "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSucceeded, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	assert.False(t, outcome.FromCheckpoint)
	assert.Len(t, outcome.Recommendations, 1)
	assert.Contains(t, outcome.Result, "resources")

	completed, err := store.IsCompleted(ctx, "exec-1", "ec2")
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestExecutor_PipelineStepOrder(t *testing.T) {
	store := file.NewStore(t.TempDir())
	exec, _ := newTestExecutor(t, store)

	unit := testutil.NewFakeUnit("ec2", "compute")

	_, err := exec.Run(context.Background(), "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, []string{"health", "resources", "usage", "metrics", "recommendations"}, unit.StepOrder())
}

func TestExecutor_RestoresCheckpointWithoutRerunning(t *testing.T) {
	ctx := context.Background()
	store := file.NewStore(t.TempDir())
	exec, _ := newTestExecutor(t, store)

	require.NoError(t, store.SaveResult(ctx, &models.Checkpoint{
		ExecutionID:     "exec-1",
		UnitName:        "s3",
		Result:          map[string]any{"resources": map[string]any{"buckets": float64(7)}},
		Recommendations: []models.Recommendation{testutil.Rec("s3", "storage", 55)},
		SavedAt:         time.Now().UTC(),
	}))

	unit := testutil.NewFakeUnit("s3", "storage")

	outcome, err := exec.Run(ctx, "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSucceeded, outcome.Status)
	assert.True(t, outcome.FromCheckpoint)
	assert.Len(t, outcome.Recommendations, 1)
	assert.Equal(t, 0, unit.PipelineCalls(), "pipeline must not run for a checkpointed unit")
}

func TestExecutor_RetriesTransientThenSucceeds(t *testing.T) {
	store := file.NewStore(t.TempDir())
	exec, _ := newTestExecutor(t, store)

	transient := fmt.Errorf("%w: connection reset", protocol.ErrTransient)
	unit := testutil.NewFakeUnit("rds", "database", testutil.WithFlakyResources(2, transient))

	outcome, err := exec.Run(context.Background(), "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSucceeded, outcome.Status)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, unit.PipelineCalls())
}

func TestExecutor_PermanentErrorFailsWithoutRetry(t *testing.T) {
	ctx := context.Background()
	store := file.NewStore(t.TempDir())
	exec, _ := newTestExecutor(t, store)

	unit := testutil.NewFakeUnit("iam", "security",
		testutil.WithPipelineError(errors.New("invalid credentials")))

	outcome, err := exec.Run(ctx, "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Equal(t, models.ErrorClassPermanent, outcome.ErrorClass)
	assert.Equal(t, 1, outcome.Attempts)

	completed, err := store.IsCompleted(ctx, "exec-1", "iam")
	require.NoError(t, err)
	assert.False(t, completed, "failed units must not be checkpointed")
}

func TestExecutor_ExhaustsRetriesOnThrottling(t *testing.T) {
	store := file.NewStore(t.TempDir())
	exec, _ := newTestExecutor(t, store)

	throttled := fmt.Errorf("%w: rate exceeded", protocol.ErrThrottled)
	unit := testutil.NewFakeUnit("lambda", "serverless", testutil.WithPipelineError(throttled))

	outcome, err := exec.Run(context.Background(), "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Equal(t, models.ErrorClassThrottled, outcome.ErrorClass)
	assert.Equal(t, 3, outcome.Attempts)
}

func TestExecutor_UnhealthyUnitIsTransient(t *testing.T) {
	store := file.NewStore(t.TempDir())
	exec, _ := newTestExecutor(t, store)

	unit := testutil.NewFakeUnit("dynamodb", "database")
	unit.Health = models.HealthStatus{Status: models.HealthUnhealthy, Error: "endpoint down"}

	outcome, err := exec.Run(context.Background(), "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Equal(t, models.ErrorClassTransient, outcome.ErrorClass)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 0, unit.PipelineCalls(), "resource step must not run when health fails")
}

func TestExecutor_OpenBreakerSkipsUnit(t *testing.T) {
	store := file.NewStore(t.TempDir())
	exec, arena := newTestExecutor(t, store)

	cb := arena.For("ec2")
	for i := 0; i < breaker.DefaultSettings().FailureThreshold; i++ {
		cb.RecordFailure()
	}

	unit := testutil.NewFakeUnit("ec2", "compute")

	outcome, err := exec.Run(context.Background(), "exec-1", unit)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	assert.Equal(t, models.ErrorClassBreakerOpen, outcome.ErrorClass)
	assert.Equal(t, 0, unit.PipelineCalls())
}

func TestExecutor_RepeatedFailuresTripTheBreaker(t *testing.T) {
	store := file.NewStore(t.TempDir())
	exec, arena := newTestExecutor(t, store)

	unit := testutil.NewFakeUnit("ec2", "compute",
		testutil.WithPipelineError(errors.New("bad request")))

	// Each run records one breaker failure. The default threshold is five.
	for i := 0; i < breaker.DefaultSettings().FailureThreshold; i++ {
		outcome, err := exec.Run(context.Background(), "exec-1", unit)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeFailed, outcome.Status)
	}

	assert.Equal(t, breaker.StateOpen, arena.For("ec2").State())

	outcome, err := exec.Run(context.Background(), "exec-1", unit)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
}

func TestExecutor_StoreReadFailureIsFatal(t *testing.T) {
	store := &flakyStore{
		Store:          file.NewStore(t.TempDir()),
		isCompletedErr: errors.New("disk gone"),
	}
	exec, _ := newTestExecutor(t, store)

	_, err := exec.Run(context.Background(), "exec-1", testutil.NewFakeUnit("ec2", "compute"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestExecutor_StoreWriteFailureIsFatal(t *testing.T) {
	store := &flakyStore{
		Store:         file.NewStore(t.TempDir()),
		saveResultErr: errors.New("disk full"),
	}
	exec, _ := newTestExecutor(t, store)

	_, err := exec.Run(context.Background(), "exec-1", testutil.NewFakeUnit("ec2", "compute"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
