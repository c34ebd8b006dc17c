// Package executor runs a single unit's analysis pipeline under the full
// resilience stack: checkpoint skip-check, circuit breaker gate, retry with
// backoff, and durable result persistence. Failures become outcome data;
// only checkpoint store errors abort the run.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/costray/costray/pkg/breaker"
	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/otelhelper"
	"github.com/costray/costray/pkg/protocol"
	"github.com/costray/costray/pkg/retry"
)

// pipelineResult is what one full pass over a unit's five steps yields.
type pipelineResult struct {
	result          map[string]any
	recommendations []models.Recommendation
}

// Executor drives units through the analysis pipeline. One executor is shared
// by all batch workers; per-unit state lives in the breaker arena and the
// checkpoint store, both safe for concurrent use.
type Executor struct {
	store       checkpoint.Store
	breakers    *breaker.Arena
	policy      retry.Policy
	tracer      trace.Tracer
	logger      *slog.Logger
	unitTimeout time.Duration
}

func NewExecutor(
	store checkpoint.Store,
	breakers *breaker.Arena,
	policy retry.Policy,
	tracer trace.Tracer,
	logger *slog.Logger,
	unitTimeout time.Duration,
) *Executor {
	return &Executor{
		store:       store,
		breakers:    breakers,
		policy:      policy,
		tracer:      tracer,
		logger:      logger,
		unitTimeout: unitTimeout,
	}
}

// Run executes one unit within an execution. The returned outcome always
// describes what happened to the unit; the error is non-nil only when the
// checkpoint store itself failed, which the caller must treat as fatal for
// the whole run.
func (e *Executor) Run(ctx context.Context, executionID string, unit protocol.Unit) (models.UnitOutcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.run",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.UnitNameKey, unit.Name()),
		attribute.String(otelhelper.CategoryKey, unit.Category()),
	)
	defer span.End()

	logger := e.logger.With("unit_name", unit.Name(), "execution_id", executionID)

	outcome := models.UnitOutcome{
		UnitName: unit.Name(),
		Category: unit.Category(),
	}

	restored, found, err := e.restoreCheckpoint(ctx, executionID, unit.Name())
	if err != nil {
		otelhelper.SetError(span, err)

		return outcome, err
	}

	if found {
		logger.InfoContext(ctx, "Unit already completed in a previous attempt, restoring checkpoint")

		outcome.Status = models.OutcomeSucceeded
		outcome.Result = restored.Result
		outcome.Recommendations = restored.Recommendations
		outcome.FromCheckpoint = true

		return outcome, nil
	}

	cb := e.breakers.For(unit.Name())
	if err := cb.Allow(); err != nil {
		logger.WarnContext(ctx, "Circuit breaker rejected call, skipping unit")

		outcome.Status = models.OutcomeSkipped
		outcome.ErrorClass = models.ErrorClassBreakerOpen
		outcome.Error = err.Error()

		return outcome, nil
	}

	started := time.Now()
	handler := retry.NewHandler(e.policy, logger)

	var pipeline pipelineResult

	runErr := handler.Execute(ctx, func(ctx context.Context) error {
		result, err := e.runPipeline(ctx, unit)
		if err != nil {
			return err
		}

		pipeline = result

		return nil
	})

	outcome.Attempts = handler.Metrics().TotalAttempts
	outcome.Duration = time.Since(started)

	if runErr != nil {
		cb.RecordFailure()

		class := retry.Classify(runErr)
		logger.ErrorContext(ctx, "Unit analysis failed",
			"error", runErr, "class", string(class), "attempts", outcome.Attempts)
		otelhelper.SetError(span, runErr,
			attribute.String(otelhelper.ErrorClassKey, string(class)))

		outcome.Status = models.OutcomeFailed
		outcome.ErrorClass = class
		outcome.Error = runErr.Error()

		return outcome, nil
	}

	cb.RecordSuccess()

	cp := &models.Checkpoint{
		ExecutionID:     executionID,
		UnitName:        unit.Name(),
		Result:          pipeline.result,
		Recommendations: pipeline.recommendations,
		SavedAt:         time.Now().UTC(),
	}

	if err := e.store.SaveResult(ctx, cp); err != nil {
		otelhelper.SetError(span, err)

		return outcome, fmt.Errorf("saving checkpoint for unit %s: %w", unit.Name(), err)
	}

	logger.InfoContext(ctx, "Unit analysis completed",
		"attempts", outcome.Attempts, "recommendations", len(pipeline.recommendations))

	outcome.Status = models.OutcomeSucceeded
	outcome.Result = pipeline.result
	outcome.Recommendations = pipeline.recommendations

	return outcome, nil
}

// restoreCheckpoint reports whether the unit finished in an earlier attempt
// of this execution, returning the saved checkpoint when it did. A completion
// marker without a readable checkpoint is treated as not completed, so the
// unit simply runs again.
func (e *Executor) restoreCheckpoint(ctx context.Context, executionID, unitName string) (*models.Checkpoint, bool, error) {
	completed, err := e.store.IsCompleted(ctx, executionID, unitName)
	if err != nil {
		return nil, false, fmt.Errorf("checking completion for unit %s: %w", unitName, err)
	}

	if !completed {
		return nil, false, nil
	}

	cp, err := e.store.LoadResult(ctx, executionID, unitName)
	if err != nil {
		if checkpoint.IsNotFound(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("loading checkpoint for unit %s: %w", unitName, err)
	}

	return cp, true, nil
}

// runPipeline invokes the unit's five steps in order under the per-unit
// timeout. Any step error aborts the pass; the retry handler decides whether
// a fresh pass runs from the top.
func (e *Executor) runPipeline(ctx context.Context, unit protocol.Unit) (pipelineResult, error) {
	if e.unitTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.unitTimeout)
		defer cancel()
	}

	health, err := unit.HealthCheck(ctx)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("health check: %w", err)
	}

	if health.Status == models.HealthUnhealthy {
		return pipelineResult{}, fmt.Errorf("health check: %w: %s", protocol.ErrTransient, health.Error)
	}

	resources, err := unit.Resources(ctx)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("listing resources: %w", err)
	}

	usage, err := unit.AnalyzeUsage(ctx)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("analyzing usage: %w", err)
	}

	metrics, err := unit.CollectMetrics(ctx)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("collecting metrics: %w", err)
	}

	recommendations, err := unit.Recommendations(ctx)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("generating recommendations: %w", err)
	}

	result := map[string]any{
		"health":    health,
		"resources": resources,
		"usage":     usage,
		"metrics":   metrics,
	}

	return pipelineResult{result: result, recommendations: recommendations}, nil
}
