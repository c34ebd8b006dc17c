// Package orchestrator is the top-level controller of one analysis run. It
// partitions the catalog into batches, dispatches them to executors with
// bounded concurrency, and reduces the outcomes into the final report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/costray/costray/pkg/aggregate"
	"github.com/costray/costray/pkg/batch"
	"github.com/costray/costray/pkg/breaker"
	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/eventbus"
	"github.com/costray/costray/pkg/events"
	"github.com/costray/costray/pkg/executor"
	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/otelhelper"
	"github.com/costray/costray/pkg/protocol"
)

// ErrDeadlineReached is returned when the run stopped before covering every
// unit because the context deadline came within the configured margin. The
// execution stays resumable under the same execution ID.
var ErrDeadlineReached = errors.New("run deadline reached before all units were analyzed")

// ErrUnitNotFound is returned by Probe for a unit name absent from the
// catalog.
var ErrUnitNotFound = errors.New("unit not found in catalog")

// RunOptions selects between a fresh run and a resume. An empty ExecutionID
// creates a new execution.
type RunOptions struct {
	ExecutionID string
}

// Orchestrator drives executions over a fixed unit catalog.
type Orchestrator struct {
	config     Config
	store      checkpoint.Store
	eventBus   eventbus.EventBus
	tracer     trace.Tracer
	logger     *slog.Logger
	units      []protocol.Unit
	mapper     *batch.Mapper
	breakers   *breaker.Arena
	executor   *executor.Executor
	aggregator *aggregate.Aggregator
}

// New builds an orchestrator and its resilience stack from the config.
func New(
	config Config,
	store checkpoint.Store,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	units []protocol.Unit,
) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	arena := breaker.NewArena(config.Breaker)

	return &Orchestrator{
		config:     config,
		store:      store,
		eventBus:   eventBus,
		tracer:     tracer,
		logger:     logger.With("module", "orchestrator"),
		units:      units,
		mapper:     batch.NewMapper(config.PriorityCategories),
		breakers:   arena,
		executor:   executor.NewExecutor(store, arena, config.Retry, tracer, logger, config.UnitTimeout),
		aggregator: aggregate.NewAggregator(store, logger),
	}, nil
}

// Run performs one full analysis pass over the catalog. With an ExecutionID
// it resumes that execution, skipping checkpointed units; re-invoking a
// terminal execution returns its stored report without running anything.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*models.FinalReport, error) {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.run")
	defer span.End()

	state, resumed, err := o.prepareExecution(ctx, opts)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if state.IsTerminal() {
		o.logger.InfoContext(ctx, "Execution already terminal, returning stored report",
			"execution_id", state.ID, "status", string(state.Status))

		return o.store.LoadReport(ctx, state.ID)
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, state.ID))
	o.logger.InfoContext(ctx, "Starting execution",
		"execution_id", state.ID, "total_units", state.TotalUnits, "resumed", resumed)

	o.publish(ctx, state.ID, events.ExecutionStarted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionStartedEvent, state.ID),
		TotalUnits: state.TotalUnits,
		Resumed:    resumed,
	})

	batches := o.mapper.Partition(o.units, o.config.BatchSize)

	results, err := o.dispatch(ctx, state, batches)

	o.reportOpenBreakers(ctx, state.ID)

	if err != nil {
		if errors.Is(err, ErrDeadlineReached) {
			o.logger.WarnContext(ctx, "Deadline margin reached, leaving execution resumable",
				"execution_id", state.ID, "completed", state.CompletedCount)

			return nil, err
		}

		otelhelper.SetError(span, err)
		o.publish(ctx, state.ID, events.ExecutionAborted{
			BaseEvent: events.NewBaseEvent(events.ExecutionAbortedEvent, state.ID),
			Error:     err.Error(),
		})

		return nil, err
	}

	report, err := o.aggregator.Aggregate(ctx, state, results)
	if err != nil {
		otelhelper.SetError(span, err)
		o.publish(ctx, state.ID, events.ExecutionAborted{
			BaseEvent: events.NewBaseEvent(events.ExecutionAbortedEvent, state.ID),
			Error:     err.Error(),
		})

		return nil, err
	}

	o.publish(ctx, state.ID, events.ExecutionFinished{
		BaseEvent:             events.NewBaseEvent(events.ExecutionFinishedEvent, state.ID),
		Status:                report.Status,
		Completed:             report.ServicesCompleted,
		Failed:                report.ServicesFailed,
		Skipped:               report.ServicesSkipped,
		TotalPotentialSavings: report.TotalPotentialSavings,
		Duration:              time.Since(started),
	})

	o.logger.InfoContext(ctx, "Execution finished",
		"execution_id", state.ID,
		"status", string(report.Status),
		"duration", time.Since(started))

	return report, nil
}

// Probe runs a single unit's health check outside any execution. It uses the
// configured unit timeout but no retries, breaker or persistence.
func (o *Orchestrator) Probe(ctx context.Context, unitName string) (models.HealthStatus, error) {
	for _, unit := range o.units {
		if unit.Name() != unitName {
			continue
		}

		ctx, cancel := context.WithTimeout(ctx, o.config.UnitTimeout)
		defer cancel()

		return unit.HealthCheck(ctx)
	}

	return models.HealthStatus{}, fmt.Errorf("%w: %s", ErrUnitNotFound, unitName)
}

func (o *Orchestrator) prepareExecution(ctx context.Context, opts RunOptions) (*models.ExecutionState, bool, error) {
	if opts.ExecutionID == "" {
		state, err := o.store.CreateExecution(ctx, len(o.units))
		if err != nil {
			return nil, false, fmt.Errorf("creating execution: %w", err)
		}

		return state, false, nil
	}

	state, err := o.store.LoadExecution(ctx, opts.ExecutionID)
	if err != nil {
		return nil, false, fmt.Errorf("loading execution %s: %w", opts.ExecutionID, err)
	}

	return state, true, nil
}

// dispatch fans batches out to at most MaxConcurrentBatches workers. Units
// within one batch run sequentially; batches run in parallel. The first
// checkpoint store failure cancels all workers and aborts the run.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	state *models.ExecutionState,
	batches []batch.Batch,
) ([]models.BatchResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		results     []models.BatchResult
		fatal       error
		deadlineHit bool
	)

	batchCh := make(chan batch.Batch)

	workers := min(o.config.MaxConcurrentBatches, len(batches))
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for b := range batchCh {
				result, stopped, err := o.runBatch(runCtx, state, b, &mu)

				mu.Lock()
				results = append(results, result)

				if err != nil && fatal == nil {
					fatal = err

					cancel()
				}

				if stopped {
					deadlineHit = true
				}
				mu.Unlock()
			}
		}()
	}

	for _, b := range batches {
		batchCh <- b
	}

	close(batchCh)
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}

	if deadlineHit {
		return nil, ErrDeadlineReached
	}

	return results, nil
}

// runBatch processes one batch's units in order. It returns the partial batch
// result, whether it stopped early because the deadline margin was reached,
// and a fatal store error if one occurred.
func (o *Orchestrator) runBatch(
	ctx context.Context,
	state *models.ExecutionState,
	b batch.Batch,
	stateMu *sync.Mutex,
) (models.BatchResult, bool, error) {
	result := models.BatchResult{BatchID: b.ID}

	for _, unit := range b.Units {
		if ctx.Err() != nil {
			return result, false, nil
		}

		if o.deadlineApproaching(ctx) {
			result.Tally()

			return result, true, nil
		}

		outcome, err := o.executor.Run(ctx, state.ID, unit)
		if err != nil {
			return result, false, err
		}

		result.Outcomes = append(result.Outcomes, outcome)

		if err := o.recordOutcome(ctx, state, stateMu, outcome); err != nil {
			return result, false, err
		}

		o.publishOutcome(ctx, state.ID, b.ID, outcome)
	}

	result.Tally()

	return result, false, nil
}

// recordOutcome marks the unit in the shared execution state and persists it,
// keeping the execution resumable after every terminal unit outcome.
func (o *Orchestrator) recordOutcome(
	ctx context.Context,
	state *models.ExecutionState,
	stateMu *sync.Mutex,
	outcome models.UnitOutcome,
) error {
	stateMu.Lock()
	defer stateMu.Unlock()

	switch outcome.Status {
	case models.OutcomeSucceeded:
		state.MarkCompleted(outcome.UnitName)
	case models.OutcomeFailed:
		state.MarkFailed(outcome.UnitName)
	case models.OutcomeSkipped:
		state.MarkSkipped(outcome.UnitName)
	}

	if err := o.store.UpdateExecution(ctx, state); err != nil {
		return fmt.Errorf("persisting execution state after unit %s: %w", outcome.UnitName, err)
	}

	return nil
}

func (o *Orchestrator) deadlineApproaching(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}

	return time.Until(deadline) < o.config.DeadlineMargin
}

// reportOpenBreakers logs every breaker that ended the run away from closed.
// The named units are the ones whose skips a later resume may clear once the
// recovery timeout elapses.
func (o *Orchestrator) reportOpenBreakers(ctx context.Context, executionID string) {
	for _, snapshot := range o.breakers.Snapshots() {
		if snapshot.State == breaker.StateClosed {
			continue
		}

		o.logger.WarnContext(ctx, "Circuit breaker not closed after dispatch",
			"execution_id", executionID,
			"unit_name", snapshot.UnitName,
			"state", string(snapshot.State),
			"failures", snapshot.Failures)
	}
}

func (o *Orchestrator) publishOutcome(ctx context.Context, executionID string, batchID int, outcome models.UnitOutcome) {
	switch outcome.Status {
	case models.OutcomeSucceeded:
		o.publish(ctx, executionID, events.UnitCompleted{
			BaseEvent:       events.NewBaseEvent(events.UnitCompletedEvent, executionID),
			UnitName:        outcome.UnitName,
			BatchID:         batchID,
			Recommendations: len(outcome.Recommendations),
			Duration:        outcome.Duration,
			FromCheckpoint:  outcome.FromCheckpoint,
		})
	case models.OutcomeFailed:
		o.publish(ctx, executionID, events.UnitFailed{
			BaseEvent:  events.NewBaseEvent(events.UnitFailedEvent, executionID),
			UnitName:   outcome.UnitName,
			BatchID:    batchID,
			ErrorClass: outcome.ErrorClass,
			Error:      outcome.Error,
			Attempts:   outcome.Attempts,
		})
	case models.OutcomeSkipped:
		o.publish(ctx, executionID, events.UnitSkipped{
			BaseEvent: events.NewBaseEvent(events.UnitSkippedEvent, executionID),
			UnitName:  outcome.UnitName,
			BatchID:   batchID,
			Reason:    outcome.Error,
		})
	}
}

// publish delivers a lifecycle event on a best-effort basis. A broker outage
// must never affect the run itself.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := o.eventBus.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", string(event.GetType()), "error", err)
	}
}
