// Package aggregate reduces per-batch outcomes into the final ranked report
// and seals the execution state.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/costray/costray/pkg/checkpoint"
	"github.com/costray/costray/pkg/models"
)

// Aggregator merges batch results, ranks recommendations and persists the
// final report. One aggregator call consumes each batch result exactly once,
// after all batches have finished.
type Aggregator struct {
	store  checkpoint.Store
	logger *slog.Logger
}

func NewAggregator(store checkpoint.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger,
	}
}

// Aggregate folds all batch results into a final report, seals the execution
// state and persists both. The report's recommendation list is sorted by
// estimated monthly savings descending, ties broken by unit name, so repeated
// runs over identical input produce identical output.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	state *models.ExecutionState,
	batchResults []models.BatchResult,
) (*models.FinalReport, error) {
	report := &models.FinalReport{
		ExecutionID:     state.ID,
		Timestamp:       time.Now().UTC(),
		ServicesTotal:   state.TotalUnits,
		Recommendations: make([]models.Recommendation, 0),
		FailedUnits:     make([]models.FailedUnit, 0),
		SkippedUnits:    make([]models.FailedUnit, 0),
	}

	seen := make(map[recommendationKey]bool)
	failedSeen := make(map[string]bool)
	skippedSeen := make(map[string]bool)

	for _, batch := range batchResults {
		for _, outcome := range batch.Outcomes {
			switch outcome.Status {
			case models.OutcomeSucceeded:
				state.MarkCompleted(outcome.UnitName)

				for _, rec := range outcome.Recommendations {
					key := recommendationKey{rec.UnitName, rec.Category, rec.Description}
					if seen[key] {
						continue
					}

					seen[key] = true

					report.Recommendations = append(report.Recommendations, rec)
					report.TotalPotentialSavings += rec.EstimatedMonthlySavings
				}
			case models.OutcomeFailed:
				state.MarkFailed(outcome.UnitName)

				if failedSeen[outcome.UnitName] {
					continue
				}

				failedSeen[outcome.UnitName] = true

				report.FailedUnits = append(report.FailedUnits, models.FailedUnit{
					UnitName:   outcome.UnitName,
					ErrorClass: outcome.ErrorClass,
					Error:      outcome.Error,
				})
			case models.OutcomeSkipped:
				state.MarkSkipped(outcome.UnitName)

				if skippedSeen[outcome.UnitName] {
					continue
				}

				skippedSeen[outcome.UnitName] = true

				report.SkippedUnits = append(report.SkippedUnits, models.FailedUnit{
					UnitName:   outcome.UnitName,
					ErrorClass: outcome.ErrorClass,
					Error:      outcome.Error,
				})
			}
		}
	}

	// The state keeps each unit in exactly one bucket, so a unit whose later
	// outcome moved it (a failed mark superseded by a skip, or either cleared
	// by success on resume) must also leave the report's list for the old
	// bucket.
	report.FailedUnits = retainListed(report.FailedUnits, state.FailedUnits)
	report.SkippedUnits = retainListed(report.SkippedUnits, state.SkippedUnits)

	sort.SliceStable(report.Recommendations, func(i, j int) bool {
		ri, rj := report.Recommendations[i], report.Recommendations[j]
		if ri.EstimatedMonthlySavings != rj.EstimatedMonthlySavings {
			return ri.EstimatedMonthlySavings > rj.EstimatedMonthlySavings
		}

		return ri.UnitName < rj.UnitName
	})

	sort.SliceStable(report.FailedUnits, func(i, j int) bool {
		return report.FailedUnits[i].UnitName < report.FailedUnits[j].UnitName
	})
	sort.SliceStable(report.SkippedUnits, func(i, j int) bool {
		return report.SkippedUnits[i].UnitName < report.SkippedUnits[j].UnitName
	})

	state.Seal()

	report.Status = state.Status
	report.ServicesCompleted = state.CompletedCount
	report.ServicesFailed = state.FailedCount
	report.ServicesSkipped = state.SkippedCount
	report.SuccessRate = state.SuccessRate()

	if err := a.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("saving final report: %w", err)
	}

	if err := a.store.UpdateExecution(ctx, state); err != nil {
		return nil, fmt.Errorf("sealing execution state: %w", err)
	}

	a.logger.InfoContext(ctx, "Execution aggregated",
		"execution_id", state.ID,
		"status", string(state.Status),
		"completed", state.CompletedCount,
		"failed", state.FailedCount,
		"skipped", state.SkippedCount,
		"total_potential_savings", report.TotalPotentialSavings)

	return report, nil
}

func retainListed(entries []models.FailedUnit, unitNames []string) []models.FailedUnit {
	kept := entries[:0]
	for _, entry := range entries {
		if slices.Contains(unitNames, entry.UnitName) {
			kept = append(kept, entry)
		}
	}

	return kept
}

type recommendationKey struct {
	unitName    string
	category    string
	description string
}
