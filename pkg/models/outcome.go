package models

import "time"

// ErrorClass classifies why a unit's analysis did not produce a result.
// It is what operators see in the final report, so they can tell a
// rate-limited provider apart from an unsupported resource type.
type ErrorClass string

const (
	// ErrorClassTransient covers network timeouts and connection resets.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled covers explicit rate-limit signals from the
	// provider. Retried with backoff like transient errors, but reported
	// separately.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassBreakerOpen marks a unit whose call was rejected because
	// its circuit breaker was open. The pipeline never ran.
	ErrorClassBreakerOpen ErrorClass = "breaker_open"

	// ErrorClassPermanent covers malformed input, configuration errors and
	// unsupported operations. Never retried.
	ErrorClassPermanent ErrorClass = "permanent"
)

// OutcomeStatus is the terminal status of one unit within one execution.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// UnitOutcome is the per-unit result produced by the resilient executor.
// Failures are data here, not control flow: a failed outcome never aborts
// sibling units in the same batch.
type UnitOutcome struct {
	UnitName        string           `json:"unit_name"`
	Category        string           `json:"category,omitempty"`
	Status          OutcomeStatus    `json:"status"`
	Result          map[string]any   `json:"result,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	ErrorClass      ErrorClass       `json:"error_class,omitempty"`
	Error           string           `json:"error,omitempty"`
	Attempts        int              `json:"attempts"`
	Duration        time.Duration    `json:"duration"`
	FromCheckpoint  bool             `json:"from_checkpoint,omitempty"`
}

// BatchResult collects the outcomes of one batch. Produced once per batch
// and consumed exactly once by the aggregator.
type BatchResult struct {
	BatchID   int           `json:"batch_id"`
	Outcomes  []UnitOutcome `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}

// Tally recomputes the per-status counters from the outcome list.
func (b *BatchResult) Tally() {
	b.Succeeded, b.Failed, b.Skipped = 0, 0, 0

	for _, outcome := range b.Outcomes {
		switch outcome.Status {
		case OutcomeSucceeded:
			b.Succeeded++
		case OutcomeFailed:
			b.Failed++
		case OutcomeSkipped:
			b.Skipped++
		}
	}
}
