package models

import "time"

// FailedUnit describes one unit the run could not analyze, with enough
// context for an operator to act on it.
type FailedUnit struct {
	UnitName   string     `json:"unit_name"`
	ErrorClass ErrorClass `json:"error_class"`
	Error      string     `json:"error,omitempty"`
}

// FinalReport is the merged, ranked output of one execution. It is the
// hand-off point to downstream reporting and is persisted next to the
// execution state it summarizes.
type FinalReport struct {
	ExecutionID           string           `json:"execution_id"`
	Timestamp             time.Time        `json:"timestamp"`
	Status                ExecutionStatus  `json:"status"`
	ServicesTotal         int              `json:"services_total"`
	ServicesCompleted     int              `json:"services_completed"`
	ServicesFailed        int              `json:"services_failed"`
	ServicesSkipped       int              `json:"services_skipped"`
	SuccessRate           float64          `json:"success_rate"`
	Recommendations       []Recommendation `json:"recommendations"`
	TotalPotentialSavings float64          `json:"total_potential_savings"`
	FailedUnits           []FailedUnit     `json:"failed_units"`
	SkippedUnits          []FailedUnit     `json:"skipped_units"`
}
