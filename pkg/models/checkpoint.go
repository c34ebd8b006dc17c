package models

import "time"

// Checkpoint is the durably persisted result of one unit within one
// execution. Writing the same (execution, unit) pair twice is idempotent:
// last write wins and existence stays checkable without reading the payload.
type Checkpoint struct {
	UnitName        string           `json:"unit_name"    validate:"required"`
	ExecutionID     string           `json:"execution_id" validate:"required"`
	Result          map[string]any   `json:"result"`
	Recommendations []Recommendation `json:"recommendations"`
	SavedAt         time.Time        `json:"saved_at"`
}
