// Package models defines the core data structures shared across the analysis engine.
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the lifecycle state of one full analysis run.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionPartial   ExecutionStatus = "partial"
	ExecutionFailed    ExecutionStatus = "failed"
)

// ExecutionState tracks the progress of one end-to-end run across the unit
// catalog. It is owned by the orchestrator during a run and persisted to the
// checkpoint store after every unit reaches a terminal outcome, so a later
// invocation with the same execution ID can resume where this one stopped.
type ExecutionState struct {
	ID               string          `json:"id"               validate:"required"`
	StartedAt        time.Time       `json:"started_at"       validate:"required"`
	Status           ExecutionStatus `json:"status"           validate:"required,oneof=running completed partial failed"`
	TotalUnits       int             `json:"total_units"      validate:"min=0"`
	CompletedCount   int             `json:"completed_count"`
	FailedCount      int             `json:"failed_count"`
	SkippedCount     int             `json:"skipped_count"`
	CompletedUnits   []string        `json:"completed_units"`
	FailedUnits      []string        `json:"failed_units"`
	SkippedUnits     []string        `json:"skipped_units"`
	LastCheckpointAt time.Time       `json:"last_checkpoint_at"`
}

// NewExecutionState creates a fresh running execution with a generated ID.
func NewExecutionState(totalUnits int) *ExecutionState {
	now := time.Now().UTC()

	return &ExecutionState{
		ID:               "exec-" + uuid.New().String()[:8],
		StartedAt:        now,
		Status:           ExecutionRunning,
		TotalUnits:       totalUnits,
		CompletedUnits:   make([]string, 0),
		FailedUnits:      make([]string, 0),
		SkippedUnits:     make([]string, 0),
		LastCheckpointAt: now,
	}
}

// MarkCompleted records a unit as successfully analyzed. Calling it twice for
// the same unit is a no-op, which keeps resumed runs from double counting
// units restored from checkpoints. A unit carried over as failed or skipped
// from an interrupted invocation moves out of that bucket when it succeeds
// on resume.
func (s *ExecutionState) MarkCompleted(unitName string) {
	if slices.Contains(s.CompletedUnits, unitName) {
		return
	}

	s.FailedUnits = removeUnit(s.FailedUnits, unitName)
	s.SkippedUnits = removeUnit(s.SkippedUnits, unitName)
	s.CompletedUnits = append(s.CompletedUnits, unitName)
	s.recount()
}

// MarkFailed records a unit as failed after its executor cycle exhausted all
// recovery options. Idempotent per unit name. A completed unit is backed by
// a durable checkpoint and never reruns, so a completed mark always wins; a
// stale skipped mark from an earlier invocation is superseded.
func (s *ExecutionState) MarkFailed(unitName string) {
	if slices.Contains(s.CompletedUnits, unitName) || slices.Contains(s.FailedUnits, unitName) {
		return
	}

	s.SkippedUnits = removeUnit(s.SkippedUnits, unitName)
	s.FailedUnits = append(s.FailedUnits, unitName)
	s.recount()
}

// MarkSkipped records a unit that was rejected by an open circuit breaker.
// Skips are tracked in their own bucket: the pipeline itself never ran, so
// counting them as failures would misstate what happened. Like MarkFailed it
// never demotes a completed unit, and it supersedes a stale failed mark.
func (s *ExecutionState) MarkSkipped(unitName string) {
	if slices.Contains(s.CompletedUnits, unitName) || slices.Contains(s.SkippedUnits, unitName) {
		return
	}

	s.FailedUnits = removeUnit(s.FailedUnits, unitName)
	s.SkippedUnits = append(s.SkippedUnits, unitName)
	s.recount()
}

// recount keeps every unit in exactly one bucket and the counts derived from
// the lists, never tracked independently.
func (s *ExecutionState) recount() {
	s.CompletedCount = len(s.CompletedUnits)
	s.FailedCount = len(s.FailedUnits)
	s.SkippedCount = len(s.SkippedUnits)
	s.LastCheckpointAt = time.Now().UTC()
}

func removeUnit(units []string, unitName string) []string {
	i := slices.Index(units, unitName)
	if i < 0 {
		return units
	}

	return slices.Delete(units, i, i+1)
}

// Seal freezes the execution status based on the recorded outcomes. Once
// sealed the status never returns to running.
func (s *ExecutionState) Seal() {
	switch {
	case s.FailedCount == 0 && s.SkippedCount == 0:
		s.Status = ExecutionCompleted
	case s.CompletedCount > 0:
		s.Status = ExecutionPartial
	default:
		s.Status = ExecutionFailed
	}

	s.LastCheckpointAt = time.Now().UTC()
}

// IsTerminal reports whether the execution has left the running state.
func (s *ExecutionState) IsTerminal() bool {
	return s.Status != ExecutionRunning
}

// SuccessRate returns the fraction of units that completed successfully.
func (s *ExecutionState) SuccessRate() float64 {
	if s.TotalUnits == 0 {
		return 0
	}

	return float64(s.CompletedCount) / float64(s.TotalUnits)
}
