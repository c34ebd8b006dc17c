// Package checkpoint error types shared by all store implementations.
package checkpoint

import (
	"errors"
	"fmt"
)

// Standard store error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates no execution exists for the given ID.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrCheckpointNotFound indicates no checkpoint exists for the given
	// (execution, unit) pair.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrReportNotFound indicates no final report exists for the execution.
	ErrReportNotFound = errors.New("report not found")
)

// StoreError wraps store failures with operation context. Store failures are
// fatal to a run: without the store the engine cannot guarantee resumability.
type StoreError struct {
	Op          string // Operation being performed (e.g. "SaveResult")
	ExecutionID string
	UnitName    string // Unit name if applicable
	Err         error
}

func (e *StoreError) Error() string {
	if e.UnitName != "" {
		return fmt.Sprintf("%s failed for unit %s in execution %s: %v", e.Op, e.UnitName, e.ExecutionID, e.Err)
	}

	return fmt.Sprintf("%s failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a store error with operation context.
func NewStoreError(op, executionID, unitName string, err error) *StoreError {
	return &StoreError{
		Op:          op,
		ExecutionID: executionID,
		UnitName:    unitName,
		Err:         err,
	}
}

// IsNotFound checks whether an error indicates any kind of missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrCheckpointNotFound) ||
		errors.Is(err, ErrReportNotFound)
}
