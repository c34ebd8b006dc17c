package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionState_MarkCompletedIsIdempotent(t *testing.T) {
	state := NewExecutionState(2)

	state.MarkCompleted("ec2")
	state.MarkCompleted("ec2")

	assert.Equal(t, []string{"ec2"}, state.CompletedUnits)
	assert.Equal(t, 1, state.CompletedCount)
}

func TestExecutionState_MarkCompletedClearsStaleBuckets(t *testing.T) {
	state := NewExecutionState(2)

	state.MarkFailed("ec2")
	state.MarkSkipped("rds")

	state.MarkCompleted("ec2")
	state.MarkCompleted("rds")

	assert.Empty(t, state.FailedUnits)
	assert.Empty(t, state.SkippedUnits)
	assert.Equal(t, 0, state.FailedCount)
	assert.Equal(t, 0, state.SkippedCount)
	assert.ElementsMatch(t, []string{"ec2", "rds"}, state.CompletedUnits)
	assert.Equal(t, 2, state.CompletedCount)
}

func TestExecutionState_LatestOutcomeWinsBetweenFailedAndSkipped(t *testing.T) {
	state := NewExecutionState(1)

	state.MarkFailed("ec2")
	state.MarkSkipped("ec2")

	assert.Empty(t, state.FailedUnits)
	assert.Equal(t, []string{"ec2"}, state.SkippedUnits)

	state.MarkFailed("ec2")

	assert.Empty(t, state.SkippedUnits)
	assert.Equal(t, []string{"ec2"}, state.FailedUnits)
	assert.Equal(t, 1, state.FailedCount)
	assert.Equal(t, 0, state.SkippedCount)
}

func TestExecutionState_CompletedUnitIsNeverDemoted(t *testing.T) {
	state := NewExecutionState(1)

	state.MarkCompleted("ec2")
	state.MarkFailed("ec2")
	state.MarkSkipped("ec2")

	assert.Equal(t, []string{"ec2"}, state.CompletedUnits)
	assert.Empty(t, state.FailedUnits)
	assert.Empty(t, state.SkippedUnits)
}

func TestExecutionState_Seal(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*ExecutionState)
		expected ExecutionStatus
	}{
		{
			name: "all completed",
			mutate: func(s *ExecutionState) {
				s.MarkCompleted("ec2")
			},
			expected: ExecutionCompleted,
		},
		{
			name: "mixed outcomes",
			mutate: func(s *ExecutionState) {
				s.MarkCompleted("ec2")
				s.MarkFailed("rds")
			},
			expected: ExecutionPartial,
		},
		{
			name: "nothing succeeded",
			mutate: func(s *ExecutionState) {
				s.MarkFailed("ec2")
			},
			expected: ExecutionFailed,
		},
		{
			name: "stale failure cleared on resume",
			mutate: func(s *ExecutionState) {
				s.MarkFailed("ec2")
				s.MarkCompleted("ec2")
			},
			expected: ExecutionCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewExecutionState(2)
			tt.mutate(state)
			state.Seal()

			assert.Equal(t, tt.expected, state.Status)
			assert.True(t, state.IsTerminal())
		})
	}
}
