// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/costray/costray/pkg/models"
)

type EventType string

// Kafka topic for execution lifecycle events.
const Topic = "costray.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent  EventType = "execution.started"
	ExecutionFinishedEvent EventType = "execution.finished"
	ExecutionAbortedEvent  EventType = "execution.aborted"

	UnitCompletedEvent EventType = "unit.completed"
	UnitFailedEvent    EventType = "unit.failed"
	UnitSkippedEvent   EventType = "unit.skipped"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the common event envelope.
func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	TotalUnits int  `json:"total_units"`
	Resumed    bool `json:"resumed"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionFinished struct {
	BaseEvent

	Status                models.ExecutionStatus `json:"status"`
	Completed             int                    `json:"completed"`
	Failed                int                    `json:"failed"`
	Skipped               int                    `json:"skipped"`
	TotalPotentialSavings float64                `json:"total_potential_savings"`
	Duration              time.Duration          `json:"duration"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

// ExecutionAborted signals a run-fatal failure, in practice a checkpoint
// store outage that made resumability impossible to guarantee.
type ExecutionAborted struct {
	BaseEvent

	Error string `json:"error"`
}

func (e ExecutionAborted) GetType() EventType {
	return ExecutionAbortedEvent
}

type UnitCompleted struct {
	BaseEvent

	UnitName        string        `json:"unit_name"`
	BatchID         int           `json:"batch_id"`
	Recommendations int           `json:"recommendations"`
	Duration        time.Duration `json:"duration"`
	FromCheckpoint  bool          `json:"from_checkpoint"`
}

func (e UnitCompleted) GetType() EventType {
	return UnitCompletedEvent
}

type UnitFailed struct {
	BaseEvent

	UnitName   string            `json:"unit_name"`
	BatchID    int               `json:"batch_id"`
	ErrorClass models.ErrorClass `json:"error_class"`
	Error      string            `json:"error"`
	Attempts   int               `json:"attempts"`
}

func (e UnitFailed) GetType() EventType {
	return UnitFailedEvent
}

type UnitSkipped struct {
	BaseEvent

	UnitName string `json:"unit_name"`
	BatchID  int    `json:"batch_id"`
	Reason   string `json:"reason"`
}

func (e UnitSkipped) GetType() EventType {
	return UnitSkippedEvent
}
