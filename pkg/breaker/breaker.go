// Package breaker implements the per-unit circuit breaker state machine that
// protects the engine against repeated calls to a consistently failing
// provider dependency.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow when the breaker rejects a call without
// attempting the underlying pipeline.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker position in its state machine.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Settings configures a breaker. Immutable once the breaker is constructed.
type Settings struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that trips the breaker open.
	FailureThreshold int `validate:"required,min=1"`

	// RecoveryTimeout is how long the breaker stays open before the next
	// Allow call moves it to half-open.
	RecoveryTimeout time.Duration `validate:"required,min=1ms"`

	// HalfOpenMaxCalls caps the number of trial calls admitted while
	// half-open.
	HalfOpenMaxCalls int `validate:"required,min=1"`

	// SuccessThreshold is the number of consecutive trial successes that
	// closes the breaker again.
	SuccessThreshold int `validate:"required,min=1"`
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
		SuccessThreshold: 2,
	}
}

// Snapshot is a point-in-time copy of a breaker's state, safe to hand across
// worker boundaries.
type Snapshot struct {
	UnitName       string    `json:"unit_name"`
	State          State     `json:"state"`
	Failures       int       `json:"failures"`
	TrialCalls     int       `json:"trial_calls"`
	TrialSuccesses int       `json:"trial_successes"`
	LastFailureAt  time.Time `json:"last_failure_at,omitzero"`
}

// CircuitBreaker guards calls for a single unit name. One instance is shared
// by every worker analyzing that unit, so all transitions happen under the
// same lock, including the open-to-half-open edge checked inside Allow.
type CircuitBreaker struct {
	mu       sync.Mutex
	unitName string
	settings Settings

	state          State
	failures       int
	trialCalls     int
	trialSuccesses int
	lastFailureAt  time.Time

	now func() time.Time
}

// New creates a closed breaker for the given unit name.
func New(unitName string, settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		unitName: unitName,
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Allow decides whether a call may proceed. It returns ErrOpen when the
// breaker is open and the recovery timeout has not yet elapsed, or when the
// half-open trial budget is exhausted.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailureAt) < cb.settings.RecoveryTimeout {
			return ErrOpen
		}

		cb.state = StateHalfOpen
		cb.trialCalls = 1
		cb.trialSuccesses = 0

		return nil
	case StateHalfOpen:
		if cb.trialCalls >= cb.settings.HalfOpenMaxCalls {
			return ErrOpen
		}

		cb.trialCalls++

		return nil
	}

	return nil
}

// RecordSuccess reports that a call allowed by this breaker succeeded.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.trialSuccesses++
		if cb.trialSuccesses >= cb.settings.SuccessThreshold {
			cb.reset()
		}
	case StateOpen:
		// A success can only arrive here from a call admitted before the
		// breaker tripped. The open state stands until recovery.
	}
}

// RecordFailure reports that a call allowed by this breaker failed. In the
// half-open state a single failure trips the breaker straight back to open
// with no partial credit for earlier trial successes.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.settings.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	case StateOpen:
		cb.lastFailureAt = cb.now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Snapshot returns a copy of the breaker's current counters.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		UnitName:       cb.unitName,
		State:          cb.state,
		Failures:       cb.failures,
		TrialCalls:     cb.trialCalls,
		TrialSuccesses: cb.trialSuccesses,
		LastFailureAt:  cb.lastFailureAt,
	}
}

// trip moves the breaker to open. Callers must hold the lock.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.lastFailureAt = cb.now()
	cb.trialCalls = 0
	cb.trialSuccesses = 0
}

// reset moves the breaker back to closed. Callers must hold the lock.
func (cb *CircuitBreaker) reset() {
	cb.state = StateClosed
	cb.failures = 0
	cb.trialCalls = 0
	cb.trialSuccesses = 0
}
