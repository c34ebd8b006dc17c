// Package retry wraps single operations with bounded, backing-off retries,
// classifying which failures are worth another attempt.
package retry

import (
	"errors"
	"math"
	"net"
	"slices"
	"time"

	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/protocol"
)

// Policy is the immutable retry configuration. Delay growth and jitter exist
// to avoid synchronized retry storms when many units hit a shared throttle
// at the same time.
type Policy struct {
	MaxAttempts       int           `validate:"required,min=1"`
	BaseDelay         time.Duration `validate:"required,min=1ms"`
	MaxDelay          time.Duration `validate:"required,min=1ms,gtefield=BaseDelay"`
	BackoffMultiplier float64       `validate:"required,gte=1"`
	Jitter            bool
	RetryableClasses  []models.ErrorClass `validate:"required,min=1"`
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            true,
		RetryableClasses: []models.ErrorClass{
			models.ErrorClassTransient,
			models.ErrorClassThrottled,
		},
	}
}

// DelayFor computes the pre-jitter delay before retrying after attempt
// index i (0-indexed): min(BaseDelay * BackoffMultiplier^i, MaxDelay).
func (p Policy) DelayFor(attemptIndex int) time.Duration {
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attemptIndex)))
	if delay > p.MaxDelay {
		return p.MaxDelay
	}

	return delay
}

// Retryable reports whether the policy retries errors of the given class.
func (p Policy) Retryable(class models.ErrorClass) bool {
	return slices.Contains(p.RetryableClasses, class)
}

// Classify maps an error onto the failure taxonomy the engine reports.
// Breaker rejections are classified by the executor before retry ever sees
// them, so this only distinguishes transient, throttled and permanent.
func Classify(err error) models.ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, protocol.ErrThrottled) {
		return models.ErrorClassThrottled
	}

	if errors.Is(err, protocol.ErrTransient) {
		return models.ErrorClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorClassTransient
	}

	return models.ErrorClassPermanent
}
