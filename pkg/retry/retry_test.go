package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
		Jitter:            false,
		RetryableClasses: []models.ErrorClass{
			models.ErrorClassTransient,
			models.ErrorClassThrottled,
		},
	}
}

func newTestHandler(policy Policy) (*Handler, *[]time.Duration) {
	handler := NewHandler(policy, testLogger())

	slept := make([]time.Duration, 0)
	handler.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)

		return nil
	}

	return handler, &slept
}

func TestPolicy_DelayFor(t *testing.T) {
	policy := testPolicy()

	tests := []struct {
		attemptIndex int
		want         time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second}, // capped at MaxDelay
		{10, time.Second},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("attempt %d", tc.attemptIndex), func(t *testing.T) {
			assert.Equal(t, tc.want, policy.DelayFor(tc.attemptIndex))
		})
	}
}

func TestHandler_JitterStaysWithinBounds(t *testing.T) {
	policy := testPolicy()
	policy.Jitter = true
	policy.MaxAttempts = 2

	for range 50 {
		handler, slept := newTestHandler(policy)

		err := handler.Execute(context.Background(), func(context.Context) error {
			return protocol.ErrTransient
		})
		require.Error(t, err)
		require.Len(t, *slept, 1)

		base := policy.DelayFor(0)
		assert.GreaterOrEqual(t, (*slept)[0], base/2)
		assert.LessOrEqual(t, (*slept)[0], base*3/2)
	}
}

func TestHandler_SucceedsFirstAttempt(t *testing.T) {
	handler, slept := newTestHandler(testPolicy())

	calls := 0
	err := handler.Execute(context.Background(), func(context.Context) error {
		calls++

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)

	metrics := handler.Metrics()
	assert.Equal(t, 1, metrics.TotalAttempts)
	assert.Equal(t, 1, metrics.Successes)
	assert.Zero(t, metrics.Failures)
}

func TestHandler_RetriesTransientThenSucceeds(t *testing.T) {
	handler, slept := newTestHandler(testPolicy())

	calls := 0
	err := handler.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("describe instances: %w", protocol.ErrTransient)
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)

	metrics := handler.Metrics()
	assert.Equal(t, 3, metrics.TotalAttempts)
	assert.Equal(t, 2, metrics.Failures)
	assert.Equal(t, 300*time.Millisecond, metrics.TotalDelay)
}

func TestHandler_PermanentErrorFailsFast(t *testing.T) {
	handler, slept := newTestHandler(testPolicy())

	permanent := errors.New("malformed filter expression")

	calls := 0
	err := handler.Execute(context.Background(), func(context.Context) error {
		calls++

		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestHandler_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	handler, slept := newTestHandler(testPolicy())

	calls := 0
	err := handler.Execute(context.Background(), func(context.Context) error {
		calls++

		return fmt.Errorf("attempt %d: %w", calls, protocol.ErrThrottled)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrThrottled)
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2)

	metrics := handler.Metrics()
	assert.Equal(t, 3, metrics.Failures)
	assert.Contains(t, metrics.LastError, "attempt 3")
}

func TestHandler_CancelledContextStopsRetrying(t *testing.T) {
	handler := NewHandler(testPolicy(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	handler.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()

		return ctx.Err()
	}

	err := handler.Execute(ctx, func(context.Context) error {
		return protocol.ErrTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorClass
	}{
		{"throttled", fmt.Errorf("rate exceeded: %w", protocol.ErrThrottled), models.ErrorClassThrottled},
		{"transient", protocol.ErrTransient, models.ErrorClassTransient},
		{"network timeout", timeoutError{}, models.ErrorClassTransient},
		{"wrapped network timeout", fmt.Errorf("get metrics: %w", timeoutError{}), models.ErrorClassTransient},
		{"unsupported", protocol.ErrUnsupported, models.ErrorClassPermanent},
		{"unknown", errors.New("boom"), models.ErrorClassPermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}
