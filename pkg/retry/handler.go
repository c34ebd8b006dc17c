package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Metrics accumulates per-handler retry statistics. Mutated only by the
// handler that owns it; reads go through Snapshot.
type Metrics struct {
	TotalAttempts int           `json:"total_attempts"`
	Successes     int           `json:"successes"`
	Failures      int           `json:"failures"`
	TotalDelay    time.Duration `json:"total_delay"`
	LastError     string        `json:"last_error,omitempty"`
}

// Operation is the unit of work a handler retries.
type Operation func(ctx context.Context) error

// Handler executes operations under a retry policy. One handler per unit
// executor cycle; the handler is not shared across goroutines, only its
// metrics snapshot is.
type Handler struct {
	policy Policy
	logger *slog.Logger

	mu      sync.Mutex
	metrics Metrics

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHandler creates a handler for the given policy.
func NewHandler(policy Policy, logger *slog.Logger) *Handler {
	return &Handler{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Execute runs the operation, retrying retryable failures with exponential
// backoff until the policy's attempt budget is exhausted. The inter-attempt
// delay suspends only this handler's goroutine; sibling units keep running.
// The last error is returned once attempts run out or a permanent error is
// seen.
func (h *Handler) Execute(ctx context.Context, op Operation) error {
	var lastErr error

	for attempt := 0; attempt < h.policy.MaxAttempts; attempt++ {
		h.recordAttempt()

		err := op(ctx)
		if err == nil {
			h.recordSuccess()

			return nil
		}

		lastErr = err
		h.recordFailure(err)

		class := Classify(err)
		if !h.policy.Retryable(class) {
			h.logger.DebugContext(ctx, "Error is not retryable, giving up",
				"error", err, "class", string(class), "attempt", attempt+1)

			return err
		}

		if attempt == h.policy.MaxAttempts-1 {
			break
		}

		delay := h.policy.DelayFor(attempt)
		if h.policy.Jitter {
			// Uniform factor in [0.5, 1.5] spreads simultaneous retries.
			delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
		}

		h.logger.DebugContext(ctx, "Retrying after backoff",
			"delay", delay, "attempt", attempt+1, "class", string(class))

		h.recordDelay(delay)

		if err := h.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// Metrics returns a copy of the accumulated statistics.
func (h *Handler) Metrics() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.metrics
}

func (h *Handler) recordAttempt() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.TotalAttempts++
}

func (h *Handler) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.Successes++
}

func (h *Handler) recordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.Failures++
	h.metrics.LastError = err.Error()
}

func (h *Handler) recordDelay(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.TotalDelay += d
}

// sleepContext waits for the duration or until the context is cancelled,
// whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
