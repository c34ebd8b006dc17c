package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
		HalfOpenMaxCalls: 2,
		SuccessThreshold: 2,
	}
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := New("ec2", testSettings())

	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("ec2", testSettings())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrOpen)

	snapshot := cb.Snapshot()
	assert.False(t, snapshot.LastFailureAt.IsZero())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New("rds", testSettings())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	// The counter restarted, so two more failures are not enough to trip.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_TransitionsToHalfOpenAfterRecoveryTimeout(t *testing.T) {
	cb := New("lambda", testSettings())

	now := time.Now()
	cb.now = func() time.Time { return now }

	for range 3 {
		cb.RecordFailure()
	}

	require.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrOpen)

	now = now.Add(time.Minute + time.Second)

	assert.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenTrialBudget(t *testing.T) {
	cb := New("s3", testSettings())

	now := time.Now()
	cb.now = func() time.Time { return now }

	for range 3 {
		cb.RecordFailure()
	}

	now = now.Add(2 * time.Minute)

	// HalfOpenMaxCalls is 2: the transition consumes the first trial slot.
	require.NoError(t, cb.Allow())
	require.NoError(t, cb.Allow())
	assert.ErrorIs(t, cb.Allow(), ErrOpen)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("dynamodb", testSettings())

	now := time.Now()
	cb.now = func() time.Time { return now }

	for range 3 {
		cb.RecordFailure()
	}

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess() // one trial success, below threshold
	cb.RecordFailure() // no partial credit

	assert.Equal(t, StateOpen, cb.State())

	snapshot := cb.Snapshot()
	assert.Zero(t, snapshot.TrialCalls)
	assert.Zero(t, snapshot.TrialSuccesses)
}

func TestCircuitBreaker_HalfOpenSuccessesClose(t *testing.T) {
	cb := New("ecs", testSettings())

	now := time.Now()
	cb.now = func() time.Time { return now }

	for range 3 {
		cb.RecordFailure()
	}

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())

	cb.RecordSuccess()
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())

	snapshot := cb.Snapshot()
	assert.Zero(t, snapshot.Failures)
	assert.Zero(t, snapshot.TrialCalls)
}

func TestCircuitBreaker_OpenToHalfOpenEdgeIsGuarded(t *testing.T) {
	cb := New("ebs", testSettings())

	now := time.Now()

	var nowMu sync.Mutex

	cb.now = func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()

		return now
	}

	for range 3 {
		cb.RecordFailure()
	}

	nowMu.Lock()
	now = now.Add(2 * time.Minute)
	nowMu.Unlock()

	// Many workers race the recovery check; the trial budget must still
	// cap admitted calls at HalfOpenMaxCalls.
	var wg sync.WaitGroup

	allowed := make(chan struct{}, 32)

	for range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if cb.Allow() == nil {
				allowed <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}

	assert.LessOrEqual(t, count, testSettings().HalfOpenMaxCalls)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestArena_OneBreakerPerUnitName(t *testing.T) {
	arena := NewArena(testSettings())

	first := arena.For("ec2")
	second := arena.For("ec2")

	assert.Same(t, first, second)
	assert.NotSame(t, first, arena.For("rds"))
}

func TestArena_ConcurrentAccess(t *testing.T) {
	arena := NewArena(testSettings())

	var wg sync.WaitGroup

	for range 64 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			cb := arena.For("ec2")
			cb.RecordFailure()
		}()
	}

	wg.Wait()

	assert.Equal(t, StateOpen, arena.For("ec2").State())
	assert.Len(t, arena.Snapshots(), 1)
}
