package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker("test", 3, 30*time.Second, nil)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.CanExecute())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.CanExecute())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewCircuitBreaker("test", 3, 30*time.Second, nil)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	b := NewCircuitBreaker("test", 1, 30*time.Second, nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.CanExecute())

	// Not yet past the recovery timeout.
	now = now.Add(29 * time.Second)
	assert.False(t, b.CanExecute())

	// One probe allowed after the timeout elapses.
	now = now.Add(2 * time.Second)
	assert.True(t, b.CanExecute())
	assert.Equal(t, BreakerHalfOpen, b.State())
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := NewCircuitBreaker("test", 1, 30*time.Second, nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	assert.True(t, b.CanExecute())

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.CanExecute())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewCircuitBreaker("test", 5, 30*time.Second, nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	now = now.Add(31 * time.Second)
	assert.True(t, b.CanExecute())
	assert.Equal(t, BreakerHalfOpen, b.State())

	// A single failure in half-open reopens regardless of the threshold.
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.CanExecute())
}

func TestBreakerDefaults(t *testing.T) {
	b := NewCircuitBreaker("test", 0, 0, nil)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
}
