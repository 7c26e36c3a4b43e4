package resilience

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"TradeEngine/internal/metrics"
)

// BreakerState is the circuit breaker's state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker guards one external dependency. A run of consecutive
// failures opens it; while open, calls fail fast until the recovery
// timeout elapses, then a single probe is allowed (half-open). One
// success closes it again, one failure reopens it.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *zap.Logger
	now              func() time.Time

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a breaker named after the dependency it
// protects (e.g. "broker", "market_data").
func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger,
		now:              time.Now,
		state:            BreakerClosed,
	}
	b.publishState()
	return b
}

// CanExecute reports whether a call may proceed. When the recovery
// timeout has elapsed on an open breaker, it moves to half-open and
// allows one probe.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastFailureTime) > b.recoveryTimeout {
			b.setState(BreakerHalfOpen)
			return true
		}
		return false
	}
	return false
}

// RecordSuccess resets the failure count; a half-open probe success
// closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state != BreakerClosed {
		b.setState(BreakerClosed)
	}
}

// RecordFailure counts a failure; reaching the threshold (or failing a
// half-open probe) opens the breaker.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	if b.state == BreakerHalfOpen || b.failureCount >= b.failureThreshold {
		b.setState(BreakerOpen)
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetClock overrides the time source. Test hook.
func (b *CircuitBreaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// setState transitions and publishes; callers hold the lock.
func (b *CircuitBreaker) setState(next BreakerState) {
	if b.state == next {
		return
	}
	b.logger.Warn("circuit breaker state change",
		zap.String("name", b.name),
		zap.String("from", string(b.state)),
		zap.String("to", string(next)))
	b.state = next
	b.publishState()
}

func (b *CircuitBreaker) publishState() {
	var v float64
	switch b.state {
	case BreakerOpen:
		v = 1
	case BreakerHalfOpen:
		v = 2
	}
	metrics.BreakerState.WithLabelValues(b.name).Set(v)
}
