package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"TradeEngine/internal/metrics"
)

// ErrorHandler wraps flaky external calls in bounded retry with a
// growing backoff. Errors never propagate past this boundary raw: the
// caller gets the final error (or nil) after all attempts and decides
// whether to treat it as "no result".
type ErrorHandler struct {
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	failures map[string]int
}

// NewErrorHandler creates a handler attempting each operation up to
// maxRetries+1 times, sleeping retryDelay*(attempt+1) between attempts.
func NewErrorHandler(maxRetries int, retryDelay time.Duration, logger *zap.Logger) *ErrorHandler {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
		failures:   make(map[string]int),
	}
}

// Execute runs op, retrying on failure until attempts are exhausted or
// the context is done. The returned error is the last attempt's error.
func (h *ErrorHandler) Execute(ctx context.Context, name string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		h.recordFailure(name)
		h.logger.Warn("operation failed",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", h.maxRetries+1),
			zap.Error(lastErr))

		if attempt == h.maxRetries {
			break
		}

		backoff := h.retryDelay * time.Duration(attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

// FailureCount returns how many failures have been recorded for an
// operation name. Observability only.
func (h *ErrorHandler) FailureCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures[name]
}

func (h *ErrorHandler) recordFailure(name string) {
	h.mu.Lock()
	h.failures[name]++
	h.mu.Unlock()
	metrics.RetryFailures.WithLabelValues(name).Inc()
}
