package vision

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"go-ct-staging/internal/logger"
	"go-ct-staging/internal/prompt"
	"go-ct-staging/internal/staging"
)

// Invoker wraps an Engine with the invocation policy: a hard per-attempt
// timeout, a bounded retry loop with exponential backoff for transient
// failures, and a concurrency gate. Model calls run for minutes, not
// milliseconds, so callers must pass a context they are willing to hold open
// that long.
type Invoker struct {
	engine      Engine
	gate        *Gate
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
}

// NewInvoker builds an invoker around the given engine.
func NewInvoker(engine Engine, timeout time.Duration, maxAttempts int, baseDelay time.Duration, maxConcurrent int) *Invoker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Invoker{
		engine:      engine,
		gate:        NewGate(maxConcurrent),
		timeout:     timeout,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Invoke calls the model, retrying transient failures up to the attempt
// budget. Non-retryable failure kinds propagate immediately. Cancellation of
// ctx aborts the outstanding attempt and stops the loop.
func (iv *Invoker) Invoke(ctx context.Context, img Payload, q prompt.ModelQuery) (staging.RawOutput, error) {
	if err := iv.gate.Acquire(ctx); err != nil {
		return staging.RawOutput{}, NewFailure(FailureTimeout, "canceled before model invocation", err)
	}
	defer iv.gate.Release()

	var lastErr error
	for attempt := 1; attempt <= iv.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, iv.timeout)
		out, err := iv.engine.Invoke(attemptCtx, img, q)
		cancel()
		if err == nil {
			return out, nil
		}

		kind := KindOf(err)
		lastErr = err
		logger.WithError(err).WithFields(logrus.Fields{
			"engine":  iv.engine.Name(),
			"attempt": attempt,
			"kind":    kind,
		}).Warn("Model invocation attempt failed")

		if !kind.Retryable() {
			return staging.RawOutput{}, err
		}
		// Caller abort beats the retry budget.
		if ctx.Err() != nil {
			return staging.RawOutput{}, NewFailure(FailureTimeout, "model invocation canceled", ctx.Err())
		}
		if attempt < iv.maxAttempts {
			if err := sleepBackoff(ctx, iv.baseDelay, attempt); err != nil {
				return staging.RawOutput{}, NewFailure(FailureTimeout, "model invocation canceled", err)
			}
		}
	}

	if f, ok := lastErr.(*Failure); ok {
		return staging.RawOutput{}, f
	}
	return staging.RawOutput{}, NewFailure(KindOf(lastErr), "model invocation failed after retries", lastErr)
}

// sleepBackoff waits baseDelay * 2^(attempt-1) or until the context is done.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << uint(attempt-1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
