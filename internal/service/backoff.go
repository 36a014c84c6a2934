package service

import (
	"context"
	"time"

	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// sleepBackoff waits base * 2^(attempt-1), honoring cancellation.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	timer := time.NewTimer(base << (attempt - 1))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// embedWithRetry runs one embedding call through the provider budget,
// retrying transient and rate-limit failures with backoff up to the
// attempt ceiling.
func embedWithRetry(ctx context.Context, embedder Embedder, limiter CallLimiter,
	text, taskType string, maxAttempts int, base time.Duration) ([]float32, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		emb, err := embedOnce(ctx, embedder, limiter, text, taskType)
		if err == nil {
			return emb, nil
		}
		lastErr = err
		if !apperr.IsRetryable(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleepBackoff(ctx, base, attempt); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func embedOnce(ctx context.Context, embedder Embedder, limiter CallLimiter, text, taskType string) ([]float32, error) {
	release, err := limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return embedder.Embed(ctx, text, taskType)
}
