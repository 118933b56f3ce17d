package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// retryableError reports whether a model call failure is worth
// retrying. Provider SDKs do not expose stable error types for these
// conditions, so classification is by message.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()

	// Rate limits always clear up on their own.
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}
	// Transient server errors.
	if containsAny(errStr, "500", "502", "503", "504", "unavailable", "overloaded") {
		return true
	}
	// Network flakes.
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// generateWithRetry calls the model with bounded exponential backoff.
// Each attempt waits on the rate limiter first so retries cannot stack
// extra load onto an already struggling provider. Non-retryable errors
// fail immediately; retryable ones are retried up to cfg.MaxAttempts
// total attempts.
func (a *Agent) generateWithRetry(ctx context.Context, req *ai.ModelRequest) (*ai.ModelResponse, error) {
	var lastErr error
	delay := a.cfg.InitialBackoff
	start := time.Now()

	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := a.model.Generate(ctx, req, nil)
		if err == nil {
			a.logger.Debug("model call succeeded",
				"attempts", attempt,
				"elapsed", time.Since(start))
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		if attempt == a.cfg.MaxAttempts {
			break
		}

		a.logger.Debug("retrying model call",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, a.cfg.MaxBackoff)
		}
	}

	return nil, fmt.Errorf("%w: %d attempts (elapsed %v): %w",
		ErrGeneration, a.cfg.MaxAttempts, time.Since(start), lastErr)
}
