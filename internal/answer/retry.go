package answer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for generation calls.
type RetryConfig struct {
	MaxAttempts     int           // total attempts, including the first
	InitialInterval time.Duration // first backoff interval
	MaxInterval     time.Duration // backoff cap
}

// DefaultRetryConfig returns the bounded policy used for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     8 * time.Second,
	}
}

// retryableError reports whether an error is transient enough to retry.
// Providers surface these conditions as message text rather than typed
// errors, so classification is by substring.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limits
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}
	// Transient server errors
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}
	// Network errors
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// generateWithRetry runs one generation with exponential backoff. Each
// attempt waits on the rate limiter when one is configured; non-transient
// errors fail immediately.
func (o *Orchestrator) generateWithRetry(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	delay := o.retry.InitialInterval
	start := time.Now()

	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		text, err := o.generator.Generate(ctx, system, prompt)
		if err == nil {
			o.logger.Debug("generation succeeded",
				"attempts", attempt, "elapsed", time.Since(start))
			return text, nil
		}
		lastErr = err

		if !retryableError(err) {
			return "", err
		}
		if attempt == o.retry.MaxAttempts {
			break
		}

		o.logger.Debug("retrying after transient error",
			"attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, o.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("generation failed after %d attempts (elapsed: %v): %w",
		o.retry.MaxAttempts, time.Since(start), lastErr)
}
