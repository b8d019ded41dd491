package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
)

// retryableError checks if an error should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	if common.IsRetryable(err) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// truncated bodies surface as syntax errors
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no available connection")
}

// calculateBackoff computes the backoff duration for a given attempt with ±25% jitter.
func calculateBackoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	if backoff > float64(cfg.MaxBackoff.Duration) {
		backoff = float64(cfg.MaxBackoff.Duration)
	}

	jitterRange := backoff * 0.25
	backoff += (rand.Float64() * 2 * jitterRange) - jitterRange

	return time.Duration(max(backoff, 0))
}

// retryWithBackoff executes fn until it succeeds, fails with a non-retryable error,
// or runs out of attempts. It respects context cancellation.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, operation string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	var lastErr error
	startTime := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryableError(err) {
			return fmt.Errorf("non-retryable error on attempt %d/%d: %w", attempt, cfg.MaxAttempts, err)
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		if backoff := calculateBackoff(attempt+1, cfg); backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w",
					attempt, cfg.MaxAttempts, ctx.Err())
			}
		}

		RPCRetryInc(operation)
	}

	return fmt.Errorf("all %d attempts failed after %v (last error: %w)",
		cfg.MaxAttempts, time.Since(startTime), lastErr)
}
