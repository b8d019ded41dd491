package common

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnimplemented marks protocol behavior the indexer has no handler for:
	// an unknown operation kind, status, balance update category or protocol.
	ErrUnimplemented = errors.New("unimplemented protocol behavior")

	// ErrInvariant marks a ledger consistency violation.
	ErrInvariant = errors.New("ledger invariant violated")

	// ErrRetryable marks a transient condition, usually a stalled node or an incomplete block.
	ErrRetryable = errors.New("retryable")
)

// Unimplementedf returns an error wrapping ErrUnimplemented.
func Unimplementedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnimplemented, fmt.Sprintf(format, args...))
}

// Invariantf returns an error wrapping ErrInvariant.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// Retryablef returns an error wrapping ErrRetryable.
func Retryablef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRetryable, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

// IsFatal reports whether err must stop ingestion.
// Context cancellation is a shutdown, not a failure.
func IsFatal(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	return !IsRetryable(err)
}
