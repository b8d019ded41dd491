package reorg

import (
	"errors"
	"fmt"
)

// ReorgDetectedError is returned when the stored head is no longer on the node's main branch.
type ReorgDetectedError struct {
	// Level is the stored level that left the main branch and must be reverted first.
	Level   int64
	Details string
}

func (e *ReorgDetectedError) Error() string {
	return fmt.Sprintf("reorg detected at level %d: %s", e.Level, e.Details)
}

// NewReorgError creates a new ReorgDetectedError.
func NewReorgError(level int64, details string) error {
	return &ReorgDetectedError{
		Level:   level,
		Details: details,
	}
}

// AsReorg returns the ReorgDetectedError wrapped in err, if any.
func AsReorg(err error) (*ReorgDetectedError, bool) {
	var reorgErr *ReorgDetectedError
	if errors.As(err, &reorgErr) {
		return reorgErr, true
	}
	return nil, false
}
