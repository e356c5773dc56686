package pipeline

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Only these two stop a run: malformed input
// aborts before any stage executes, and cancellation aborts between
// stages or mid-dispatch. Everything else degrades into Document
// diagnostics.
var (
	// ErrInvalidInput is returned for a malformed or empty input image.
	ErrInvalidInput = errors.New("invalid input image")

	// ErrCancelled matches any cancellation error via errors.Is.
	ErrCancelled = errors.New("pipeline cancelled")
)

// CancelledError reports where in the stage sequence the run was
// cancelled. No partial Document accompanies it.
type CancelledError struct {
	// Point is the stage boundary or stage where cancellation was
	// observed (e.g., "binarize", "dispatch").
	Point string

	// Cause is the underlying context error.
	Cause error
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("pipeline cancelled at %s: %v", e.Point, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// Is matches ErrCancelled.
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}
