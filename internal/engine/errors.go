package engine

import (
	"errors"
	"fmt"
)

// Common recognition engine errors
var (
	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrRecognitionFailed is returned when the backend fails to process the region.
	ErrRecognitionFailed = errors.New("recognition failed")

	// ErrEmptyRegion is returned when the submitted region has no pixels.
	ErrEmptyRegion = errors.New("region is empty")
)

// EngineError wraps errors with additional context about the recognition failure.
type EngineError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionEngine").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("engine: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("engine: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapEngineError wraps an error as an EngineError if it isn't already one.
func WrapEngineError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var eErr *EngineError
	if errors.As(err, &eErr) {
		return err
	}

	return &EngineError{Op: op, Err: err, Details: details}
}
