package raster

import (
	"errors"
	"fmt"
)

// Common raster buffer errors
var (
	// ErrEmptyImage is returned when the input image is nil or has no pixels.
	ErrEmptyImage = errors.New("image is empty")

	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("invalid image dimensions")

	// ErrBufferMismatch is returned when the pixel buffer length does not
	// match width x height x channels.
	ErrBufferMismatch = errors.New("pixel buffer length does not match dimensions")

	// ErrDecodeFailed is returned when the encoded input cannot be decoded.
	ErrDecodeFailed = errors.New("failed to decode image")
)

// RasterError wraps errors with additional context about the raster operation.
type RasterError struct {
	// Op is the operation that failed (e.g., "Decode", "Crop").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *RasterError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("raster: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("raster: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RasterError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *RasterError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapRasterError wraps an error as a RasterError if it isn't already one.
func WrapRasterError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var rErr *RasterError
	if errors.As(err, &rErr) {
		return err
	}

	return &RasterError{Op: op, Err: err, Details: details}
}
