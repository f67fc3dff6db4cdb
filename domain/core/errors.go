package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrRunNotFound       = fmt.Errorf("%w: run", ErrNotFound)
	ErrRecordingNotFound = fmt.Errorf("%w: recording", ErrNotFound)

	// Validation errors
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrShapeMismatch    = errors.New("array shape mismatch")
	ErrBadAxis          = errors.New("bad axis")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrSeedMismatch     = errors.New("seed mismatch")
	ErrHashMismatch     = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewShapeError(detail string) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, detail)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsShapeError(err error) bool {
	return errors.Is(err, ErrShapeMismatch) || errors.Is(err, ErrBadAxis)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrHashMismatch)
}
