package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrRunNotFound        = fmt.Errorf("%w: run", ErrNotFound)
	ErrExperimentNotFound = fmt.Errorf("%w: experiment", ErrNotFound)
	ErrArtifactNotFound   = fmt.Errorf("%w: artifact", ErrNotFound)

	// Schema errors
	ErrMissingColumn    = errors.New("column missing from table")
	ErrMalformedTable   = errors.New("malformed table")
	ErrNonNumeric       = errors.New("non-numeric cell")
	ErrInsufficientData = errors.New("insufficient data")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")

	// Run lifecycle errors
	ErrRunNotActive    = errors.New("run is not active")
	ErrInvalidModel    = errors.New("invalid model artifact")
	ErrInvalidModelURI = errors.New("invalid model uri")
)

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %q", ErrMissingColumn, column)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSchemaError(err error) bool {
	return errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrMalformedTable) ||
		errors.Is(err, ErrNonNumeric) ||
		errors.Is(err, ErrInsufficientData)
}
