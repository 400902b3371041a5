package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Shape errors
	ErrShape            = errors.New("shape mismatch")
	ErrIncompatibleAxis = fmt.Errorf("%w: incompatible energy axis", ErrShape)

	// Component errors
	ErrMissingComponent = errors.New("missing dataset component")
	ErrMissingCountsOff = fmt.Errorf("%w: counts_off", ErrMissingComponent)
	ErrMissingExposure  = fmt.Errorf("%w: exposure", ErrMissingComponent)

	// Validation errors
	ErrValidation        = errors.New("validation failed")
	ErrIncompatibleType  = errors.New("incompatible dataset types")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrParameterNotFound = errors.New("parameter not found")
	ErrDatasetNotFound   = errors.New("dataset not found")
	ErrModelNotFound     = errors.New("model not found")
)

// NewShapeError reports two grids whose sizes disagree
func NewShapeError(what string, want, got int) error {
	return fmt.Errorf("%w: %s has %d bins, expected %d", ErrShape, what, got, want)
}

// NewAxisError reports energy axes that cannot be reconciled
func NewAxisError(reason string) error {
	return fmt.Errorf("%w: %s", ErrIncompatibleAxis, reason)
}

// NewValidationError reports an invalid constructor argument
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrValidation, field, reason)
}

// NewMissingComponentError reports a component required by a computation
func NewMissingComponentError(component, operation string) error {
	return fmt.Errorf("%w: %s is required for %s", ErrMissingComponent, component, operation)
}

// Error checking helpers
func IsShapeError(err error) bool {
	return errors.Is(err, ErrShape)
}

func IsMissingComponentError(err error) bool {
	return errors.Is(err, ErrMissingComponent)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateName)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrParameterNotFound) ||
		errors.Is(err, ErrDatasetNotFound) ||
		errors.Is(err, ErrModelNotFound)
}
