// Package shared contains common domain types and errors that are used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "objective", "attainment"
	Op      string // Operation that failed, e.g., "Save", "Aggregate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Session record errors
var (
	ErrRecordNotFound  = NewDomainError("session", "Find", ErrNotFound, "session record not found")
	ErrUnknownTrack    = NewDomainError("session", "Validate", ErrInvalidInput, "unknown track")
	ErrUnknownStage    = NewDomainError("session", "Validate", ErrInvalidInput, "unknown stage")
	ErrStageNotInTrack = NewDomainError("session", "Validate", ErrInvalidInput, "stage does not belong to track")
	ErrNegativeCount   = NewDomainError("session", "Validate", ErrNegativeValue, "counts cannot be negative")
	ErrMissingDate     = NewDomainError("session", "Validate", ErrEmptyValue, "session date is required")
)

// Annual objective errors
var (
	ErrInvalidYear     = NewDomainError("objective", "Validate", ErrValueOutOfRange, "year out of range")
	ErrNegativeTarget  = NewDomainError("objective", "Validate", ErrNegativeValue, "target value cannot be negative")
	ErrMissingCenterID = NewDomainError("objective", "Validate", ErrInvalidID, "center ID is required")
)

// Center errors
var (
	ErrCenterNotFound   = NewDomainError("center", "Find", ErrNotFound, "center not found")
	ErrEmptyCenterID    = NewDomainError("center", "Validate", ErrInvalidID, "center ID cannot be empty")
	ErrReservedCenterID = NewDomainError("center", "Validate", ErrInvalidID, `center ID "_" is reserved for sessions without a center`)
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}
