/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with fmt.Errorf("...: %w", err) and callers
  test them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. NotFound       - referenced staff, shift, change or entitlement absent
  2. Validation     - no-op change, constraint violation, malformed range
  3. DataIntegrity  - orphaned derived rows found by maintenance sweeps

PROPAGATION:
  NotFound and Validation abort the enclosing store transaction and are
  returned to the caller. DataIntegrity findings are logged and healed by
  the sweep that found them; they never abort a user mutation.

SEE ALSO:
  - holiday/cleanup.go: raises DataIntegrityError
  - holiday/changes.go: raises ValidationError for no-op changes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when input breaks a business rule.
	ErrValidation = errors.New("validation failed")

	// ErrDataIntegrity marks derived state that no longer matches its source.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrDuplicateName is returned when a staff display name is already taken.
	ErrDuplicateName = errors.New("duplicate staff name")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "staff", "shift", "change", "entitlement"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError provides details about a rejected input.
type ValidationError struct {
	Code    string // e.g., "no_op_change", "entitlement_count", "invalid_range"
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidation(code, field, format string, args ...any) error {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// DataIntegrityError describes a derived row whose source is gone.
type DataIntegrityError struct {
	Table  string
	Key    string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s[%s]: %s", e.Table, e.Key, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDuplicateName)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
