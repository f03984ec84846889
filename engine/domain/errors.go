package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures (I3/I4 in spec terms: derived
// numeric invariants). Geocoding failures have no sentinel here; the
// extraction stage logs them and drops the entry.
var (
	ErrMissingEntryType    = errors.New("extraction entry missing type")
	ErrUnknownEntryType    = errors.New("extraction entry has unknown type")
	ErrMissingName         = errors.New("entry missing name")
	ErrCapacityBelowFloor  = errors.New("capacity_int below 1000 floor")
	ErrQuantityBelowFloor  = errors.New("quantity_int below 1000 floor")
	ErrQuantityMinMaxOrder = errors.New("quantity_min_int exceeds quantity_max_int")
	ErrMonthOutOfRange     = errors.New("month_int out of [1,12] range")
)

// ValidationError wraps a sentinel with the field/value context that tripped it.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
