package domain

import "strconv"

// ValidateShip checks the derived-field invariants (I3/I4) on a normalized
// Ship. A non-nil error means the entry belongs in FailedEntry, not in the
// ships collection.
func ValidateShip(s Ship) error {
	if s.Name == "" {
		return NewValidationError("name", s.Name, ErrMissingName)
	}
	if s.CapacityInt != nil && *s.CapacityInt < 1000 {
		return NewValidationError("capacity_int", strconv.Itoa(*s.CapacityInt), ErrCapacityBelowFloor)
	}
	if s.MonthInt != nil && (*s.MonthInt < 1 || *s.MonthInt > 12) {
		return NewValidationError("month_int", strconv.Itoa(*s.MonthInt), ErrMonthOutOfRange)
	}
	return nil
}

// ValidateCargo checks the derived-field invariants (I3/I4) on a normalized
// Cargo.
func ValidateCargo(c Cargo) error {
	if c.Name == "" {
		return NewValidationError("name", c.Name, ErrMissingName)
	}
	if c.QuantityMinInt != nil && *c.QuantityMinInt < 1000 {
		return NewValidationError("quantity_min_int", strconv.Itoa(*c.QuantityMinInt), ErrQuantityBelowFloor)
	}
	if c.QuantityMaxInt != nil && *c.QuantityMaxInt < 1000 {
		return NewValidationError("quantity_max_int", strconv.Itoa(*c.QuantityMaxInt), ErrQuantityBelowFloor)
	}
	if c.QuantityMinInt != nil && c.QuantityMaxInt != nil && *c.QuantityMinInt > *c.QuantityMaxInt {
		return NewValidationError("quantity_min_int", strconv.Itoa(*c.QuantityMinInt), ErrQuantityMinMaxOrder)
	}
	if c.MonthInt != nil && (*c.MonthInt < 1 || *c.MonthInt > 12) {
		return NewValidationError("month_int", strconv.Itoa(*c.MonthInt), ErrMonthOutOfRange)
	}
	return nil
}

// ValidateEntryType checks the oracle's entry.type field before any
// type-specific normalization runs.
func ValidateEntryType(e ExtractionEntry) error {
	switch e.Type {
	case EntryShip, EntryCargo:
		return nil
	case "":
		return NewValidationError("type", "", ErrMissingEntryType)
	default:
		return NewValidationError("type", string(e.Type), ErrUnknownEntryType)
	}
}

