package domain

import (
	"errors"
	"testing"
)

func TestValidateShipRejectsSubFloorCapacity(t *testing.T) {
	bad := 500
	s := Ship{Name: "MV AZARA", CapacityInt: &bad}
	err := ValidateShip(s)
	if err == nil {
		t.Fatal("expected validation error for capacity_int below 1000")
	}
	if !errors.Is(err, ErrCapacityBelowFloor) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateShipAcceptsNilDerivedFields(t *testing.T) {
	s := Ship{Name: "MV AZARA"}
	if err := ValidateShip(s); err != nil {
		t.Errorf("unexpected error for ship with unparsed derived fields: %v", err)
	}
}

func TestValidateCargoRejectsMinMaxOrderViolation(t *testing.T) {
	min, max := 5000, 2000
	c := Cargo{Name: "grain", QuantityMinInt: &min, QuantityMaxInt: &max}
	err := ValidateCargo(c)
	if !errors.Is(err, ErrQuantityMinMaxOrder) {
		t.Errorf("expected ErrQuantityMinMaxOrder, got %v", err)
	}
}

func TestValidateCargoRejectsMonthOutOfRange(t *testing.T) {
	month := 13
	c := Cargo{Name: "grain", MonthInt: &month}
	if err := ValidateCargo(c); !errors.Is(err, ErrMonthOutOfRange) {
		t.Errorf("expected ErrMonthOutOfRange, got %v", err)
	}
}

func TestValidateEntryTypeRejectsUnknown(t *testing.T) {
	if err := ValidateEntryType(ExtractionEntry{Type: "barge"}); !errors.Is(err, ErrUnknownEntryType) {
		t.Errorf("expected ErrUnknownEntryType, got %v", err)
	}
	if err := ValidateEntryType(ExtractionEntry{Type: ""}); !errors.Is(err, ErrMissingEntryType) {
		t.Errorf("expected ErrMissingEntryType, got %v", err)
	}
	if err := ValidateEntryType(ExtractionEntry{Type: EntryShip}); err != nil {
		t.Errorf("expected no error for valid type, got %v", err)
	}
}
