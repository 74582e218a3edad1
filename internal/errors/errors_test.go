package errors

import (
	"fmt"
	"testing"
)

func TestValidationErrorUnwrapsToSentinel(t *testing.T) {
	err := NewValidationError("symbol", "", "symbol is required")
	if !Is(err, ErrInputValidation) {
		t.Fatal("ValidationError should match ErrInputValidation")
	}

	wrapped := Wrap(err, "normalizing alert")
	var ve *ValidationError
	if !As(wrapped, &ve) {
		t.Fatal("wrapped error should unwrap to *ValidationError")
	}
	if ve.Field != "symbol" {
		t.Errorf("expected field symbol, got %s", ve.Field)
	}
}

func TestUnknownSignalKindError(t *testing.T) {
	err := NewUnknownSignalKindError("HODL")
	if !Is(err, ErrUnknownSignalKind) {
		t.Fatal("UnknownSignalKindError should match ErrUnknownSignalKind")
	}
	if Is(err, ErrInputValidation) {
		t.Error("UnknownSignalKindError must not match ErrInputValidation")
	}
}

func TestStoreErrorMatchesDatabaseError(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := NewStoreError("save", "NIFTY", cause)

	if !Is(err, ErrDatabaseError) {
		t.Error("StoreError should match ErrDatabaseError")
	}
	if !Is(err, cause) {
		t.Error("StoreError should unwrap to its cause")
	}
	if got := err.Error(); got != "store error [save] NIFTY: disk I/O error" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}
