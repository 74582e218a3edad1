// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInputValidation     = errors.New("input validation failed")
	ErrUnknownSignalKind   = errors.New("unknown signal type")
	ErrUntrackedInstrument = errors.New("instrument not tracked or inactive")
	ErrNoOpenPosition      = errors.New("no open trade to close")
	ErrRedundantEntry      = errors.New("already in that direction")
	ErrFlipSuppressed      = errors.New("flip entry suppressed")
	ErrDatabaseError       = errors.New("database error")
	ErrInstrumentNotFound  = errors.New("instrument not found")
	ErrInstrumentExists    = errors.New("instrument already exists")
	ErrConfigInvalid       = errors.New("invalid configuration")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// UnknownSignalKindError is returned when an alert carries an action token
// that does not map to any signal kind.
type UnknownSignalKindError struct {
	Token string
}

func (e *UnknownSignalKindError) Error() string {
	return fmt.Sprintf("unknown signal type: %q", e.Token)
}

func (e *UnknownSignalKindError) Unwrap() error {
	return ErrUnknownSignalKind
}

// NewUnknownSignalKindError creates a new UnknownSignalKindError.
func NewUnknownSignalKindError(token string) *UnknownSignalKindError {
	return &UnknownSignalKindError{Token: token}
}

// StoreError represents a persistence failure.
type StoreError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("store error [%s] %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports StoreError as ErrDatabaseError in addition to its wrapped error.
func (e *StoreError) Is(target error) bool {
	return target == ErrDatabaseError
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, symbol string, err error) *StoreError {
	return &StoreError{
		Op:     op,
		Symbol: symbol,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
