// Package models provides domain models for the signal bridge.
package models

import (
	"fmt"
	"strings"
)

// Status represents the position status of a tracked symbol.
type Status string

const (
	StatusNone  Status = "NONE"
	StatusLong  Status = "LONG"
	StatusShort Status = "SHORT"
)

// String returns the status as stored and displayed.
func (s Status) String() string {
	return string(s)
}

// IsOpen reports whether the status represents an open position.
func (s Status) IsOpen() bool {
	return s == StatusLong || s == StatusShort
}

// ParseStatus converts a stored status into a Status.
// An empty string is treated as NONE, matching a freshly created row.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusNone, "":
		return StatusNone, nil
	case StatusLong:
		return StatusLong, nil
	case StatusShort:
		return StatusShort, nil
	default:
		return "", fmt.Errorf("invalid status: %q", s)
	}
}

// SignalKind represents the canonical kind of an inbound alert.
type SignalKind string

const (
	SignalEntryLong  SignalKind = "ENTRY_LONG"
	SignalEntryShort SignalKind = "ENTRY_SHORT"
	SignalExit       SignalKind = "EXIT"
)

// String returns the canonical token.
func (k SignalKind) String() string {
	return string(k)
}

// IsEntry reports whether the kind opens a position.
func (k SignalKind) IsEntry() bool {
	return k == SignalEntryLong || k == SignalEntryShort
}

// Direction returns the position an entry kind targets.
// EXIT has no direction and returns NONE.
func (k SignalKind) Direction() Status {
	switch k {
	case SignalEntryLong:
		return StatusLong
	case SignalEntryShort:
		return StatusShort
	default:
		return StatusNone
	}
}
