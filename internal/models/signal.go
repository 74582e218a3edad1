package models

import "time"

// UnknownPrice is used when an alert carries no price.
const UnknownPrice = "unknown"

// Signal is a normalized inbound alert.
type Signal struct {
	Symbol          string
	Kind            SignalKind
	Price           string
	CandleTimestamp string
	RawKind         string
}

// EventKind represents the kind of trade event emitted by a transition.
type EventKind string

const (
	EventEntry          EventKind = "ENTRY"
	EventClose          EventKind = "CLOSE"
	EventFlipSuppressed EventKind = "FLIP_SUPPRESSED"
)

// TradeEvent describes an accepted transition or a suppressed flip.
type TradeEvent struct {
	Kind   EventKind
	Symbol string
	// Direction is the new direction for ENTRY, the closed direction for
	// CLOSE and the attempted direction for FLIP_SUPPRESSED.
	Direction       Status
	Price           string
	CandleTimestamp string
	ActionTime      time.Time
	// Set on CLOSE only.
	PriorEntryTime  time.Time
	PriorEntryPrice string
}

// Triggers reports whether the event may call a downstream URL.
func (e TradeEvent) Triggers() bool {
	return e.Kind == EventEntry || e.Kind == EventClose
}
