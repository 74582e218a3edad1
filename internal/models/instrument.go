package models

import "time"

// Instrument represents a tracked symbol and its downstream trigger URLs.
type Instrument struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Active    bool      `json:"active"`
	BuyURL    string    `json:"buy_url,omitempty"`
	SellURL   string    `json:"sell_url,omitempty"`
	CloseURL  string    `json:"close_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TriggerURL selects the downstream URL configured for an event.
// Buy for a long entry, sell for a short entry, close for a close.
// Flip suppressions never trigger and return an empty string.
func (i Instrument) TriggerURL(kind EventKind, direction Status) string {
	switch kind {
	case EventEntry:
		switch direction {
		case StatusLong:
			return i.BuyURL
		case StatusShort:
			return i.SellURL
		}
	case EventClose:
		return i.CloseURL
	}
	return ""
}

// InstrumentUpdate carries the editable fields of an instrument.
// Nil fields are left unchanged.
type InstrumentUpdate struct {
	Timeframe *string `json:"timeframe,omitempty"`
	Active    *bool   `json:"active,omitempty"`
	BuyURL    *string `json:"buy_url,omitempty" validate:"omitempty,url"`
	SellURL   *string `json:"sell_url,omitempty" validate:"omitempty,url"`
	CloseURL  *string `json:"close_url,omitempty" validate:"omitempty,url"`
}

// Apply returns a copy of inst with the update applied.
func (u InstrumentUpdate) Apply(inst Instrument) Instrument {
	if u.Timeframe != nil {
		inst.Timeframe = *u.Timeframe
	}
	if u.Active != nil {
		inst.Active = *u.Active
	}
	if u.BuyURL != nil {
		inst.BuyURL = *u.BuyURL
	}
	if u.SellURL != nil {
		inst.SellURL = *u.SellURL
	}
	if u.CloseURL != nil {
		inst.CloseURL = *u.CloseURL
	}
	return inst
}
