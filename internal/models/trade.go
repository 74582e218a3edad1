package models

import "time"

// TradeState is the durable position status of one symbol.
type TradeState struct {
	Symbol              string    `json:"symbol"`
	Status              Status    `json:"current_status"`
	LastActionTime      time.Time `json:"last_action_time"`
	LastCandleTimestamp string    `json:"last_candle_timestamp"`
	LastSignalPrice     string    `json:"last_signal_price"`
}

// NewTradeState returns the initial state for a symbol seen for the first time.
func NewTradeState(symbol string) TradeState {
	return TradeState{
		Symbol: symbol,
		Status: StatusNone,
	}
}

// InstrumentStatus joins an instrument with its current trade state for listings.
type InstrumentStatus struct {
	Instrument Instrument  `json:"instrument"`
	State      *TradeState `json:"state,omitempty"`
}

// CurrentStatus returns the state's status, or NONE when no signal was processed yet.
func (s InstrumentStatus) CurrentStatus() Status {
	if s.State == nil {
		return StatusNone
	}
	return s.State.Status
}
