// Package engine implements the per-symbol position state machine and the
// processing pipeline around it.
package engine

import (
	"fmt"
	"time"

	apperrors "flipguard/internal/errors"
	"flipguard/internal/models"
)

// Outcome names what a transition decided.
type Outcome string

const (
	OutcomeEntered        Outcome = "ENTERED"
	OutcomeClosed         Outcome = "CLOSED"
	OutcomeFlipSuppressed Outcome = "FLIP_SUPPRESSED"
	OutcomeRedundantEntry Outcome = "REDUNDANT_ENTRY"
	OutcomeNoOpenPosition Outcome = "NO_OPEN_POSITION"
)

// Result messages reported to the alert source.
const (
	MsgTradeClosed    = "Trade Closed"
	MsgNoOpenTrade    = "No open trade to close."
	MsgFlipSuppressed = "Flip Entry Detected - Ignored"
)

// Decision is the output of applying one signal to one state.
type Decision struct {
	Outcome Outcome
	Result  models.Result
	// State is the state to persist. Equal to the input when Changed is false.
	State   models.TradeState
	Changed bool
	Event   *models.TradeEvent
	// Reason is set for ignored outcomes.
	Reason error
}

// TransitionEngine applies signals to trade states.
// It holds no state and performs no I/O.
type TransitionEngine struct {
	now func() time.Time
}

// NewTransitionEngine creates an engine using clock for action times.
// A nil clock uses time.Now in UTC.
func NewTransitionEngine(clock func() time.Time) *TransitionEngine {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TransitionEngine{now: clock}
}

// Apply decides how sig changes state.
func (e *TransitionEngine) Apply(state models.TradeState, sig models.Signal) Decision {
	if sig.Kind.IsEntry() {
		return e.applyEntry(state, sig)
	}
	return e.applyExit(state, sig)
}

func (e *TransitionEngine) applyExit(state models.TradeState, sig models.Signal) Decision {
	if !state.Status.IsOpen() {
		return Decision{
			Outcome: OutcomeNoOpenPosition,
			Result:  models.Ignored(MsgNoOpenTrade),
			State:   state,
			Reason:  apperrors.ErrNoOpenPosition,
		}
	}

	prior := state
	now := e.now()

	next := state
	next.Status = models.StatusNone
	next.LastActionTime = now
	next.LastCandleTimestamp = sig.CandleTimestamp
	next.LastSignalPrice = sig.Price

	event := &models.TradeEvent{
		Kind:            models.EventClose,
		Symbol:          state.Symbol,
		Direction:       prior.Status,
		Price:           sig.Price,
		CandleTimestamp: sig.CandleTimestamp,
		ActionTime:      now,
		PriorEntryTime:  prior.LastActionTime,
		PriorEntryPrice: prior.LastSignalPrice,
	}

	result := models.Success(MsgTradeClosed)
	result.Event = event
	return Decision{
		Outcome: OutcomeClosed,
		Result:  result,
		State:   next,
		Changed: true,
		Event:   event,
	}
}

func (e *TransitionEngine) applyEntry(state models.TradeState, sig models.Signal) Decision {
	target := sig.Kind.Direction()

	// The candle of the last recorded action, entry or exit, may not open
	// another position.
	if sig.CandleTimestamp == state.LastCandleTimestamp {
		event := &models.TradeEvent{
			Kind:            models.EventFlipSuppressed,
			Symbol:          state.Symbol,
			Direction:       target,
			Price:           sig.Price,
			CandleTimestamp: sig.CandleTimestamp,
			ActionTime:      e.now(),
		}
		result := models.Ignored(MsgFlipSuppressed)
		result.Event = event
		return Decision{
			Outcome: OutcomeFlipSuppressed,
			Result:  result,
			State:   state,
			Event:   event,
			Reason:  apperrors.ErrFlipSuppressed,
		}
	}

	if state.Status == target {
		return Decision{
			Outcome: OutcomeRedundantEntry,
			Result:  models.Ignored(fmt.Sprintf("Already %s.", target)),
			State:   state,
			Reason:  apperrors.ErrRedundantEntry,
		}
	}

	now := e.now()
	next := state
	next.Status = target
	next.LastActionTime = now
	next.LastCandleTimestamp = sig.CandleTimestamp
	next.LastSignalPrice = sig.Price

	event := &models.TradeEvent{
		Kind:            models.EventEntry,
		Symbol:          state.Symbol,
		Direction:       target,
		Price:           sig.Price,
		CandleTimestamp: sig.CandleTimestamp,
		ActionTime:      now,
	}

	result := models.Success(fmt.Sprintf("Entered %s", target))
	result.Event = event
	return Decision{
		Outcome: OutcomeEntered,
		Result:  result,
		State:   next,
		Changed: true,
		Event:   event,
	}
}
