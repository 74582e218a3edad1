package engine

import (
	"testing"
	"time"

	apperrors "flipguard/internal/errors"
	"flipguard/internal/models"
)

var fixedNow = time.Date(2023, 10, 27, 10, 15, 2, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func signal(kind models.SignalKind, price, candle string) models.Signal {
	return models.Signal{Symbol: "NIFTY", Kind: kind, Price: price, CandleTimestamp: candle}
}

func TestApply_FirstEntry(t *testing.T) {
	e := NewTransitionEngine(fixedClock)

	tests := []struct {
		kind    models.SignalKind
		want    models.Status
		wantMsg string
	}{
		{models.SignalEntryLong, models.StatusLong, "Entered LONG"},
		{models.SignalEntryShort, models.StatusShort, "Entered SHORT"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			d := e.Apply(models.NewTradeState("NIFTY"), signal(tt.kind, "19500", "C1"))

			if d.Outcome != OutcomeEntered || !d.Changed {
				t.Fatalf("expected ENTERED with change, got %s changed=%v", d.Outcome, d.Changed)
			}
			if d.Result.Status != models.ResultSuccess || d.Result.Message != tt.wantMsg {
				t.Errorf("result = %+v, want success %q", d.Result, tt.wantMsg)
			}
			if d.State.Status != tt.want || d.State.LastCandleTimestamp != "C1" ||
				d.State.LastSignalPrice != "19500" || !d.State.LastActionTime.Equal(fixedNow) {
				t.Errorf("unexpected state %+v", d.State)
			}
			if d.Event == nil || d.Event.Kind != models.EventEntry || d.Event.Direction != tt.want {
				t.Errorf("expected one ENTRY event, got %+v", d.Event)
			}
		})
	}
}

func TestApply_RedundantEntry(t *testing.T) {
	e := NewTransitionEngine(fixedClock)
	state := models.NewTradeState("NIFTY")

	first := e.Apply(state, signal(models.SignalEntryLong, "19500", "C1"))
	second := e.Apply(first.State, signal(models.SignalEntryLong, "19510", "C2"))

	if second.Outcome != OutcomeRedundantEntry || second.Changed || second.Event != nil {
		t.Fatalf("second entry should be redundant, got %+v", second)
	}
	if second.Result.Status != models.ResultIgnored || second.Result.Message != "Already LONG." {
		t.Errorf("result = %+v", second.Result)
	}
	if second.State != first.State {
		t.Errorf("state changed on redundant entry: %+v -> %+v", first.State, second.State)
	}
	if !apperrors.Is(second.Reason, apperrors.ErrRedundantEntry) {
		t.Errorf("reason = %v", second.Reason)
	}
}

func TestApply_ExitWithoutPosition(t *testing.T) {
	e := NewTransitionEngine(fixedClock)
	state := models.NewTradeState("NIFTY")

	d := e.Apply(state, signal(models.SignalExit, "19500", "C1"))

	if d.Outcome != OutcomeNoOpenPosition || d.Changed || d.Event != nil {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.Result.Status != models.ResultIgnored || d.Result.Message != MsgNoOpenTrade {
		t.Errorf("result = %+v", d.Result)
	}
	if d.State != state {
		t.Errorf("state mutated: %+v", d.State)
	}
}

func TestApply_CloseCarriesPriorEntry(t *testing.T) {
	entryTime := time.Date(2023, 10, 27, 10, 0, 3, 0, time.UTC)
	state := models.TradeState{
		Symbol:              "NIFTY",
		Status:              models.StatusShort,
		LastActionTime:      entryTime,
		LastCandleTimestamp: "C1",
		LastSignalPrice:     "19500",
	}

	d := NewTransitionEngine(fixedClock).Apply(state, signal(models.SignalExit, "19450", "C2"))

	if d.Outcome != OutcomeClosed || d.Result.Message != MsgTradeClosed {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.State.Status != models.StatusNone || d.State.LastCandleTimestamp != "C2" || d.State.LastSignalPrice != "19450" {
		t.Errorf("unexpected state %+v", d.State)
	}
	ev := d.Event
	if ev == nil || ev.Kind != models.EventClose {
		t.Fatalf("expected CLOSE event, got %+v", ev)
	}
	if ev.Direction != models.StatusShort || ev.Price != "19450" || ev.CandleTimestamp != "C2" {
		t.Errorf("close event fields %+v", ev)
	}
	if !ev.PriorEntryTime.Equal(entryTime) || ev.PriorEntryPrice != "19500" {
		t.Errorf("prior entry not captured: %+v", ev)
	}
}

func TestApply_FullCycle(t *testing.T) {
	e := NewTransitionEngine(fixedClock)
	state := models.NewTradeState("NIFTY")

	steps := []struct {
		name       string
		sig        models.Signal
		wantStatus models.ResultStatus
		wantMsg    string
		wantState  models.Status
		wantEvent  models.EventKind
	}{
		{"entry long", signal(models.SignalEntryLong, "19500", "C1"), models.ResultSuccess, "Entered LONG", models.StatusLong, models.EventEntry},
		{"exit", signal(models.SignalExit, "19550", "C2"), models.ResultSuccess, "Trade Closed", models.StatusNone, models.EventClose},
		{"flip short", signal(models.SignalEntryShort, "19550", "C2"), models.ResultIgnored, MsgFlipSuppressed, models.StatusNone, models.EventFlipSuppressed},
		{"entry short", signal(models.SignalEntryShort, "19540", "C3"), models.ResultSuccess, "Entered SHORT", models.StatusShort, models.EventEntry},
	}

	for _, step := range steps {
		d := e.Apply(state, step.sig)
		if d.Result.Status != step.wantStatus || d.Result.Message != step.wantMsg {
			t.Fatalf("%s: result = %+v, want %s %q", step.name, d.Result, step.wantStatus, step.wantMsg)
		}
		if d.State.Status != step.wantState {
			t.Fatalf("%s: status = %s, want %s", step.name, d.State.Status, step.wantState)
		}
		if d.Event == nil || d.Event.Kind != step.wantEvent {
			t.Fatalf("%s: event = %+v, want %s", step.name, d.Event, step.wantEvent)
		}
		state = d.State
	}
}

func TestApply_DirectReversal(t *testing.T) {
	state := models.TradeState{
		Symbol:              "NIFTY",
		Status:              models.StatusLong,
		LastActionTime:      fixedNow.Add(-time.Hour),
		LastCandleTimestamp: "C1",
		LastSignalPrice:     "19500",
	}

	d := NewTransitionEngine(fixedClock).Apply(state, signal(models.SignalEntryShort, "19480", "C4"))

	if d.Outcome != OutcomeEntered || d.State.Status != models.StatusShort {
		t.Fatalf("expected reversal to SHORT, got %+v", d)
	}
	if d.Event == nil || d.Event.Kind != models.EventEntry || d.Event.Direction != models.StatusShort {
		t.Errorf("reversal must emit a single ENTRY event, got %+v", d.Event)
	}
}

func TestApply_SameCandleSecondEntrySuppressed(t *testing.T) {
	e := NewTransitionEngine(fixedClock)

	first := e.Apply(models.NewTradeState("NIFTY"), signal(models.SignalEntryLong, "19500", "C1"))
	second := e.Apply(first.State, signal(models.SignalEntryShort, "19490", "C1"))

	if second.Outcome != OutcomeFlipSuppressed || second.Changed {
		t.Fatalf("same-candle opposite entry should be suppressed, got %+v", second)
	}
	if second.State.Status != models.StatusLong {
		t.Errorf("status = %s, want LONG", second.State.Status)
	}
}
