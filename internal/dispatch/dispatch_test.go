package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"flipguard/internal/engine"
	"flipguard/internal/mocks"
	"flipguard/internal/models"
	"flipguard/internal/notify"
	"flipguard/internal/trigger"
)

var _ engine.Dispatcher = (*Dispatcher)(nil)

var actionTime = time.Date(2023, 10, 27, 10, 15, 2, 0, time.UTC)

func instrument() models.Instrument {
	return models.Instrument{
		Symbol:   "NIFTY",
		Active:   true,
		BuyURL:   "https://hooks.example.com/buy",
		SellURL:  "https://hooks.example.com/sell",
		CloseURL: "https://hooks.example.com/close",
	}
}

func TestEmit_RoutesTriggerURL(t *testing.T) {
	tests := []struct {
		name    string
		event   models.TradeEvent
		wantURL string
	}{
		{
			name:    "long entry uses buy url",
			event:   models.TradeEvent{Kind: models.EventEntry, Symbol: "NIFTY", Direction: models.StatusLong, ActionTime: actionTime},
			wantURL: "https://hooks.example.com/buy",
		},
		{
			name:    "short entry uses sell url",
			event:   models.TradeEvent{Kind: models.EventEntry, Symbol: "NIFTY", Direction: models.StatusShort, ActionTime: actionTime},
			wantURL: "https://hooks.example.com/sell",
		},
		{
			name:    "close uses close url",
			event:   models.TradeEvent{Kind: models.EventClose, Symbol: "NIFTY", Direction: models.StatusLong, ActionTime: actionTime},
			wantURL: "https://hooks.example.com/close",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			n := mocks.NewMockNotifier(ctrl)
			tr := mocks.NewMockTrigger(ctrl)

			n.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(1)
			tr.EXPECT().Invoke(gomock.Any(), tt.wantURL, gomock.Any()).
				DoAndReturn(func(ctx context.Context, url string, p trigger.Payload) error {
					assert.Equal(t, "NIFTY", p.Symbol)
					assert.Equal(t, string(tt.event.Kind), p.Action)
					_, ok := ctx.Deadline()
					assert.True(t, ok, "downstream call must carry a deadline")
					return nil
				}).Times(1)

			New(n, tr).Emit(context.Background(), instrument(), tt.event)
		})
	}
}

func TestEmit_FlipNeverTriggers(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	tr := mocks.NewMockTrigger(ctrl)

	n.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, notif notify.Notification) error {
			assert.Equal(t, notify.NotificationFlip, notif.Type)
			return nil
		})
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	New(n, tr).Emit(context.Background(), instrument(), models.TradeEvent{
		Kind:            models.EventFlipSuppressed,
		Symbol:          "NIFTY",
		Direction:       models.StatusShort,
		CandleTimestamp: "C2",
		ActionTime:      actionTime,
	})
}

func TestEmit_NoURLConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	tr := mocks.NewMockTrigger(ctrl)

	n.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	New(n, tr).Emit(context.Background(), models.Instrument{Symbol: "NIFTY", Active: true}, models.TradeEvent{
		Kind:      models.EventEntry,
		Symbol:    "NIFTY",
		Direction: models.StatusLong,
	})
}

func TestEmit_FailuresAreSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	tr := mocks.NewMockTrigger(ctrl)

	n.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("telegram down"))
	tr.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("timeout"))

	assert.NotPanics(t, func() {
		New(n, tr).Emit(context.Background(), instrument(), models.TradeEvent{
			Kind:      models.EventClose,
			Symbol:    "NIFTY",
			Direction: models.StatusShort,
		})
	})
}

func TestEmit_IgnoresCanceledInboundContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)

	n.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ notify.Notification) error {
			assert.NoError(t, ctx.Err())
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(n, nil, WithTimeouts(time.Second, time.Second)).Emit(ctx, instrument(), models.TradeEvent{
		Kind:      models.EventFlipSuppressed,
		Symbol:    "NIFTY",
		Direction: models.StatusLong,
	})
}

func TestRender(t *testing.T) {
	entry := Render(models.TradeEvent{
		Kind:            models.EventEntry,
		Symbol:          "NIFTY",
		Direction:       models.StatusLong,
		Price:           "19500",
		CandleTimestamp: "2023-10-27T10:00:00Z",
		ActionTime:      actionTime,
	})
	assert.Equal(t, notify.NotificationTrade, entry.Type)
	assert.Equal(t, "🟢 NEW TRADE ENTRY", entry.Title)
	assert.Equal(t, strings.Join([]string{
		"Symbol: NIFTY",
		"Direction: LONG",
		"Price: 19500",
		"Candle Time: 2023-10-27T10:00:00Z",
		"Time: 2023-10-27 10:15:02",
	}, "\n"), entry.Message)

	closed := Render(models.TradeEvent{
		Kind:            models.EventClose,
		Symbol:          "NIFTY",
		Direction:       models.StatusLong,
		Price:           "19550.5",
		CandleTimestamp: "C2",
		ActionTime:      actionTime,
		PriorEntryTime:  actionTime.Add(-time.Hour),
		PriorEntryPrice: "19500",
	})
	assert.Equal(t, "🔴 TRADE CLOSED", closed.Title)
	assert.Contains(t, closed.Message, "Action: Closed LONG")
	assert.Contains(t, closed.Message, "Entry Time: 2023-10-27 09:15:02")
	assert.Contains(t, closed.Message, "Entry Price: 19500")
	assert.Contains(t, closed.Message, "Points: +50.5")

	flip := Render(models.TradeEvent{
		Kind:            models.EventFlipSuppressed,
		Symbol:          "M&M",
		Direction:       models.StatusShort,
		CandleTimestamp: "C2",
	})
	assert.Equal(t, notify.NotificationFlip, flip.Type)
	assert.Contains(t, flip.Message, "Symbol: M&amp;M")
	assert.Contains(t, flip.Message, "Action: IGNORED.")
}

func TestPointMove(t *testing.T) {
	tests := []struct {
		direction models.Status
		entry     string
		exit      string
		want      string
		ok        bool
	}{
		{models.StatusLong, "19500", "19550", "+50", true},
		{models.StatusLong, "19500", "19450.25", "-49.75", true},
		{models.StatusShort, "19500", "19450", "+50", true},
		{models.StatusShort, "100", "100", "0", true},
		{models.StatusLong, "unknown", "19550", "", false},
		{models.StatusNone, "1", "2", "", false},
	}

	for _, tt := range tests {
		got, ok := PointMove(tt.direction, tt.entry, tt.exit)
		assert.Equal(t, tt.ok, ok, "%s %s->%s", tt.direction, tt.entry, tt.exit)
		assert.Equal(t, tt.want, got, "%s %s->%s", tt.direction, tt.entry, tt.exit)
	}
}
