// Package dispatch turns trade events into notifications and downstream calls.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flipguard/internal/logging"
	"flipguard/internal/models"
	"flipguard/internal/notify"
	"flipguard/internal/trigger"
)

const (
	DefaultNotifyTimeout  = 10 * time.Second
	DefaultTriggerTimeout = 5 * time.Second

	timeLayout = "2006-01-02 15:04:05"
)

// Dispatcher runs the side effects of an accepted event. Every failure is
// logged and swallowed.
type Dispatcher struct {
	notifier       notify.Notifier
	trigger        trigger.Trigger
	notifyTimeout  time.Duration
	triggerTimeout time.Duration
	logger         zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeouts sets the per-action deadlines. Zero keeps the default.
func WithTimeouts(notifyTimeout, triggerTimeout time.Duration) Option {
	return func(d *Dispatcher) {
		if notifyTimeout > 0 {
			d.notifyTimeout = notifyTimeout
		}
		if triggerTimeout > 0 {
			d.triggerTimeout = triggerTimeout
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a dispatcher. Nil collaborators are replaced by no-ops.
func New(n notify.Notifier, t trigger.Trigger, opts ...Option) *Dispatcher {
	if n == nil {
		n = notify.NewNoOpNotifier()
	}
	if t == nil {
		t = trigger.Disabled{}
	}

	d := &Dispatcher{
		notifier:       n,
		trigger:        t,
		notifyTimeout:  DefaultNotifyTimeout,
		triggerTimeout: DefaultTriggerTimeout,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit notifies about event and, for entries and closes, calls the
// instrument's matching downstream URL.
func (d *Dispatcher) Emit(ctx context.Context, inst models.Instrument, event models.TradeEvent) {
	logger := d.logger
	if l, ok := logging.LoggerFrom(ctx); ok {
		logger = l
	}
	logger = logging.WithSymbol(logger, event.Symbol)

	// Outbound calls must not be cut short by the inbound request going away.
	base := context.WithoutCancel(ctx)

	d.sendNotification(base, event, logger)

	if !event.Triggers() {
		return
	}
	url := inst.TriggerURL(event.Kind, event.Direction)
	if url == "" {
		return
	}
	d.invokeTrigger(base, url, event, logger)
}

func (d *Dispatcher) sendNotification(ctx context.Context, event models.TradeEvent, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, d.notifyTimeout)
	defer cancel()

	err := d.notifier.Send(ctx, Render(event))
	logging.LogDispatch(logger, "notification", event, err)
}

func (d *Dispatcher) invokeTrigger(ctx context.Context, url string, event models.TradeEvent, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, d.triggerTimeout)
	defer cancel()

	err := d.trigger.Invoke(ctx, url, PayloadFor(event))
	logging.LogDispatch(logger, "downstream", event, err)
}

// PayloadFor builds the downstream request body for event.
func PayloadFor(event models.TradeEvent) trigger.Payload {
	return trigger.Payload{
		Symbol:          event.Symbol,
		Action:          string(event.Kind),
		Direction:       event.Direction.String(),
		Price:           event.Price,
		CandleTimestamp: event.CandleTimestamp,
		ActionTime:      event.ActionTime.UTC().Format(time.RFC3339),
	}
}

// Render formats event as a notification.
func Render(event models.TradeEvent) notify.Notification {
	esc := notify.EscapeHTML
	var lines []string
	n := notify.Notification{
		Symbol:    event.Symbol,
		Timestamp: event.ActionTime,
		Data: map[string]interface{}{
			"kind":      string(event.Kind),
			"direction": event.Direction.String(),
			"price":     event.Price,
			"candle":    event.CandleTimestamp,
		},
	}

	switch event.Kind {
	case models.EventEntry:
		emoji := "🟢"
		if event.Direction == models.StatusShort {
			emoji = "🔴"
		}
		n.Type = notify.NotificationTrade
		n.Title = emoji + " NEW TRADE ENTRY"
		lines = []string{
			"Symbol: " + esc(event.Symbol),
			"Direction: " + event.Direction.String(),
			"Price: " + esc(event.Price),
			"Candle Time: " + esc(event.CandleTimestamp),
			"Time: " + event.ActionTime.UTC().Format(timeLayout),
		}

	case models.EventClose:
		n.Type = notify.NotificationTrade
		n.Title = "🔴 TRADE CLOSED"
		lines = []string{
			"Symbol: " + esc(event.Symbol),
			"Action: Closed " + event.Direction.String(),
			"Price: " + esc(event.Price),
			"Candle Time: " + esc(event.CandleTimestamp),
		}
		if !event.PriorEntryTime.IsZero() {
			lines = append(lines, "Entry Time: "+event.PriorEntryTime.UTC().Format(timeLayout))
		}
		if event.PriorEntryPrice != "" {
			lines = append(lines, "Entry Price: "+esc(event.PriorEntryPrice))
		}
		if move, ok := PointMove(event.Direction, event.PriorEntryPrice, event.Price); ok {
			lines = append(lines, "Points: "+move)
			n.Data["points"] = move
		}

	case models.EventFlipSuppressed:
		n.Type = notify.NotificationFlip
		n.Title = "⚠️ FLIP ENTRY DETECTED - NO TRADE"
		lines = []string{
			"Symbol: " + esc(event.Symbol),
			fmt.Sprintf("Reason: Signal on same candle as last action (%s).", esc(event.CandleTimestamp)),
			"Attempted: " + event.Direction.String(),
			"Action: IGNORED.",
		}

	default:
		n.Type = notify.NotificationInfo
		n.Title = string(event.Kind)
	}

	n.Message = strings.Join(lines, "\n")
	return n
}

// PointMove returns the signed move of a closed position in price points,
// positive when the trade was in profit. ok is false unless both prices
// are decimal numbers.
func PointMove(direction models.Status, entryPrice, closePrice string) (string, bool) {
	entry, err := decimal.NewFromString(strings.TrimSpace(entryPrice))
	if err != nil {
		return "", false
	}
	exit, err := decimal.NewFromString(strings.TrimSpace(closePrice))
	if err != nil {
		return "", false
	}

	var move decimal.Decimal
	switch direction {
	case models.StatusLong:
		move = exit.Sub(entry)
	case models.StatusShort:
		move = entry.Sub(exit)
	default:
		return "", false
	}

	s := move.String()
	if move.IsPositive() {
		s = "+" + s
	}
	return s, true
}
