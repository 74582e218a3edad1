package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"flipguard/internal/alerts"
	apperrors "flipguard/internal/errors"
	"flipguard/internal/logging"
	"flipguard/internal/models"
	"flipguard/internal/store"
)

// Dispatcher fans accepted events out to side effects. Implementations
// must not block for long and never report failures back.
type Dispatcher interface {
	Emit(ctx context.Context, inst models.Instrument, event models.TradeEvent)
}

// Processor runs one alert through normalization, lookup, transition,
// persistence and dispatch.
type Processor struct {
	instruments store.InstrumentLookup
	states      store.StateStore
	engine      *TransitionEngine
	dispatcher  Dispatcher
	locker      *SymbolLocker
	logger      zerolog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithEngine overrides the transition engine, mainly to inject a clock.
func WithEngine(e *TransitionEngine) ProcessorOption {
	return func(p *Processor) { p.engine = e }
}

// WithLogger sets the processor logger.
func WithLogger(logger zerolog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// NewProcessor wires a processor. A nil dispatcher disables side effects.
func NewProcessor(instruments store.InstrumentLookup, states store.StateStore, dispatcher Dispatcher, opts ...ProcessorOption) *Processor {
	p := &Processor{
		instruments: instruments,
		states:      states,
		engine:      NewTransitionEngine(nil),
		dispatcher:  dispatcher,
		locker:      NewSymbolLocker(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessRaw normalizes a raw key/value alert and processes it.
func (p *Processor) ProcessRaw(ctx context.Context, raw map[string]string) models.Result {
	sig, err := alerts.Normalize(raw)
	if err != nil {
		return p.rejected(ctx, err)
	}
	return p.ProcessSignal(ctx, sig)
}

// Process normalizes a typed alert and processes it.
func (p *Processor) Process(ctx context.Context, alert alerts.Alert) models.Result {
	sig, err := alerts.NormalizeAlert(alert)
	if err != nil {
		return p.rejected(ctx, err)
	}
	return p.ProcessSignal(ctx, sig)
}

// ProcessSignal applies an already normalized signal.
func (p *Processor) ProcessSignal(ctx context.Context, sig models.Signal) models.Result {
	logger := logging.WithSymbol(p.loggerFor(ctx), sig.Symbol)
	logging.LogSignal(logger, sig)

	found, err := p.instruments.FindActive(ctx, sig.Symbol)
	if err != nil {
		logger.Error().Err(err).Msg("Instrument lookup failed")
		return models.Failure("Failed to look up instrument", err)
	}
	inst, err := found.Take()
	if err != nil {
		logger.Info().Err(apperrors.ErrUntrackedInstrument).Msg("Signal ignored")
		return models.Ignored(fmt.Sprintf("Instrument %s is not tracked or inactive.", sig.Symbol))
	}

	decision, err := p.transition(ctx, sig)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to apply signal")
		return models.Failure("Failed to persist trade state", err)
	}
	logging.LogTransition(logger, string(decision.Outcome), decision.State.Status.String(), decision.Result.Message)

	// Dispatch runs after the symbol lock is released.
	if decision.Event != nil && p.dispatcher != nil {
		p.dispatcher.Emit(ctx, inst, *decision.Event)
	}

	return decision.Result
}

// transition holds the symbol lock across load, decide and save.
func (p *Processor) transition(ctx context.Context, sig models.Signal) (Decision, error) {
	unlock := p.locker.Lock(sig.Symbol)
	defer unlock()

	loaded, err := p.states.Load(ctx, sig.Symbol)
	if err != nil {
		return Decision{}, err
	}

	state, err := loaded.Take()
	if err != nil {
		state, err = p.states.Create(ctx, sig.Symbol)
		if err != nil {
			return Decision{}, err
		}
	}

	decision := p.engine.Apply(state, sig)
	if decision.Changed {
		if err := p.states.Save(ctx, decision.State); err != nil {
			return Decision{}, err
		}
	}
	return decision, nil
}

func (p *Processor) rejected(ctx context.Context, err error) models.Result {
	logger := p.loggerFor(ctx)

	var ve *apperrors.ValidationError
	if apperrors.As(err, &ve) {
		logger.Warn().Str("field", ve.Field).Msg("Alert rejected: missing required field")
		return models.Failure(fmt.Sprintf("Missing required field: %s", ve.Field), err)
	}

	var ue *apperrors.UnknownSignalKindError
	if apperrors.As(err, &ue) {
		logger.Warn().Str("signal", ue.Token).Msg("Alert rejected: unknown signal type")
		return models.Failure(fmt.Sprintf("Unknown Signal Type: %s", ue.Token), err)
	}

	logger.Warn().Err(err).Msg("Alert rejected")
	return models.Failure(err.Error(), err)
}

func (p *Processor) loggerFor(ctx context.Context) zerolog.Logger {
	if logger, ok := logging.LoggerFrom(ctx); ok {
		return logger
	}
	return p.logger
}
