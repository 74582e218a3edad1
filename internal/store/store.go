// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/moznion/go-optional"

	"flipguard/internal/models"
)

// StateStore persists one TradeState per symbol.
//
// Callers serialize Load/Create/Save for a given symbol; implementations
// only guarantee that each call is atomic on its own.
type StateStore interface {
	Load(ctx context.Context, symbol string) (optional.Option[models.TradeState], error)
	Create(ctx context.Context, symbol string) (models.TradeState, error)
	Save(ctx context.Context, state models.TradeState) error
}

// InstrumentLookup resolves a symbol to an active tracked instrument.
type InstrumentLookup interface {
	FindActive(ctx context.Context, symbol string) (optional.Option[models.Instrument], error)
}

// InstrumentStore manages the instrument registry.
type InstrumentStore interface {
	InstrumentLookup
	AddInstrument(ctx context.Context, inst *models.Instrument) error
	GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error)
	UpdateInstrument(ctx context.Context, symbol string, update models.InstrumentUpdate) (*models.Instrument, error)
	DeleteInstrument(ctx context.Context, symbol string) error
	ListInstruments(ctx context.Context, filter InstrumentFilter) ([]models.Instrument, error)
}

// DataStore is the full persistence surface used by the service.
type DataStore interface {
	StateStore
	InstrumentStore
	ListStates(ctx context.Context) ([]models.TradeState, error)
	Close() error
}

// InstrumentFilter represents filters for listing instruments.
type InstrumentFilter struct {
	ActiveOnly bool
	Timeframe  string
	Limit      int
}

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Open opens the data store for the configured driver.
func Open(driver, path string) (DataStore, error) {
	switch driver {
	case DriverBolt:
		return NewBoltStore(path)
	case DriverSQLite, "":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

// StatusListing joins instruments with their trade states.
func StatusListing(ctx context.Context, ds DataStore) ([]models.InstrumentStatus, error) {
	instruments, err := ds.ListInstruments(ctx, InstrumentFilter{})
	if err != nil {
		return nil, err
	}
	states, err := ds.ListStates(ctx)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]models.TradeState, len(states))
	for _, s := range states {
		bySymbol[s.Symbol] = s
	}

	out := make([]models.InstrumentStatus, 0, len(instruments))
	for _, inst := range instruments {
		row := models.InstrumentStatus{Instrument: inst}
		if s, ok := bySymbol[inst.Symbol]; ok {
			s := s
			row.State = &s
		}
		out = append(out, row)
	}
	return out, nil
}
