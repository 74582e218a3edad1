package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	bolt "go.etcd.io/bbolt"

	apperrors "flipguard/internal/errors"
	"flipguard/internal/models"
)

var (
	instrumentsBucket = []byte("instruments")
	statesBucket      = []byte("trade_states")
)

// BoltStore implements DataStore on an embedded bbolt file.
// Records are JSON encoded and keyed by symbol.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{instrumentsBucket, statesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load returns the trade state for symbol, or None if no record exists.
func (s *BoltStore) Load(ctx context.Context, symbol string) (optional.Option[models.TradeState], error) {
	var (
		state models.TradeState
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(statesBucket).Get([]byte(symbol))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return optional.None[models.TradeState](), apperrors.NewStoreError("load", symbol, err)
	}
	if !found {
		return optional.None[models.TradeState](), nil
	}
	return optional.Some(state), nil
}

// Create stores the initial NONE state unless a record already exists,
// and returns the stored record.
func (s *BoltStore) Create(ctx context.Context, symbol string) (models.TradeState, error) {
	state := models.NewTradeState(symbol)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(statesBucket)
		if existing := b.Get([]byte(symbol)); existing != nil {
			return json.Unmarshal(existing, &state)
		}
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return b.Put([]byte(symbol), data)
	})
	if err != nil {
		return models.TradeState{}, apperrors.NewStoreError("create", symbol, err)
	}
	return state, nil
}

// Save writes the full state in one bolt transaction.
func (s *BoltStore) Save(ctx context.Context, state models.TradeState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return apperrors.NewStoreError("save", state.Symbol, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(statesBucket).Put([]byte(state.Symbol), data)
	})
	if err != nil {
		return apperrors.NewStoreError("save", state.Symbol, err)
	}
	return nil
}

// ListStates returns all trade states ordered by symbol.
func (s *BoltStore) ListStates(ctx context.Context) ([]models.TradeState, error) {
	var states []models.TradeState
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(statesBucket).ForEach(func(k, v []byte) error {
			var state models.TradeState
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			states = append(states, state)
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.NewStoreError("list states", "", err)
	}
	return states, nil
}

// FindActive returns the instrument for symbol if it is registered and active.
func (s *BoltStore) FindActive(ctx context.Context, symbol string) (optional.Option[models.Instrument], error) {
	inst, found, err := s.getInstrument(symbol)
	if err != nil {
		return optional.None[models.Instrument](), apperrors.NewStoreError("find instrument", symbol, err)
	}
	if !found || !inst.Active {
		return optional.None[models.Instrument](), nil
	}
	return optional.Some(inst), nil
}

func (s *BoltStore) getInstrument(symbol string) (models.Instrument, bool, error) {
	var (
		inst  models.Instrument
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(instrumentsBucket).Get([]byte(symbol))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &inst)
	})
	return inst, found, err
}

// AddInstrument registers a new instrument, assigning ID and creation time.
func (s *BoltStore) AddInstrument(ctx context.Context, inst *models.Instrument) error {
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(instrumentsBucket)
		if b.Get([]byte(inst.Symbol)) != nil {
			return fmt.Errorf("%w: %s", apperrors.ErrInstrumentExists, inst.Symbol)
		}

		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		inst.ID = int64(id)

		data, err := json.Marshal(inst)
		if err != nil {
			return err
		}
		return b.Put([]byte(inst.Symbol), data)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInstrumentExists) {
			return err
		}
		return apperrors.NewStoreError("add instrument", inst.Symbol, err)
	}
	return nil
}

// GetInstrument returns the instrument for symbol regardless of its active flag.
func (s *BoltStore) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	inst, found, err := s.getInstrument(symbol)
	if err != nil {
		return nil, apperrors.NewStoreError("get instrument", symbol, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInstrumentNotFound, symbol)
	}
	return &inst, nil
}

// UpdateInstrument applies update to the instrument and returns the result.
func (s *BoltStore) UpdateInstrument(ctx context.Context, symbol string, update models.InstrumentUpdate) (*models.Instrument, error) {
	var updated models.Instrument
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(instrumentsBucket)
		data := b.Get([]byte(symbol))
		if data == nil {
			return fmt.Errorf("%w: %s", apperrors.ErrInstrumentNotFound, symbol)
		}

		var current models.Instrument
		if err := json.Unmarshal(data, &current); err != nil {
			return err
		}
		updated = update.Apply(current)

		out, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		return b.Put([]byte(symbol), out)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
			return nil, err
		}
		return nil, apperrors.NewStoreError("update instrument", symbol, err)
	}
	return &updated, nil
}

// DeleteInstrument removes the instrument and its trade state.
func (s *BoltStore) DeleteInstrument(ctx context.Context, symbol string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(instrumentsBucket)
		if b.Get([]byte(symbol)) == nil {
			return fmt.Errorf("%w: %s", apperrors.ErrInstrumentNotFound, symbol)
		}
		if err := b.Delete([]byte(symbol)); err != nil {
			return err
		}
		return tx.Bucket(statesBucket).Delete([]byte(symbol))
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
			return err
		}
		return apperrors.NewStoreError("delete instrument", symbol, err)
	}
	return nil
}

// ListInstruments returns instruments matching filter in key (symbol) order.
func (s *BoltStore) ListInstruments(ctx context.Context, filter InstrumentFilter) ([]models.Instrument, error) {
	var instruments []models.Instrument
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(instrumentsBucket).ForEach(func(k, v []byte) error {
			var inst models.Instrument
			if err := json.Unmarshal(v, &inst); err != nil {
				return err
			}
			if filter.ActiveOnly && !inst.Active {
				return nil
			}
			if filter.Timeframe != "" && inst.Timeframe != filter.Timeframe {
				return nil
			}
			instruments = append(instruments, inst)
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.NewStoreError("list instruments", "", err)
	}

	if filter.Limit > 0 && len(instruments) > filter.Limit {
		instruments = instruments[:filter.Limit]
	}
	return instruments, nil
}
