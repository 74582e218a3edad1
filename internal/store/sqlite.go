// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/moznion/go-optional"

	apperrors "flipguard/internal/errors"
	"flipguard/internal/models"
)

var instrumentColumns = []string{
	"id", "symbol", "timeframe", "active", "buy_url", "sell_url", "close_url", "created_at",
}

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Tracked instruments
	CREATE TABLE IF NOT EXISTS instruments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL UNIQUE,
		timeframe TEXT,
		active INTEGER DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- One position status row per symbol
	CREATE TABLE IF NOT EXISTS trade_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL UNIQUE,
		current_status TEXT DEFAULT 'NONE',
		last_action_time DATETIME,
		last_candle_timestamp TEXT,
		last_signal_price TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_instruments_symbol ON instruments(symbol);
	CREATE INDEX IF NOT EXISTS idx_trade_states_symbol ON trade_states(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrate adds the downstream URL columns to databases created before they existed.
func (s *SQLiteStore) migrate() error {
	rows, err := s.db.Query(`PRAGMA table_info(instruments)`)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range []string{"buy_url", "sell_url", "close_url"} {
		if existing[col] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE instruments ADD COLUMN %s TEXT", col)); err != nil {
			return fmt.Errorf("adding column %s: %w", col, err)
		}
		// Older databases kept the URLs in quantman_* columns.
		if legacy := "quantman_" + col; existing[legacy] {
			if _, err := s.db.Exec(fmt.Sprintf("UPDATE instruments SET %s = %s", col, legacy)); err != nil {
				return fmt.Errorf("copying column %s: %w", legacy, err)
			}
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the trade state for symbol, or None if no row exists.
func (s *SQLiteStore) Load(ctx context.Context, symbol string) (optional.Option[models.TradeState], error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, current_status, last_action_time, last_candle_timestamp, last_signal_price
		FROM trade_states WHERE symbol = ?
	`, symbol)

	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[models.TradeState](), nil
	}
	if err != nil {
		return optional.None[models.TradeState](), apperrors.NewStoreError("load", symbol, err)
	}
	return optional.Some(state), nil
}

// Create inserts the initial NONE state for symbol and returns the stored row.
// An existing row is returned unchanged.
func (s *SQLiteStore) Create(ctx context.Context, symbol string) (models.TradeState, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trade_states (symbol, current_status) VALUES (?, ?)
	`, symbol, models.StatusNone)
	if err != nil {
		return models.TradeState{}, apperrors.NewStoreError("create", symbol, err)
	}

	loaded, err := s.Load(ctx, symbol)
	if err != nil {
		return models.TradeState{}, err
	}
	state, err := loaded.Take()
	if err != nil {
		return models.TradeState{}, apperrors.NewStoreError("create", symbol, err)
	}
	return state, nil
}

// Save writes the full state in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, state models.TradeState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("save", state.Symbol, err)
	}
	defer tx.Rollback()

	var actionTime sql.NullTime
	if !state.LastActionTime.IsZero() {
		actionTime = sql.NullTime{Time: state.LastActionTime.UTC(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trade_states (symbol, current_status, last_action_time, last_candle_timestamp, last_signal_price)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			current_status = excluded.current_status,
			last_action_time = excluded.last_action_time,
			last_candle_timestamp = excluded.last_candle_timestamp,
			last_signal_price = excluded.last_signal_price
	`, state.Symbol, string(state.Status), actionTime, state.LastCandleTimestamp, state.LastSignalPrice)
	if err != nil {
		return apperrors.NewStoreError("save", state.Symbol, err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("save", state.Symbol, err)
	}
	return nil
}

// ListStates returns all trade states ordered by symbol.
func (s *SQLiteStore) ListStates(ctx context.Context) ([]models.TradeState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, current_status, last_action_time, last_candle_timestamp, last_signal_price
		FROM trade_states ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, apperrors.NewStoreError("list states", "", err)
	}
	defer rows.Close()

	var states []models.TradeState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("list states", "", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (models.TradeState, error) {
	var (
		state      models.TradeState
		status     sql.NullString
		actionTime sql.NullTime
		candle     sql.NullString
		price      sql.NullString
	)
	if err := row.Scan(&state.Symbol, &status, &actionTime, &candle, &price); err != nil {
		return models.TradeState{}, err
	}

	parsed, err := models.ParseStatus(status.String)
	if err != nil {
		return models.TradeState{}, err
	}
	state.Status = parsed
	if actionTime.Valid {
		state.LastActionTime = actionTime.Time
	}
	state.LastCandleTimestamp = candle.String
	state.LastSignalPrice = price.String
	return state, nil
}

// activeClause matches active rows. NULL active comes from rows inserted
// before the column had a default and counts as active, as in scanInstrument.
var activeClause = squirrel.Or{squirrel.Eq{"active": 1}, squirrel.Eq{"active": nil}}

// FindActive returns the instrument for symbol if it is registered and active.
func (s *SQLiteStore) FindActive(ctx context.Context, symbol string) (optional.Option[models.Instrument], error) {
	query, args, err := s.sq.Select(instrumentColumns...).
		From("instruments").
		Where(squirrel.Eq{"symbol": symbol}).
		Where(activeClause).
		ToSql()
	if err != nil {
		return optional.None[models.Instrument](), err
	}

	inst, err := scanInstrument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[models.Instrument](), nil
	}
	if err != nil {
		return optional.None[models.Instrument](), apperrors.NewStoreError("find instrument", symbol, err)
	}
	return optional.Some(inst), nil
}

// AddInstrument registers a new instrument. The assigned ID and creation
// time are written back into inst.
func (s *SQLiteStore) AddInstrument(ctx context.Context, inst *models.Instrument) error {
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	active := 0
	if inst.Active {
		active = 1
	}

	query, args, err := s.sq.Insert("instruments").
		Columns("symbol", "timeframe", "active", "buy_url", "sell_url", "close_url", "created_at").
		Values(inst.Symbol, inst.Timeframe, active, inst.BuyURL, inst.SellURL, inst.CloseURL, inst.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", apperrors.ErrInstrumentExists, inst.Symbol)
		}
		return apperrors.NewStoreError("add instrument", inst.Symbol, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		inst.ID = id
	}
	return nil
}

// GetInstrument returns the instrument for symbol regardless of its active flag.
func (s *SQLiteStore) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	query, args, err := s.sq.Select(instrumentColumns...).
		From("instruments").
		Where(squirrel.Eq{"symbol": symbol}).
		ToSql()
	if err != nil {
		return nil, err
	}

	inst, err := scanInstrument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInstrumentNotFound, symbol)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get instrument", symbol, err)
	}
	return &inst, nil
}

// UpdateInstrument applies update to the instrument and returns the result.
func (s *SQLiteStore) UpdateInstrument(ctx context.Context, symbol string, update models.InstrumentUpdate) (*models.Instrument, error) {
	current, err := s.GetInstrument(ctx, symbol)
	if err != nil {
		return nil, err
	}
	updated := update.Apply(*current)

	active := 0
	if updated.Active {
		active = 1
	}

	query, args, err := s.sq.Update("instruments").
		SetMap(map[string]interface{}{
			"timeframe": updated.Timeframe,
			"active":    active,
			"buy_url":   updated.BuyURL,
			"sell_url":  updated.SellURL,
			"close_url": updated.CloseURL,
		}).
		Where(squirrel.Eq{"symbol": symbol}).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, apperrors.NewStoreError("update instrument", symbol, err)
	}
	return &updated, nil
}

// DeleteInstrument removes the instrument and its trade state.
func (s *SQLiteStore) DeleteInstrument(ctx context.Context, symbol string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("delete instrument", symbol, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM instruments WHERE symbol = ?`, symbol)
	if err != nil {
		return apperrors.NewStoreError("delete instrument", symbol, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrInstrumentNotFound, symbol)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trade_states WHERE symbol = ?`, symbol); err != nil {
		return apperrors.NewStoreError("delete instrument", symbol, err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("delete instrument", symbol, err)
	}
	return nil
}

// ListInstruments returns instruments matching filter ordered by symbol.
func (s *SQLiteStore) ListInstruments(ctx context.Context, filter InstrumentFilter) ([]models.Instrument, error) {
	q := s.sq.Select(instrumentColumns...).From("instruments").OrderBy("symbol ASC")

	if filter.ActiveOnly {
		q = q.Where(activeClause)
	}
	if filter.Timeframe != "" {
		q = q.Where(squirrel.Eq{"timeframe": filter.Timeframe})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("list instruments", "", err)
	}
	defer rows.Close()

	var instruments []models.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("list instruments", "", err)
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

func scanInstrument(row rowScanner) (models.Instrument, error) {
	var (
		inst      models.Instrument
		timeframe sql.NullString
		active    sql.NullInt64
		buyURL    sql.NullString
		sellURL   sql.NullString
		closeURL  sql.NullString
		createdAt sql.NullTime
	)
	if err := row.Scan(&inst.ID, &inst.Symbol, &timeframe, &active, &buyURL, &sellURL, &closeURL, &createdAt); err != nil {
		return models.Instrument{}, err
	}

	inst.Timeframe = timeframe.String
	// NULL active comes from rows inserted before the column had a default.
	inst.Active = !active.Valid || active.Int64 == 1
	inst.BuyURL = strings.TrimSpace(buyURL.String)
	inst.SellURL = strings.TrimSpace(sellURL.String)
	inst.CloseURL = strings.TrimSpace(closeURL.String)
	if createdAt.Valid {
		inst.CreatedAt = createdAt.Time
	}
	return inst, nil
}
