package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipguard/internal/config"
	"flipguard/internal/engine"
	"flipguard/internal/models"
	"flipguard/internal/store"
)

var serverNow = time.Date(2023, 10, 27, 10, 15, 0, 0, time.UTC)

type eventLog struct {
	mu     sync.Mutex
	events []models.TradeEvent
}

func (l *eventLog) Emit(_ context.Context, _ models.Instrument, event models.TradeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func newTestServer(t *testing.T) (*Server, store.DataStore, *eventLog) {
	t.Helper()
	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "flipguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	require.NoError(t, ds.AddInstrument(context.Background(), &models.Instrument{Symbol: "NIFTY", Timeframe: "15m", Active: true}))

	events := &eventLog{}
	p := engine.NewProcessor(ds, ds, events)
	s := New(config.ServerConfig{}, p, ds, WithClock(func() time.Time { return serverNow }))
	return s, ds, events
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) messageBody {
	t.Helper()
	var body messageBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestWebhook_FullCycle(t *testing.T) {
	s, _, events := newTestServer(t)

	steps := []struct {
		body       string
		wantCode   int
		wantStatus string
		wantMsg    string
	}{
		{`{"symbol":"NIFTY","signal":"ENTRY_LONG","price":19500,"timestamp":"C1"}`, 200, "success", "Entered LONG"},
		{`{"symbol":"NIFTY","signal":"EXIT_LONG","price":"19550","timestamp":"C2"}`, 200, "success", "Trade Closed"},
		{`{"symbol":"NIFTY","signal":"ENTRY_SHORT","price":"19550","timestamp":"C2"}`, 200, "ignored", "Flip Entry Detected - Ignored"},
		{`{"symbol":"NIFTY","signal":"ENTRY_SHORT","price":"19540","timestamp":"C3"}`, 200, "success", "Entered SHORT"},
	}

	for _, step := range steps {
		rec := do(t, s, http.MethodPost, "/webhook", step.body)
		assert.Equal(t, step.wantCode, rec.Code, step.body)
		body := decodeResult(t, rec)
		assert.Equal(t, step.wantStatus, body.Status, step.body)
		assert.Equal(t, step.wantMsg, body.Message, step.body)
	}

	require.Len(t, events.events, 4)
	assert.Equal(t, "19500", events.events[0].Price, "numeric prices are kept as text")
}

func TestWebhook_Errors(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"empty body", "", http.StatusBadRequest, MsgNoPayload},
		{"empty object", "{}", http.StatusBadRequest, MsgNoPayload},
		{"not json", "symbol=NIFTY", http.StatusBadRequest, MsgNoPayload},
		{"missing timestamp", `{"symbol":"NIFTY","signal":"ENTRY_LONG"}`, http.StatusBadRequest, "Missing required field: timestamp"},
		{"unknown signal", `{"symbol":"NIFTY","signal":"HODL","timestamp":"C1"}`, http.StatusBadRequest, "Unknown Signal Type: HODL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/webhook", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			body := decodeResult(t, rec)
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestWebhook_UntrackedIsIgnored(t *testing.T) {
	s, ds, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/webhook", `{"symbol":"SENSEX","signal":"ENTRY_LONG","timestamp":"C1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeResult(t, rec).Status)

	loaded, err := ds.Load(context.Background(), "SENSEX")
	require.NoError(t, err)
	assert.True(t, loaded.IsNone())
}

func TestSimplifiedWebhook(t *testing.T) {
	s, ds, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/webhook/nifty/buy?price=19500", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Entered LONG", decodeResult(t, rec).Message)

	state, err := ds.Load(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, serverNow.Format(time.RFC3339Nano), state.Unwrap().LastCandleTimestamp)

	rec = do(t, s, http.MethodPost, "/webhook/NIFTY/close?price=19550&timestamp=C9", "")
	assert.Equal(t, "Trade Closed", decodeResult(t, rec).Message)

	rec = do(t, s, http.MethodPost, "/webhook/NIFTY/moon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action: moon", decodeResult(t, rec).Message)
}

func TestInstrumentRoutes(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/instruments", `{"symbol":"banknifty","timeframe":"5m","buy_url":"https://example.com/buy"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/instruments", `{"symbol":"BANKNIFTY","timeframe":"5m"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/instruments", `{"symbol":"FINNIFTY"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: timeframe", decodeResult(t, rec).Message)

	rec = do(t, s, http.MethodPost, "/instruments", `{"symbol":"FINNIFTY","timeframe":"1m","sell_url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/instruments/banknifty", `{"close_url":"https://example.com/close","active":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Instrument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "https://example.com/close", updated.CloseURL)
	assert.Equal(t, "https://example.com/buy", updated.BuyURL)
	assert.False(t, updated.Active)

	rec = do(t, s, http.MethodPut, "/instruments/SENSEX", `{"active":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/instruments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing []instrumentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing, 2)
	assert.Equal(t, "BANKNIFTY", listing[0].Symbol)
	assert.Equal(t, models.StatusNone, listing[0].Status)

	rec = do(t, s, http.MethodDelete, "/instruments/BANKNIFTY", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodDelete, "/instruments/BANKNIFTY", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetState(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/states/NIFTY", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, s, http.MethodPost, "/webhook", `{"symbol":"NIFTY","signal":"BUY","price":"19500","timestamp":"C1"}`)

	rec = do(t, s, http.MethodGet, "/states/nifty", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state models.TradeState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, models.StatusLong, state.Status)
	assert.Equal(t, "C1", state.LastCandleTimestamp)
}

func TestServe_GracefulShutdown(t *testing.T) {
	s, _, _ := newTestServer(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get("http://" + listener.Addr().String() + "/health")
	assert.Error(t, err)
}
