package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"flipguard/internal/alerts"
	apperrors "flipguard/internal/errors"
	"flipguard/internal/logging"
	"flipguard/internal/models"
	"flipguard/internal/store"
)

// MsgNoPayload is returned for an empty or unreadable webhook body.
const MsgNoPayload = "No payload received"

type messageBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorBody(message string) messageBody {
	return messageBody{Status: string(models.ResultError), Message: message}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// resultStatus maps a processing result to an HTTP status. Only malformed
// input and storage failures are errors; ignored outcomes are 200.
func resultStatus(res models.Result) int {
	if res.Status != models.ResultError {
		return http.StatusOK
	}
	if apperrors.Is(res.Err, apperrors.ErrInputValidation) || apperrors.Is(res.Err, apperrors.ErrUnknownSignalKind) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeAlert(r)
	if err != nil || len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody(MsgNoPayload))
		return
	}

	res := s.processor.ProcessRaw(r.Context(), raw)
	writeJSON(w, resultStatus(res), res)
}

// decodeAlert reads a JSON object and renders every scalar as text, so
// numeric prices from charting tools are accepted as-is.
func decodeAlert(r *http.Request) (map[string]string, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}

	raw := make(map[string]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
		case string:
			raw[k] = val
		case json.Number:
			raw[k] = val.String()
		default:
			raw[k] = fmt.Sprint(val)
		}
	}
	return raw, nil
}

func (s *Server) handleSimplifiedWebhook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action := strings.ToLower(vars["action"])

	kind, ok := alerts.ActionKind(action)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("Invalid action: %s", action)))
		return
	}

	query := r.URL.Query()
	timestamp := query.Get("timestamp")
	if timestamp == "" {
		timestamp = s.now().UTC().Format(time.RFC3339Nano)
	}

	res := s.processor.ProcessRaw(r.Context(), map[string]string{
		alerts.KeySymbol:    vars["symbol"],
		alerts.KeySignal:    kind.String(),
		alerts.KeyPrice:     query.Get("price"),
		alerts.KeyTimestamp: timestamp,
	})
	writeJSON(w, resultStatus(res), res)
}

// instrumentView is one row of the instrument listing.
type instrumentView struct {
	models.Instrument
	Status     models.Status `json:"status"`
	LastUpdate *time.Time    `json:"last_update,omitempty"`
	LastCandle string        `json:"last_candle,omitempty"`
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	listing, err := store.StatusListing(r.Context(), s.store)
	if err != nil {
		s.storeFailure(w, r, err)
		return
	}

	views := make([]instrumentView, 0, len(listing))
	for _, item := range listing {
		view := instrumentView{Instrument: item.Instrument, Status: item.CurrentStatus()}
		if item.State != nil && !item.State.LastActionTime.IsZero() {
			t := item.State.LastActionTime
			view.LastUpdate = &t
			view.LastCandle = item.State.LastCandleTimestamp
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

type addInstrumentRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	Timeframe string `json:"timeframe" validate:"required"`
	Active    *bool  `json:"active"`
	BuyURL    string `json:"buy_url" validate:"omitempty,url"`
	SellURL   string `json:"sell_url" validate:"omitempty,url"`
	CloseURL  string `json:"close_url" validate:"omitempty,url"`
}

func (s *Server) handleAddInstrument(w http.ResponseWriter, r *http.Request) {
	var req addInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON body"))
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Timeframe = strings.TrimSpace(req.Timeframe)

	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return
	}

	inst := &models.Instrument{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Active:    req.Active == nil || *req.Active,
		BuyURL:    req.BuyURL,
		SellURL:   req.SellURL,
		CloseURL:  req.CloseURL,
	}
	if err := s.store.AddInstrument(r.Context(), inst); err != nil {
		if apperrors.Is(err, apperrors.ErrInstrumentExists) {
			writeJSON(w, http.StatusConflict, errorBody(fmt.Sprintf("Instrument %s already exists.", inst.Symbol)))
			return
		}
		s.storeFailure(w, r, err)
		return
	}

	logger := logging.FromContext(r.Context())
	logger.Info().Str("symbol", inst.Symbol).Msg("Instrument added")
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleUpdateInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	var update models.InstrumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON body"))
		return
	}
	if err := s.validate.Struct(update); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return
	}

	inst, err := s.store.UpdateInstrument(r.Context(), symbol, update)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody(fmt.Sprintf("Instrument %s not found.", symbol)))
			return
		}
		s.storeFailure(w, r, err)
		return
	}

	logger := logging.FromContext(r.Context())
	logger.Info().Str("symbol", symbol).Msg("Instrument updated")
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleDeleteInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	if err := s.store.DeleteInstrument(r.Context(), symbol); err != nil {
		if apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody(fmt.Sprintf("Instrument %s not found.", symbol)))
			return
		}
		s.storeFailure(w, r, err)
		return
	}

	logger := logging.FromContext(r.Context())
	logger.Info().Str("symbol", symbol).Msg("Instrument deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	loaded, err := s.store.Load(r.Context(), symbol)
	if err != nil {
		s.storeFailure(w, r, err)
		return
	}
	state, err := loaded.Take()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody(fmt.Sprintf("No trade state for %s.", symbol)))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())
	logger.Error().Err(err).Msg("Store operation failed")
	writeJSON(w, http.StatusInternalServerError, errorBody("Storage error"))
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return fmt.Sprintf("Missing required field: %s", strings.ToLower(fe.Field()))
	}
	return fmt.Sprintf("Invalid value for %s", strings.ToLower(fe.Field()))
}
