// Package alerts turns raw TradingView style alerts into normalized signals.
package alerts

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "flipguard/internal/errors"
	"flipguard/internal/models"
)

// Alert is the inbound alert body.
type Alert struct {
	Symbol    string `json:"symbol" validate:"required"`
	Signal    string `json:"signal" validate:"required"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp" validate:"required"`
}

// Alert field keys in a raw key/value payload.
const (
	KeySymbol    = "symbol"
	KeySignal    = "signal"
	KeyPrice     = "price"
	KeyTimestamp = "timestamp"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Normalize parses a raw key/value alert into a Signal.
func Normalize(raw map[string]string) (models.Signal, error) {
	return NormalizeAlert(Alert{
		Symbol:    raw[KeySymbol],
		Signal:    raw[KeySignal],
		Price:     raw[KeyPrice],
		Timestamp: raw[KeyTimestamp],
	})
}

// NormalizeAlert validates a typed alert and maps it to a Signal.
// Missing symbol, signal or timestamp fail with a *errors.ValidationError,
// an unrecognized signal token with a *errors.UnknownSignalKindError.
func NormalizeAlert(a Alert) (models.Signal, error) {
	a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
	a.Signal = strings.TrimSpace(a.Signal)
	a.Price = strings.TrimSpace(a.Price)
	a.Timestamp = strings.TrimSpace(a.Timestamp)

	if err := getValidator().Struct(a); err != nil {
		return models.Signal{}, toValidationError(err)
	}

	kind, err := ParseKind(a.Signal)
	if err != nil {
		return models.Signal{}, err
	}

	price := a.Price
	if price == "" {
		price = models.UnknownPrice
	}

	return models.Signal{
		Symbol:          a.Symbol,
		Kind:            kind,
		Price:           price,
		CandleTimestamp: a.Timestamp,
		RawKind:         a.Signal,
	}, nil
}

func toValidationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewValidationError(fe.Field(), fe.Value(), "missing required field")
	}
	return apperrors.NewValidationError("alert", nil, err.Error())
}
