// Package trigger calls the per-instrument downstream URLs.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"flipguard/internal/logging"
)

// DefaultTimeout bounds a downstream call when none is configured.
const DefaultTimeout = 5 * time.Second

// Payload is the JSON body sent to a downstream URL.
type Payload struct {
	Symbol          string `json:"symbol"`
	Action          string `json:"action"`
	Direction       string `json:"direction"`
	Price           string `json:"price"`
	CandleTimestamp string `json:"timestamp"`
	ActionTime      string `json:"action_time"`
}

// Trigger invokes a downstream URL.
type Trigger interface {
	Invoke(ctx context.Context, url string, payload Payload) error
}

// HTTPTrigger posts the payload to the URL once, without retries.
type HTTPTrigger struct {
	client *resty.Client
	logger zerolog.Logger
}

// Option configures an HTTPTrigger.
type Option func(*HTTPTrigger)

// WithLogger sets the trigger logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *HTTPTrigger) { t.logger = logger }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTrigger) {
		if ua != "" {
			t.client.SetHeader("User-Agent", ua)
		}
	}
}

// NewHTTPTrigger creates a trigger with the given timeout.
func NewHTTPTrigger(timeout time.Duration, opts ...Option) *HTTPTrigger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "flipguard/1.0")

	t := &HTTPTrigger{client: client, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Invoke posts payload to url.
func (t *HTTPTrigger) Invoke(ctx context.Context, url string, payload Payload) error {
	start := time.Now()

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("downstream returned status %d", resp.StatusCode())
	}

	logging.LogAPICall(t.logger, "POST", url, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("invoking %s: %w", url, err)
	}
	return nil
}

// Disabled is a Trigger that never calls out.
type Disabled struct{}

// Invoke does nothing.
func (Disabled) Invoke(context.Context, string, Payload) error {
	return nil
}
