// Package server exposes the alert webhook and the instrument registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"flipguard/internal/config"
	"flipguard/internal/engine"
	"flipguard/internal/store"
)

// Server is the HTTP front end of the service.
type Server struct {
	cfg       config.ServerConfig
	processor *engine.Processor
	store     store.DataStore
	logger    zerolog.Logger
	validate  *validator.Validate
	now       func() time.Time
	router    *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock overrides the clock used for defaulted candle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server and registers its routes.
func New(cfg config.ServerConfig, processor *engine.Processor, ds store.DataStore, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		processor: processor,
		store:     ds,
		logger:    zerolog.Nop(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recoverMiddleware, s.requestIDMiddleware, s.accessLogMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	router.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/webhook/{symbol}/{action}", s.handleSimplifiedWebhook).Methods(http.MethodGet, http.MethodPost)

	router.HandleFunc("/instruments", s.handleListInstruments).Methods(http.MethodGet)
	router.HandleFunc("/instruments", s.handleAddInstrument).Methods(http.MethodPost)
	router.HandleFunc("/instruments/{symbol}", s.handleUpdateInstrument).Methods(http.MethodPut)
	router.HandleFunc("/instruments/{symbol}", s.handleDeleteInstrument).Methods(http.MethodDelete)

	router.HandleFunc("/states/{symbol}", s.handleGetState).Methods(http.MethodGet)

	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", listener.Addr().String()).Msg("Webhook server listening")
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down webhook server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}
