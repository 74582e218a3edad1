package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flipguard/internal/dispatch"
	"flipguard/internal/engine"
	"flipguard/internal/logging"
	"flipguard/internal/notify"
	"flipguard/internal/server"
	"flipguard/internal/trigger"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long: `Run the HTTP server that receives alerts.

Routes:
  GET  /health                       liveness probe
  POST /webhook                      JSON alert {symbol, signal, price, timestamp}
  GET  /webhook/{symbol}/{action}    action is buy, sell or close
  GET  /instruments                  instruments with their current status
  POST /instruments                  register an instrument`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				app.Config.Server.Addr = addr
			}
			if err := app.Config.Validate(); err != nil {
				return err
			}

			ds, err := app.Store()
			if err != nil {
				return err
			}

			logger := logging.WithOperation(app.Logger, "serve")
			notifier := notify.New(&app.Config.Notifications, logger)
			processor := engine.NewProcessor(ds, ds, app.dispatcher(notifier, app.Config.Downstream.Enabled), engine.WithLogger(logger))
			srv := server.New(app.Config.Server, processor, ds, server.WithLogger(logger))

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().
				Str("addr", app.Config.Server.Addr).
				Bool("telegram", app.Config.TelegramReady()).
				Bool("downstream", app.Config.Downstream.Enabled).
				Msg("Starting flipguard")
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

// dispatcher wires the notifier with the downstream trigger, or with a
// disabled trigger when downstream is false.
func (a *App) dispatcher(n notify.Notifier, downstream bool) *dispatch.Dispatcher {
	var t trigger.Trigger = trigger.Disabled{}
	if downstream {
		t = trigger.NewHTTPTrigger(a.Config.Downstream.Timeout,
			trigger.WithLogger(a.Logger),
			trigger.WithUserAgent(a.Config.Downstream.UserAgent),
		)
	}
	return dispatch.New(n, t,
		dispatch.WithTimeouts(a.Config.Notifications.Timeout, a.Config.Downstream.Timeout),
		dispatch.WithLogger(a.Logger),
	)
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
