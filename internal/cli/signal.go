package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flipguard/internal/alerts"
	"flipguard/internal/engine"
	"flipguard/internal/models"
	"flipguard/internal/notify"
)

func newSignalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Process one alert locally",
		Long: `Process one alert against the local store, exactly as the webhook would.

Notifications are printed to the terminal. With --dispatch they are also
sent to the configured channels and downstream URLs are called.`,
		Example: `  flipguard signal --symbol NIFTY --signal ENTRY_LONG --price 19500 --timestamp 2023-10-27T10:00:00Z
  flipguard signal -s NIFTY -g EXIT_LONG -p 19550`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			alert := alerts.Alert{}
			alert.Symbol, _ = cmd.Flags().GetString("symbol")
			alert.Signal, _ = cmd.Flags().GetString("signal")
			alert.Price, _ = cmd.Flags().GetString("price")
			alert.Timestamp, _ = cmd.Flags().GetString("timestamp")
			if alert.Timestamp == "" {
				alert.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
			}
			send, _ := cmd.Flags().GetBool("dispatch")

			ds, err := app.Store()
			if err != nil {
				return err
			}

			var notifier notify.Notifier
			terminal := notify.NewTerminalNotifier(output.Writer(), output.ColorEnabled())
			if output.IsJSON() {
				notifier = notify.NewNoOpNotifier()
			} else {
				notifier = terminal
			}
			if send {
				multi := notify.NewMultiNotifier(&app.Config.Notifications, app.Logger)
				if !output.IsJSON() {
					multi.AddChannel(terminal)
				}
				notifier = multi
			}

			d := app.dispatcher(notifier, send && app.Config.Downstream.Enabled)
			processor := engine.NewProcessor(ds, ds, d, engine.WithLogger(app.Logger))
			res := processor.Process(contextOrBackground(cmd), alert)

			if output.IsJSON() {
				if err := output.JSON(res); err != nil {
					return err
				}
			} else {
				output.Result(res)
			}

			if res.Status == models.ResultError {
				return fmt.Errorf("%s", res.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "instrument symbol (required)")
	cmd.Flags().StringP("signal", "g", "", "signal, e.g. ENTRY_LONG, BUY, EXIT (required)")
	cmd.Flags().StringP("price", "p", "", "signal price")
	cmd.Flags().String("timestamp", "", "candle timestamp (default: now)")
	cmd.Flags().Bool("dispatch", false, "send notifications and call downstream URLs")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("signal")

	return cmd
}
