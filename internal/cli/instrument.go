package cli

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"flipguard/internal/models"
	"flipguard/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func newInstrumentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instrument",
		Aliases: []string{"instruments", "inst"},
		Short:   "Manage tracked instruments",
		Long: `Manage the instruments whose alerts are processed.

Alerts for symbols that are not registered, or registered but inactive,
are acknowledged and ignored.`,
	}

	cmd.AddCommand(newInstrumentAddCmd(app))
	cmd.AddCommand(newInstrumentListCmd(app))
	cmd.AddCommand(newInstrumentEditCmd(app))
	cmd.AddCommand(newInstrumentDeleteCmd(app))
	cmd.AddCommand(newInstrumentToggleCmd(app, "enable", true))
	cmd.AddCommand(newInstrumentToggleCmd(app, "disable", false))

	return cmd
}

type instrumentInput struct {
	Symbol    string `validate:"required"`
	Timeframe string `validate:"required"`
	BuyURL    string `validate:"omitempty,url"`
	SellURL   string `validate:"omitempty,url"`
	CloseURL  string `validate:"omitempty,url"`
}

func newInstrumentAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <symbol>",
		Short: "Register an instrument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			input := instrumentInput{Symbol: normalizeSymbol(args[0])}
			input.Timeframe, _ = cmd.Flags().GetString("timeframe")
			input.BuyURL, _ = cmd.Flags().GetString("buy-url")
			input.SellURL, _ = cmd.Flags().GetString("sell-url")
			input.CloseURL, _ = cmd.Flags().GetString("close-url")
			inactive, _ := cmd.Flags().GetBool("inactive")

			if err := validate.Struct(input); err != nil {
				return fmt.Errorf("invalid instrument: %w", err)
			}

			ds, err := app.Store()
			if err != nil {
				return err
			}

			inst := &models.Instrument{
				Symbol:    input.Symbol,
				Timeframe: input.Timeframe,
				Active:    !inactive,
				BuyURL:    input.BuyURL,
				SellURL:   input.SellURL,
				CloseURL:  input.CloseURL,
			}
			if err := ds.AddInstrument(contextOrBackground(cmd), inst); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(inst)
			}
			output.Success("Instrument %s added (%s)", inst.Symbol, inst.Timeframe)
			return nil
		},
	}

	cmd.Flags().StringP("timeframe", "t", "", "chart timeframe, e.g. 15m (required)")
	cmd.Flags().String("buy-url", "", "downstream URL called on a long entry")
	cmd.Flags().String("sell-url", "", "downstream URL called on a short entry")
	cmd.Flags().String("close-url", "", "downstream URL called on a close")
	cmd.Flags().Bool("inactive", false, "register without processing alerts")
	_ = cmd.MarkFlagRequired("timeframe")

	return cmd
}

func newInstrumentListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List instruments with their current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ds, err := app.Store()
			if err != nil {
				return err
			}

			listing, err := store.StatusListing(contextOrBackground(cmd), ds)
			if err != nil {
				return err
			}

			activeOnly, _ := cmd.Flags().GetBool("active")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			filtered := listing[:0]
			for _, item := range listing {
				if activeOnly && !item.Instrument.Active {
					continue
				}
				if timeframe != "" && item.Instrument.Timeframe != timeframe {
					continue
				}
				filtered = append(filtered, item)
			}

			if output.IsJSON() {
				return output.JSON(filtered)
			}
			if len(filtered) == 0 {
				output.Info("No instruments registered")
				return nil
			}

			table := NewTable(output, "SYMBOL", "TF", "ACTIVE", "STATUS", "LAST CANDLE", "TRIGGERS")
			for _, item := range filtered {
				lastCandle := "-"
				if item.State != nil && item.State.LastCandleTimestamp != "" {
					lastCandle = item.State.LastCandleTimestamp
				}
				table.AddRow(
					item.Instrument.Symbol,
					item.Instrument.Timeframe,
					yesNo(item.Instrument.Active),
					output.Status(item.CurrentStatus()),
					lastCandle,
					triggerSummary(item.Instrument),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Bool("active", false, "only active instruments")
	cmd.Flags().StringP("timeframe", "t", "", "only instruments on this timeframe")
	return cmd
}

func newInstrumentEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <symbol>",
		Short: "Change an instrument's timeframe or trigger URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := normalizeSymbol(args[0])

			var update models.InstrumentUpdate
			flags := cmd.Flags()
			if flags.Changed("timeframe") {
				v, _ := flags.GetString("timeframe")
				update.Timeframe = &v
			}
			if flags.Changed("buy-url") {
				v, _ := flags.GetString("buy-url")
				update.BuyURL = &v
			}
			if flags.Changed("sell-url") {
				v, _ := flags.GetString("sell-url")
				update.SellURL = &v
			}
			if flags.Changed("close-url") {
				v, _ := flags.GetString("close-url")
				update.CloseURL = &v
			}
			if update == (models.InstrumentUpdate{}) {
				return fmt.Errorf("nothing to change for %s", symbol)
			}
			if err := validate.Struct(update); err != nil {
				return fmt.Errorf("invalid instrument: %w", err)
			}

			return app.updateInstrument(cmd, output, symbol, update)
		},
	}

	cmd.Flags().StringP("timeframe", "t", "", "chart timeframe")
	cmd.Flags().String("buy-url", "", "downstream URL called on a long entry (empty clears)")
	cmd.Flags().String("sell-url", "", "downstream URL called on a short entry (empty clears)")
	cmd.Flags().String("close-url", "", "downstream URL called on a close (empty clears)")
	return cmd
}

func newInstrumentToggleCmd(app *App, use string, active bool) *cobra.Command {
	short := "Resume processing alerts for an instrument"
	if !active {
		short = "Stop processing alerts for an instrument"
	}
	return &cobra.Command{
		Use:   use + " <symbol>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.updateInstrument(cmd, NewOutput(cmd), normalizeSymbol(args[0]), models.InstrumentUpdate{Active: &active})
		},
	}
}

func (a *App) updateInstrument(cmd *cobra.Command, output *Output, symbol string, update models.InstrumentUpdate) error {
	ds, err := a.Store()
	if err != nil {
		return err
	}

	inst, err := ds.UpdateInstrument(contextOrBackground(cmd), symbol, update)
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(inst)
	}
	output.Success("Instrument %s updated (active: %s)", inst.Symbol, yesNo(inst.Active))
	return nil
}

func newInstrumentDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <symbol>",
		Aliases: []string{"rm"},
		Short:   "Remove an instrument",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := normalizeSymbol(args[0])

			ds, err := app.Store()
			if err != nil {
				return err
			}
			if err := ds.DeleteInstrument(contextOrBackground(cmd), symbol); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": symbol})
			}
			output.Success("Instrument %s deleted", symbol)
			return nil
		},
	}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// triggerSummary lists which downstream URLs are set, e.g. "buy,close".
func triggerSummary(inst models.Instrument) string {
	var set []string
	if inst.BuyURL != "" {
		set = append(set, "buy")
	}
	if inst.SellURL != "" {
		set = append(set, "sell")
	}
	if inst.CloseURL != "" {
		set = append(set, "close")
	}
	if len(set) == 0 {
		return "-"
	}
	return strings.Join(set, ",")
}
