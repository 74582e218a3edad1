package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect per-symbol trade state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every stored trade state",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ds, err := app.Store()
			if err != nil {
				return err
			}
			states, err := ds.ListStates(contextOrBackground(cmd))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(states)
			}
			if len(states) == 0 {
				output.Info("No trade state recorded yet")
				return nil
			}

			table := NewTable(output, "SYMBOL", "STATUS", "LAST ACTION", "LAST CANDLE", "PRICE")
			for _, s := range states {
				table.AddRow(
					s.Symbol,
					output.Status(s.Status),
					formatActionTime(s.LastActionTime),
					orDash(s.LastCandleTimestamp),
					orDash(s.LastSignalPrice),
				)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <symbol>",
		Short: "Show the trade state of one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := normalizeSymbol(args[0])

			ds, err := app.Store()
			if err != nil {
				return err
			}
			loaded, err := ds.Load(contextOrBackground(cmd), symbol)
			if err != nil {
				return err
			}
			state, err := loaded.Take()
			if err != nil {
				return fmt.Errorf("no trade state for %s", symbol)
			}

			if output.IsJSON() {
				return output.JSON(state)
			}
			output.Bold("%s", state.Symbol)
			output.Printf("  Status:      %s\n", output.Status(state.Status))
			output.Printf("  Last Action: %s\n", formatActionTime(state.LastActionTime))
			output.Printf("  Last Candle: %s\n", orDash(state.LastCandleTimestamp))
			output.Printf("  Last Price:  %s\n", orDash(state.LastSignalPrice))
			return nil
		},
	})

	return cmd
}

func formatActionTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
