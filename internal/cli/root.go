// Package cli provides the command-line interface for flipguard.
package cli

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"flipguard/internal/config"
	"flipguard/internal/logging"
	"flipguard/internal/store"
)

// Version information
const (
	Version   = "1.0.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	// LoggerFactory rebuilds the logger once the config is loaded.
	LoggerFactory func(cfg *config.Config) zerolog.Logger

	storeOnce sync.Once
	store     store.DataStore
	storeErr  error
}

// Store opens the configured data store on first use.
func (a *App) Store() (store.DataStore, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = store.Open(a.Config.Storage.Driver, a.Config.Storage.Path)
		if a.storeErr == nil {
			a.Logger.Debug().
				Str("driver", a.Config.Storage.Driver).
				Str("path", a.Config.Storage.Path).
				Msg("Data store opened")
		}
	})
	return a.store, a.storeErr
}

// Close releases the data store if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// NewRootCmd creates the root command for the CLI. The config is loaded
// from the --config directory before any subcommand runs.
func NewRootCmd(logger zerolog.Logger) (*cobra.Command, *App) {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "flipguard",
		Short: "Flip-suppressing trade alert webhook",
		Long: `flipguard receives trading alerts from charting tools, keeps one position
per instrument and refuses to reverse a position on the same candle that
closed it.

Accepted entries and closes are announced on the configured channels and
forwarded to the instrument's downstream URLs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/flipguard)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newInstrumentCmd(app))
	rootCmd.AddCommand(newStateCmd(app))
	rootCmd.AddCommand(newSignalCmd(app))

	return rootCmd, app
}

func (a *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.Config = cfg
	a.ConfigDir = dir

	if a.LoggerFactory != nil {
		a.Logger = a.LoggerFactory(cfg)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	return nil
}

func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("flipguard v%s\n", Version)
			output.Printf("%s\n", output.DimText("Build date: "+BuildDate))
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the flipguard configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redacted(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"dir": app.ConfigDir, "path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print the default config.toml",
		Run: func(cmd *cobra.Command, args []string) {
			NewOutput(cmd).Printf("%s", config.Template())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

// redacted returns a copy of cfg safe to print.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.Notifications.Telegram.BotToken != "" {
		out.Notifications.Telegram.BotToken = "********"
	}
	return out
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Read Timeout:    %s\n", cfg.Server.ReadTimeout)
	output.Printf("  Write Timeout:   %s\n", cfg.Server.WriteTimeout)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Driver:          %s\n", cfg.Storage.Driver)
	output.Printf("  Path:            %s\n", cfg.Storage.Path)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:           %s\n", cfg.Notifications.Level)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:        %v\n", cfg.TelegramReady())
	output.Println()

	output.Bold("Downstream")
	output.Printf("  Enabled:         %v\n", cfg.Downstream.Enabled)
	output.Printf("  Timeout:         %s\n", cfg.Downstream.Timeout)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %s\n", cfg.Logging.FilePath)
}
