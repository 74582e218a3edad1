// Command flipguard runs the flip-suppressing alert webhook and its admin CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"flipguard/internal/cli"
	"flipguard/internal/config"
	"flipguard/internal/logging"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	bootCfg := logging.DefaultLogConfig()
	bootCfg.Level = "warn"
	bootCfg.File = false
	bootstrap := logging.NewLoggerWithConfig(bootCfg)

	rootCmd, app := cli.NewRootCmd(bootstrap)
	app.LoggerFactory = func(cfg *config.Config) zerolog.Logger {
		return logging.NewLoggerWithConfig(logging.LogConfig{
			Level:      cfg.Logging.Level,
			Console:    cfg.Logging.Console,
			File:       cfg.Logging.File,
			FilePath:   cfg.Logging.FilePath,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		_ = app.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
