// Package config provides configuration management for the flipguard service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "flipguard/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Downstream    DownstreamConfig   `mapstructure:"downstream"`
	Logging       LoggingConfig      `mapstructure:"logging"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, bolt
	Path   string `mapstructure:"path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Level    string         `mapstructure:"level"` // all, trades_only
	Timeout  time.Duration  `mapstructure:"timeout"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	BotToken      string  `mapstructure:"bot_token"`
	ChatID        string  `mapstructure:"chat_id"`
	APIEndpoint   string  `mapstructure:"api_endpoint"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// DownstreamConfig holds configuration for per-instrument trigger URLs.
type DownstreamConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/flipguard"
	}
	return filepath.Join(home, ".config", "flipguard")
}

// ConfigPath returns the path of config.toml inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and loading continues.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDerivedDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("storage.driver", "sqlite")

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.level", "all")
	v.SetDefault("notifications.timeout", "10s")
	v.SetDefault("notifications.telegram.rate_per_second", 1.0)
	v.SetDefault("notifications.telegram.burst", 3)

	v.SetDefault("downstream.enabled", true)
	v.SetDefault("downstream.timeout", "5s")
	v.SetDefault("downstream.user_agent", "flipguard/1.0")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if os.Getenv("TELEGRAM_BOT_TOKEN") != "" && os.Getenv("TELEGRAM_CHAT_ID") != "" {
		cfg.Notifications.Telegram.Enabled = true
	}

	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Storage.Path = v
	}

	if v := os.Getenv("FLIPGUARD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		file := "flipguard.db"
		if cfg.Storage.Driver == "bolt" {
			file = "flipguard.bolt"
		}
		cfg.Storage.Path = filepath.Join(cfg.Dir, file)
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(cfg.Dir, "logs", "flipguard.log")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "bolt":
	default:
		return invalid("storage.driver must be 'sqlite' or 'bolt', got %q", c.Storage.Driver)
	}

	switch c.Notifications.Level {
	case "", "all", "trades_only":
	default:
		return invalid("notifications.level must be 'all' or 'trades_only', got %q", c.Notifications.Level)
	}

	durations := map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"notifications.timeout":   c.Notifications.Timeout,
		"downstream.timeout":      c.Downstream.Timeout,
	}
	for key, d := range durations {
		if d < 0 {
			return invalid("%s must be non-negative", key)
		}
	}

	if c.Notifications.Telegram.RatePerSecond < 0 {
		return invalid("notifications.telegram.rate_per_second must be non-negative")
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return invalid("notifications.webhook.url is required when the webhook channel is enabled")
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return apperrors.Wrapf(apperrors.ErrConfigInvalid, format, args...)
}

// TelegramReady reports whether Telegram delivery is configured.
func (c *Config) TelegramReady() bool {
	t := c.Notifications.Telegram
	return c.Notifications.Enabled && t.Enabled && t.BotToken != "" && t.ChatID != ""
}
