package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# flipguard configuration

[server]
# Listen address for the webhook receiver
addr = ":5000"
read_timeout = "10s"
write_timeout = "30s"
shutdown_timeout = "15s"

[storage]
# Backend: "sqlite" or "bolt"
driver = "sqlite"
# Database file. Defaults to flipguard.db in this directory.
path = ""

[notifications]
# Enable notifications
enabled = true
# Notification level: all, trades_only
level = "all"
# Per-message delivery timeout
timeout = "10s"

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""
# Leave empty for the public Bot API
api_endpoint = ""
rate_per_second = 1.0
burst = 3

[notifications.webhook]
enabled = false
url = ""

[downstream]
# Call the buy/sell/close URLs configured per instrument
enabled = true
timeout = "5s"
user_agent = "flipguard/1.0"

[logging]
level = "info"
console = true
file = true
# Defaults to logs/flipguard.log in this directory.
file_path = ""
max_size = 100
max_backups = 7
max_age = 30
`

// Template returns the default config.toml contents.
func Template() string {
	return configTemplate
}

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
