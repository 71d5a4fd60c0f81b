package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// IMAP mailbox receiving the lead notification emails
	IMAPHost        string        `env:"IMAP_HOST"` // resolved from IMAP_USER when empty
	IMAPPort        int           `env:"IMAP_PORT" envDefault:"993"`
	IMAPTLS         bool          `env:"IMAP_TLS" envDefault:"true"`
	IMAPUser        string        `env:"IMAP_USER,required,notEmpty"`
	IMAPPassword    string        `env:"IMAP_PASSWORD,required,notEmpty"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/leads.db"`

	// Ingestion
	MonitoringEnabled bool          `env:"MONITORING_ENABLED" envDefault:"true"`
	EmailPollInterval time.Duration `env:"EMAIL_POLL_INTERVAL" envDefault:"5m"`
	LookbackDays      int           `env:"EMAIL_LOOKBACK_DAYS" envDefault:"1"`
	MappingsFile      string        `env:"MAPPINGS_FILE"` // optional YAML seed of subject mappings

	// Telegram admin bot (optional)
	TelegramToken        string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminIDs     []int64 `env:"TELEGRAM_ADMIN_IDS" envSeparator:","`
	TelegramNotifyChatID int64   `env:"TELEGRAM_NOTIFY_CHAT_ID"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// TelegramEnabled returns true if the admin bot is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// IMAPAddress returns host:port of the IMAP server
func (c *Config) IMAPAddress() string {
	return fmt.Sprintf("%s:%d", c.IMAPHost, c.IMAPPort)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
		return nil, fmt.Errorf("IMAP_PORT must be between 1 and 65535, got %d", cfg.IMAPPort)
	}

	if cfg.LookbackDays < 1 {
		return nil, fmt.Errorf("EMAIL_LOOKBACK_DAYS must be at least 1, got %d", cfg.LookbackDays)
	}

	if cfg.EmailPollInterval < time.Minute {
		return nil, fmt.Errorf("EMAIL_POLL_INTERVAL must be at least 1m, got %s", cfg.EmailPollInterval)
	}

	return cfg, nil
}
