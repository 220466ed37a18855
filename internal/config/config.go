package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Chat platform
	DiscordToken    string
	PayoutChannelID string
	ValidatorRoleID string
	ApprovalEmoji   string
	PayoutKeyword   string

	// Ledger
	Step     int64
	ResetKey string

	// Storage
	StoreBackend string
	DataFile     string
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets journal
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// HTTP limits
	ResetRatePerMinute int
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "3000"),

		DiscordToken:    getEnv("DISCORD_TOKEN", ""),
		PayoutChannelID: getEnv("PAYOUT_CHANNEL_ID", ""),
		ValidatorRoleID: getEnv("VALIDATOR_ROLE_ID", ""),
		ApprovalEmoji:   getEnv("APPROVAL_EMOJI", "✅"),
		PayoutKeyword:   getEnv("PAYOUT_KEYWORD", "PAYOUT"),

		Step:     getEnvInt64("STEP", 100000),
		ResetKey: getEnv("RESET_KEY", ""),

		StoreBackend: getEnv("STORE_BACKEND", "file"),
		DataFile:     getEnv("DATA_FILE", "./data/data.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/payouts.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "payouts"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "payout_reactions"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Payouts"),

		ResetRatePerMinute: getEnvInt("RESET_RATE_PER_MINUTE", 10),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.Step <= 0 {
		errors = append(errors, fmt.Sprintf("invalid step %d: must be positive", c.Step))
	}

	if strings.TrimSpace(c.PayoutKeyword) == "" {
		errors = append(errors, "payout keyword cannot be empty")
	}
	if c.ApprovalEmoji == "" {
		errors = append(errors, "approval emoji cannot be empty")
	}

	validBackends := []string{"file", "sqlite", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.StoreBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	switch c.StoreBackend {
	case "file":
		if c.DataFile == "" {
			errors = append(errors, "data file path cannot be empty when using file backend")
		} else if msg := ensureDir(c.DataFile); msg != "" {
			errors = append(errors, msg)
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet ID is provided")
	}

	if c.ResetRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid reset rate %d: must be at least 1", c.ResetRatePerMinute))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Warnings lists settings that are allowed to be missing but leave part of the
// service inert.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.DiscordToken == "" {
		warnings = append(warnings, "DISCORD_TOKEN missing")
	}
	if c.PayoutChannelID == "" {
		warnings = append(warnings, "PAYOUT_CHANNEL_ID missing: every reaction will be ignored")
	}
	if c.ValidatorRoleID == "" {
		warnings = append(warnings, "VALIDATOR_ROLE_ID missing: every reaction will be ignored")
	}
	if c.ResetKey == "" {
		warnings = append(warnings, "RESET_KEY missing: /reset is disabled")
	}
	if c.AMQPURL == "" {
		warnings = append(warnings, "AMQP_URL missing: no reaction events will be consumed")
	}
	return warnings
}

// ensureDir makes sure the parent directory of path exists.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create data directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
