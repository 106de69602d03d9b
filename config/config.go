// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Telegram TelegramConfig
	OpenAI   OpenAIConfig
	Bot      BotConfig
	Ledger   LedgerConfig
	State    StateConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// TelegramConfig holds bot transport configuration
type TelegramConfig struct {
	// Token is the bot token issued by BotFather
	Token string
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey string
}

// BotConfig holds the admission parameters
type BotConfig struct {
	// OperatorChatID is the chat that receives audit copies and diagnostics
	OperatorChatID int64

	// MinRequestInterval is the minimum gap between accepted requests per user
	MinRequestInterval time.Duration

	// MaxRequestsPerDay caps accepted requests per user per calendar day
	MaxRequestsPerDay int

	// ImageSize is the generated image edge length in pixels
	ImageSize int

	// Timezone is the IANA zone used for the daily quota window
	// (default: system local time)
	Timezone string
}

// LedgerConfig selects the usage ledger backend
type LedgerConfig struct {
	// Backend is "csv" (default), "sqlite", "postgresql", or "mongodb"
	Backend string

	// CSVPath is the ledger file for the csv backend
	CSVPath string

	// SQLitePath is the database file for the sqlite backend
	SQLitePath string

	// PostgreSQLURL is the connection string for the postgresql backend
	PostgreSQLURL string

	// PostgreSQLMaxConns bounds the connection pool size
	PostgreSQLMaxConns int

	// MongoDBURL is the connection string for the mongodb backend
	MongoDBURL string

	// MongoDBDatabase is the database name for the mongodb backend
	MongoDBDatabase string
}

// StateConfig selects the conversation state backend
type StateConfig struct {
	// Backend is "local" (default) or "redis"
	Backend string

	// RedisURL is the connection URL for the redis backend
	RedisURL string
}

// ServerConfig holds the operational HTTP server configuration
type ServerConfig struct {
	Port            string
	AdminKey        string
	MetricsEnabled  bool
	MetricsEndpoint string
}

// LoggingConfig holds structured logging configuration
type LoggingConfig struct {
	// Format is "json" (default) or "text"
	Format string

	// Level is "debug", "info" (default), "warn", or "error"
	Level string
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	// Load .env into the process environment (optional, won't fail if not found)
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("METRICS_ENDPOINT", "/metrics")
	viper.SetDefault("MIN_REQUEST_INTERVAL", "60s")
	viper.SetDefault("MAX_REQUESTS_PER_DAY", 5)
	viper.SetDefault("IMAGE_SIZE", 256)
	viper.SetDefault("LEDGER_BACKEND", "csv")
	viper.SetDefault("LEDGER_CSV_PATH", "logs/imagebot_usage.csv")
	viper.SetDefault("SQLITE_PATH", "data/imagebot.db")
	viper.SetDefault("POSTGRESQL_MAX_CONNS", 10)
	viper.SetDefault("MONGODB_DATABASE", "imagebot")
	viper.SetDefault("STATE_BACKEND", "local")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.AutomaticEnv()

	cfg := &Config{
		Telegram: TelegramConfig{
			Token: viper.GetString("TELEGRAM_BOT_TOKEN"),
		},
		OpenAI: OpenAIConfig{
			APIKey: viper.GetString("OPENAI_API_KEY"),
		},
		Bot: BotConfig{
			OperatorChatID:     viper.GetInt64("OPERATOR_CHAT_ID"),
			MinRequestInterval: viper.GetDuration("MIN_REQUEST_INTERVAL"),
			MaxRequestsPerDay:  viper.GetInt("MAX_REQUESTS_PER_DAY"),
			ImageSize:          viper.GetInt("IMAGE_SIZE"),
			Timezone:           viper.GetString("TIMEZONE"),
		},
		Ledger: LedgerConfig{
			Backend:            viper.GetString("LEDGER_BACKEND"),
			CSVPath:            viper.GetString("LEDGER_CSV_PATH"),
			SQLitePath:         viper.GetString("SQLITE_PATH"),
			PostgreSQLURL:      viper.GetString("POSTGRESQL_URL"),
			PostgreSQLMaxConns: viper.GetInt("POSTGRESQL_MAX_CONNS"),
			MongoDBURL:         viper.GetString("MONGODB_URL"),
			MongoDBDatabase:    viper.GetString("MONGODB_DATABASE"),
		},
		State: StateConfig{
			Backend:  viper.GetString("STATE_BACKEND"),
			RedisURL: viper.GetString("REDIS_URL"),
		},
		Server: ServerConfig{
			Port:            viper.GetString("PORT"),
			AdminKey:        viper.GetString("ADMIN_KEY"),
			MetricsEnabled:  viper.GetBool("METRICS_ENABLED"),
			MetricsEndpoint: viper.GetString("METRICS_ENDPOINT"),
		},
		Logging: LoggingConfig{
			Format: viper.GetString("LOG_FORMAT"),
			Level:  viper.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the required settings are present and consistent.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Bot.OperatorChatID == 0 {
		return fmt.Errorf("OPERATOR_CHAT_ID is required")
	}
	if c.Bot.MinRequestInterval <= 0 {
		return fmt.Errorf("MIN_REQUEST_INTERVAL must be positive")
	}
	if c.Bot.MaxRequestsPerDay <= 0 {
		return fmt.Errorf("MAX_REQUESTS_PER_DAY must be positive")
	}
	if c.Bot.ImageSize <= 0 {
		return fmt.Errorf("IMAGE_SIZE must be positive")
	}
	if c.Bot.Timezone != "" {
		if _, err := time.LoadLocation(c.Bot.Timezone); err != nil {
			return fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	switch c.Ledger.Backend {
	case "", "csv", "sqlite":
	case "postgresql":
		if c.Ledger.PostgreSQLURL == "" {
			return fmt.Errorf("POSTGRESQL_URL is required for the postgresql ledger backend")
		}
	case "mongodb":
		if c.Ledger.MongoDBURL == "" {
			return fmt.Errorf("MONGODB_URL is required for the mongodb ledger backend")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND: %s", c.Ledger.Backend)
	}

	switch c.State.Backend {
	case "", "local":
	case "redis":
		if c.State.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis state backend")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND: %s", c.State.Backend)
	}

	return nil
}

// Location resolves the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Bot.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Bot.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
