// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	ListenAddr string
	Database   DatabaseConfig
	HTTP       HTTPConfig
	Telegram   TelegramConfig
	Limiter    LimiterConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL string
}

// HTTPConfig holds the ingestion surface settings.
type HTTPConfig struct {
	APIKey          string
	MaxPayloadBytes int64
	DebugDir        string
}

// TelegramConfig holds notification settings. Empty values disable the notifier.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// LimiterConfig holds the per-device sync throttle settings.
// MaxPerWindow <= 0 disables throttling.
type LimiterConfig struct {
	Window       time.Duration
	MaxPerWindow int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8000"),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		HTTP: HTTPConfig{
			APIKey:          getEnv("API_KEY", ""),
			MaxPayloadBytes: getEnvAsInt64("MAX_PAYLOAD_BYTES", 50*1000*1000),
			DebugDir:        getEnv("DEBUG_DIR", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
		Limiter: LimiterConfig{
			Window:       time.Duration(getEnvAsInt("SYNC_LIMIT_WINDOW_MINUTES", 1)) * time.Minute,
			MaxPerWindow: getEnvAsInt("SYNC_LIMIT_MAX_PER_WINDOW", 0),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.HTTP.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is required but not set in environment variables")
	}
	if cfg.HTTP.MaxPayloadBytes <= 0 {
		return nil, fmt.Errorf("MAX_PAYLOAD_BYTES must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
