// Package config loads hub configuration from the environment, with an
// optional .env file for development. Upstream credentials stored in the
// database take precedence over environment values so rotations done through
// the API survive restarts without touching the host.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tickertronix/Tickertronix-Open/internal/modules/settings"
)

// Config holds all runtime configuration.
type Config struct {
	// HTTP server
	APIHost string
	APIPort int

	// Logging
	LogLevel string
	DevMode  bool
	LogDir   string

	// Storage
	DataDir string

	// Refresh cadence
	UpdateInterval time.Duration
	ForexPoll      time.Duration

	// Upstream tuning
	ForexBatchSize        int
	ForexBatchDelay       time.Duration
	ForexCreditsPerMinute int
	ForexCreditsPerDay    int
	RateLimitDelay        time.Duration
	RequestTimeout        time.Duration

	// Upstream endpoints and credentials
	AlpacaBaseURL     string
	AlpacaBrokerURL   string
	TwelveDataBaseURL string
	AlpacaAPIKey      string
	AlpacaAPISecret   string
	TwelveDataAPIKey  string

	// LAN hostname hint, logged at startup for display provisioning
	HubBaseHost string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		APIHost: getEnv("API_HOST", "0.0.0.0"),
		APIPort: getEnvAsInt("API_PORT", 5001),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogDir:   getEnv("LOG_DIR", ""),

		DataDir: getEnv("DATA_DIR", "./data"),

		UpdateInterval: getEnvAsSeconds("UPDATE_INTERVAL_SECONDS", 300),
		ForexPoll:      getEnvAsSeconds("FOREX_POLL_SECONDS", 3600),

		ForexBatchSize:        getEnvAsInt("FOREX_BATCH_SIZE", 8),
		ForexBatchDelay:       getEnvAsSeconds("FOREX_BATCH_DELAY_SECONDS", 10),
		ForexCreditsPerMinute: getEnvAsInt("FOREX_CREDITS_PER_MINUTE", 8),
		ForexCreditsPerDay:    getEnvAsInt("FOREX_CREDITS_PER_DAY", 800),
		RateLimitDelay:        time.Duration(getEnvAsInt("RATE_LIMIT_DELAY_MS", 500)) * time.Millisecond,
		RequestTimeout:        getEnvAsSeconds("REQUEST_TIMEOUT_SECONDS", 15),

		AlpacaBaseURL:     getEnv("ALPACA_BASE_URL", ""),
		AlpacaBrokerURL:   getEnv("ALPACA_BROKER_URL", ""),
		TwelveDataBaseURL: getEnv("TWELVE_DATA_BASE_URL", ""),
		AlpacaAPIKey:      getEnv("ALPACA_API_KEY", ""),
		AlpacaAPISecret:   getEnv("ALPACA_API_SECRET", ""),
		TwelveDataAPIKey:  getEnv("TWELVE_DATA_API_KEY", ""),

		HubBaseHost: getEnv("HUB_BASE_HOST", "tickertronixhub.local"),
	}

	if cfg.ForexBatchSize > 8 {
		cfg.ForexBatchSize = 8
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the hub cannot run with.
func (c *Config) Validate() error {
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.APIPort)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.UpdateInterval < time.Minute {
		return fmt.Errorf("UPDATE_INTERVAL_SECONDS must be at least 60, got %s", c.UpdateInterval)
	}
	if c.ForexPoll < time.Minute {
		return fmt.Errorf("FOREX_POLL_SECONDS must be at least 60, got %s", c.ForexPoll)
	}
	if c.ForexBatchSize < 1 {
		return fmt.Errorf("FOREX_BATCH_SIZE must be at least 1, got %d", c.ForexBatchSize)
	}
	return nil
}

// UpdateFromSettings overlays credentials stored through the API. A non-empty
// stored value wins over the environment.
func (c *Config) UpdateFromSettings(repo *settings.Repository) error {
	overlay := func(key string, target *string) error {
		value, err := repo.Get(key)
		if err != nil {
			return err
		}
		if value != nil && *value != "" {
			*target = *value
		}
		return nil
	}

	if err := overlay(settings.KeyAlpacaAPIKey, &c.AlpacaAPIKey); err != nil {
		return err
	}
	if err := overlay(settings.KeyAlpacaAPISecret, &c.AlpacaAPISecret); err != nil {
		return err
	}
	return overlay(settings.KeyTwelveDataAPIKey, &c.TwelveDataAPIKey)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Second
}
