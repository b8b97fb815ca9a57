// Package config handles loading and validating configuration from environment
// variables and an optional YAML file.
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnvVar names the environment variable holding the YAML config path.
const FileEnvVar = "WHALEWATCH_CONFIG"

// Config holds all configuration values for whalewatch.
type Config struct {
	// Upstream trade feed and market catalogue
	DataAPIURL      string
	GammaAPIURL     string
	PageSize        int
	RefreshInterval time.Duration
	UpstreamTimeout time.Duration

	// Whale thresholds and retention
	MinAmountUSD    float64
	MaxStoredTrades int
	MaxAge          time.Duration
	FeedLimit       int

	// Store
	RedisURL      string
	CollectionKey string
	StoreTimeout  time.Duration
	ShareTTL      time.Duration

	// HTTP
	HTTPPort int

	// UI
	EnableTUI     bool
	UIRefreshRate time.Duration

	// Logging
	LogLevel string

	// ConfigFile is the YAML file the values were layered over, if any.
	ConfigFile string
}

// Load reads configuration with fallback to a .env file and an optional YAML
// file at path (or $WHALEWATCH_CONFIG when path is empty).
// Priority order: Environment variables > .env file > YAML file > hardcoded defaults
func Load(path string) (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(FileEnvVar)
	}

	src := &source{}
	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{
		// Upstream
		DataAPIURL:      src.getEnv("DATA_API_URL", "https://data-api.polymarket.com"),
		GammaAPIURL:     src.getEnv("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PageSize:        src.getEnvInt("PAGE_SIZE", 500),
		RefreshInterval: time.Duration(src.getEnvInt("REFRESH_INTERVAL_SECONDS", 30)) * time.Second,
		UpstreamTimeout: time.Duration(src.getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 10)) * time.Second,

		// Thresholds
		MinAmountUSD:    src.getEnvFloat("MIN_AMOUNT_USD", 2500),
		MaxStoredTrades: src.getEnvInt("MAX_STORED_TRADES", 100),
		MaxAge:          time.Duration(src.getEnvInt("MAX_AGE_HOURS", 24)) * time.Hour,
		FeedLimit:       src.getEnvInt("FEED_LIMIT", 20),

		// Store
		RedisURL:      src.getEnv("REDIS_URL", ""),
		CollectionKey: src.getEnv("COLLECTION_KEY", "whale_trades"),
		StoreTimeout:  time.Duration(src.getEnvInt("STORE_TIMEOUT_SECONDS", 3)) * time.Second,
		ShareTTL:      time.Duration(src.getEnvInt("SHARE_TTL_DAYS", 30)) * 24 * time.Hour,

		// HTTP
		HTTPPort: src.getEnvInt("HTTP_PORT", 8080),

		// UI
		EnableTUI:     src.getEnvBool("ENABLE_TUI", false),
		UIRefreshRate: time.Duration(src.getEnvInt("UI_REFRESH_MS", 500)) * time.Millisecond,

		// Logging
		LogLevel: src.getEnv("LOG_LEVEL", "INFO"),

		ConfigFile: path,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.DataAPIURL == "" {
		return fmt.Errorf("DATA_API_URL is required")
	}

	if c.GammaAPIURL == "" {
		return fmt.Errorf("GAMMA_API_URL is required")
	}

	if c.MinAmountUSD <= 0 || math.IsInf(c.MinAmountUSD, 0) || math.IsNaN(c.MinAmountUSD) {
		return fmt.Errorf("MIN_AMOUNT_USD must be a positive number")
	}

	if c.MaxStoredTrades < 1 {
		return fmt.Errorf("MAX_STORED_TRADES must be at least 1")
	}

	if c.MaxAge <= 0 {
		return fmt.Errorf("MAX_AGE_HOURS must be positive")
	}

	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE must be at least 1")
	}

	if c.FeedLimit < 1 {
		return fmt.Errorf("FEED_LIMIT must be at least 1")
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL_SECONDS must be positive")
	}

	if c.UpstreamTimeout <= 0 || c.StoreTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS and STORE_TIMEOUT_SECONDS must be positive")
	}

	if c.CollectionKey == "" {
		return fmt.Errorf("COLLECTION_KEY is required")
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}

	return nil
}

// MaskedRedisURL returns the Redis URL with its password hidden for logging.
func (c *Config) MaskedRedisURL() string {
	if c.RedisURL == "" {
		return "(not set)"
	}
	u, err := url.Parse(c.RedisURL)
	if err != nil {
		return maskSecret(c.RedisURL)
	}
	return u.Redacted()
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// readFile parses a flat YAML mapping whose keys are the lowercased
// environment variable names, e.g. min_amount_usd: 5000.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return values, nil
}

// source resolves a key from the environment, then the YAML file.
type source struct {
	file map[string]string
}

func (s *source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[strings.ToLower(key)]
}

// getEnv retrieves a value or returns a default value.
func (s *source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves a value as an integer or returns a default.
func (s *source) getEnvInt(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a value as a float64 or returns a default.
func (s *source) getEnvFloat(key string, defaultValue float64) float64 {
	if value := s.lookup(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves a value as a boolean or returns a default.
func (s *source) getEnvBool(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
