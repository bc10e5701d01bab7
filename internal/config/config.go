package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"keywarden-go/internal/models"
)

// Config contains everything the validation pipeline consumes read-only:
// timeout defaults, cache sizing, rate-limit overrides and the
// concurrency ceiling, plus the optional API server settings.
type Config struct {
	DefaultTimeout time.Duration // per-request timeout unless overridden per call
	Concurrency    int           // batch concurrency ceiling

	CacheCapacity int           // bounded result cache size
	CacheTTL      time.Duration // result cache TTL
	RedisEnabled  bool          // enable the shared Redis cache layer
	RedisURL      string        // Redis connection URL

	RateLimitOverrides map[string]models.RateLimitConfig // provider id -> override

	LogLevel string
	LogFile  string

	APIEnabled bool
	APIPort    int
	APIAuthKey string
}

// Load reads configuration from environment variables, falling back to
// values from an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DefaultTimeout:     getEnvDurationWithDefault("VALIDATION_TIMEOUT", 30*time.Second),
		Concurrency:        getEnvIntWithDefault("VALIDATION_CONCURRENCY", 5),
		CacheCapacity:      getEnvIntWithDefault("CACHE_CAPACITY", 1000),
		CacheTTL:           getEnvDurationWithDefault("CACHE_TTL", 5*time.Minute),
		RedisEnabled:       parseBool(os.Getenv("REDIS_ENABLED")),
		RedisURL:           getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitOverrides: make(map[string]models.RateLimitConfig),
		LogLevel:           getEnvWithDefault("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),
		APIEnabled:         parseBool(os.Getenv("API_ENABLED")),
		APIPort:            getEnvIntWithDefault("API_PORT", 8080),
		APIAuthKey:         os.Getenv("API_AUTH_KEY"),
	}

	// Per-provider overrides: RATE_LIMIT_<PROVIDER>_RPM / _RPH
	for _, provider := range []string{"openai", "anthropic", "gemini", "openrouter"} {
		upper := strings.ToUpper(provider)
		rpm := getEnvIntWithDefault("RATE_LIMIT_"+upper+"_RPM", 0)
		rph := getEnvIntWithDefault("RATE_LIMIT_"+upper+"_RPH", 0)
		if rpm > 0 || rph > 0 {
			cfg.RateLimitOverrides[provider] = models.RateLimitConfig{
				RequestsPerMinute: rpm,
				RequestsPerHour:   rph,
				Burst:             getEnvIntWithDefault("RATE_LIMIT_"+upper+"_BURST", rpm),
				BackoffBase:       500 * time.Millisecond,
				BackoffMax:        30 * time.Second,
				Exponential:       true,
			}
		}
	}

	return cfg
}

// Check validates the loaded configuration
func (c *Config) Check() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("validation timeout must be positive, got %v", c.DefaultTimeout)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency ceiling must be positive, got %d", c.Concurrency)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.RedisEnabled && c.RedisURL == "" {
		return fmt.Errorf("redis enabled but REDIS_URL not set")
	}
	return nil
}

// getEnvWithDefault returns an environment variable or a default
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntWithDefault returns an integer environment variable or a default
func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDurationWithDefault returns a duration environment variable or a default
func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseBool parses a boolean environment value
func parseBool(value string) bool {
	if value == "" {
		return false
	}
	lowerValue := strings.ToLower(value)
	return lowerValue == "true" || lowerValue == "1" || lowerValue == "yes" || lowerValue == "on" || lowerValue == "enabled"
}
