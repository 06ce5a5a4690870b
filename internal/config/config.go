package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/darkodi/shortlink/internal/logger"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Log       logger.Config
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Counter   CounterConfig
	Auth      AuthConfig
	Clicks    ClicksConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Driver string // "sqlite3", "postgres"
	DSN    string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	BaseURL     string
	Environment string // "development", "production", "testing"
}

// RateLimitConfig holds the per-IP request limiter settings
type RateLimitConfig struct {
	Enabled  bool
	Rate     int           // requests per interval
	Burst    int           // max burst size
	Interval time.Duration // refill interval
	Cleanup  time.Duration // idle client eviction interval
}

// RedisConfig holds the shared cache tier settings. The tier is optional.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// CacheConfig holds the in-process cache settings
type CacheConfig struct {
	Capacity int
}

// CounterConfig holds alias counter settings
type CounterConfig struct {
	Backend     string // "sql", "redis"
	Start       int64
	MaxAttempts int
}

// AuthConfig selects and configures the identity provider
type AuthConfig struct {
	Provider            string // "local", "hosted"
	JWTSecret           string
	TokenTTL            time.Duration
	HostedPublicKeyFile string
	HostedIssuer        string
}

// ClicksConfig holds click accounting settings
type ClicksConfig struct {
	Timeout time.Duration
}

// Load reads configuration from environment variables. Values from
// .env.<ENVIRONMENT> and .env are loaded first when those files exist;
// variables already set in the process environment win.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "development")
	if err := loadDotEnv(".env."+env, ".env"); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			DSN:    getEnv("DB_DSN", "./data/shortlink.db"),
		},
		App: AppConfig{
			BaseURL:     getEnv("BASE_URL", ""),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Log: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Rate:     getIntEnv("RATE_LIMIT_RATE", 10),
			Burst:    getIntEnv("RATE_LIMIT_BURST", 20),
			Interval: getDurationEnv("RATE_LIMIT_INTERVAL", time.Second),
			Cleanup:  getDurationEnv("RATE_LIMIT_CLEANUP", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:   getBoolEnv("REDIS_ENABLED", false),
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "url:"),
		},
		Cache: CacheConfig{
			Capacity: getIntEnv("CACHE_CAPACITY", 500),
		},
		Counter: CounterConfig{
			Backend:     getEnv("COUNTER_BACKEND", "sql"),
			Start:       getInt64Env("COUNTER_START", 3844),
			MaxAttempts: getIntEnv("COUNTER_MAX_ATTEMPTS", 16),
		},
		Auth: AuthConfig{
			Provider:            getEnv("AUTH_PROVIDER", "local"),
			JWTSecret:           getEnv("JWT_SECRET", ""),
			TokenTTL:            getDurationEnv("TOKEN_TTL", 24*time.Hour),
			HostedPublicKeyFile: getEnv("HOSTED_PUBLIC_KEY_FILE", ""),
			HostedIssuer:        getEnv("HOSTED_ISSUER", ""),
		},
		Clicks: ClicksConfig{
			Timeout: getDurationEnv("CLICK_TIMEOUT", 5*time.Second),
		},
	}
	cfg.Log.Environment = cfg.App.Environment

	// Set default BaseURL if not provided
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s (must be 1-65535)", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite3 or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database DSN cannot be empty")
	}

	validEnvs := map[string]bool{
		"development": true,
		"production":  true,
		"testing":     true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, production, or testing)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.RateLimit.Enabled && (c.RateLimit.Rate < 1 || c.RateLimit.Burst < 1 || c.RateLimit.Interval <= 0) {
		return errors.New("rate limit rate, burst and interval must be positive")
	}

	if c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d", c.Cache.Capacity)
	}

	switch c.Counter.Backend {
	case "sql":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("redis counter backend requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("invalid counter backend: %s (must be sql or redis)", c.Counter.Backend)
	}
	// Encode(0) is the empty alias, so the sequence must start above zero.
	if c.Counter.Start < 1 {
		return fmt.Errorf("invalid counter start: %d (must be >= 1)", c.Counter.Start)
	}
	if c.Counter.MaxAttempts < 1 {
		return fmt.Errorf("invalid counter max attempts: %d", c.Counter.MaxAttempts)
	}

	switch c.Auth.Provider {
	case "local":
		if len(c.Auth.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters for the local provider")
		}
	case "hosted":
		if c.Auth.HostedPublicKeyFile == "" {
			return errors.New("HOSTED_PUBLIC_KEY_FILE is required for the hosted provider")
		}
	default:
		return fmt.Errorf("invalid auth provider: %s (must be local or hosted)", c.Auth.Provider)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ============================================================
// HELPER FUNCTIONS
// ============================================================

func loadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
