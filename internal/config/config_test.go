package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "http://localhost:8080", cfg.App.BaseURL)
	assert.Equal(t, int64(3844), cfg.Counter.Start)
	assert.Equal(t, "sql", cfg.Counter.Backend)
	assert.Equal(t, 500, cfg.Cache.Capacity)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "development", cfg.Log.Environment)
}

func TestLoadReadsEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ENVIRONMENT", "testing")
	t.Setenv("JWT_SECRET", testSecret)

	content := strings.Join([]string{
		"PORT=9090",
		"CACHE_CAPACITY=42",
		"COUNTER_START=100",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.testing"), []byte(content), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("CACHE_CAPACITY")
		os.Unsetenv("COUNTER_START")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 42, cfg.Cache.Capacity)
	assert.Equal(t, int64(100), cfg.Counter.Start)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080"},
			Database:  DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"},
			App:       AppConfig{Environment: "testing"},
			RateLimit: RateLimitConfig{Enabled: true, Rate: 1, Burst: 1, Interval: time.Second},
			Cache:     CacheConfig{Capacity: 10},
			Counter:   CounterConfig{Backend: "sql", Start: 3844, MaxAttempts: 3},
			Auth:      AuthConfig{Provider: "local", JWTSecret: testSecret, TokenTTL: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = "0" }, "invalid port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "invalid database driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "DSN"},
		{"bad env", func(c *Config) { c.App.Environment = "staging" }, "invalid environment"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level"},
		{"zero counter start", func(c *Config) { c.Counter.Start = 0 }, "counter start"},
		{"redis counter without redis", func(c *Config) { c.Counter.Backend = "redis" }, "REDIS_ENABLED"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWT_SECRET"},
		{"hosted without key", func(c *Config) { c.Auth.Provider = "hosted" }, "HOSTED_PUBLIC_KEY_FILE"},
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }, "cache capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			cfg.Log.Level = "info"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
