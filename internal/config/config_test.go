package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, float64(100), cfg.RateLimit.MessagesPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  addr: \":9090\"\nlogging:\n  level: debug\n  format: console\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// Unset sections keep their defaults.
	assert.Equal(t, 200, cfg.RateLimit.Burst)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero rate with limiting enabled", func(c *Config) { c.RateLimit.MessagesPerSecond = 0 }},
		{"negative rate", func(c *Config) { c.RateLimit.MessagesPerSecond = -1 }},
		{"zero burst with limiting enabled", func(c *Config) { c.RateLimit.Burst = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDisabledRateLimitSkipsRateChecks(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestPropertyValidRateLimitAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.RateLimit.MessagesPerSecond = rapid.Float64Range(0.1, 10000).Draw(t, "mps")
		cfg.RateLimit.Burst = rapid.IntRange(1, 100000).Draw(t, "burst")
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid rate limit rejected: %v", err)
		}
	})
}
