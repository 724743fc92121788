// Package config provides Viper-based configuration loading for the pairlink
// server.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds the listen endpoint.
type ServerConfig struct {
	// Addr is the "host:port" listen address for the WebSocket endpoint.
	Addr string `mapstructure:"addr"`
}

// RateLimitConfig holds per-connection inbound rate limiting settings.
type RateLimitConfig struct {
	// MessagesPerSecond is the sustained inbound frame rate per connection.
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	// Burst is the token bucket capacity.
	Burst int `mapstructure:"burst"`
	// Enabled determines whether rate limiting is active.
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MessagesPerSecond <= 0 {
			errs = append(errs, fmt.Sprintf("ratelimit.messages_per_second must be > 0 when enabled, got %v", c.RateLimit.MessagesPerSecond))
		}
		if c.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Sprintf("ratelimit.burst must be >= 1 when enabled, got %d", c.RateLimit.Burst))
		}
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path (optional; defaults apply
// when path is empty), applies environment variable overrides, and validates
// the result.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with PAIRLINK_ prefix
	v.SetEnvPrefix("PAIRLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("ratelimit.messages_per_second", 100)
	v.SetDefault("ratelimit.burst", 200)
	v.SetDefault("ratelimit.enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
