// Package ws is the public entry point for creating a pairlink server.
package ws

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pairlink/pairlink"
	"github.com/pairlink/pairlink/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type CheckOriginFn = websocket.CheckOriginFn
type ServerConfig = *websocket.ServerConfig

// New creates a matchmaking server from the given configuration.
//
// Example:
//
//	server := ws.New(ws.NewConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins(), logger))
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(cfg ServerConfig) pairlink.Server {
	return websocket.New(cfg)
}

// NewConfig assembles a server configuration.
//
// Parameters:
//   - addr: the listen address (e.g. ":8080" or "localhost:8080")
//   - rateLimitConfig: inbound rate limiting. Use DefaultRateLimitConfig() or NoRateLimit()
//   - checkOrigin: origin validation. Use AllOrigins() to allow all (dev only)
//   - logger: structured logger; nil disables logging
func NewConfig(addr string, rateLimitConfig *RateLimitConfig, checkOrigin CheckOriginFn, logger *zap.Logger) ServerConfig {
	return &websocket.ServerConfig{
		Addr:            addr,
		RateLimitConfig: rateLimitConfig,
		CheckOrigin:     checkOrigin,
		Logger:          logger,
	}
}

// AllOrigins returns a checkOrigin function that allows all origins.
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
