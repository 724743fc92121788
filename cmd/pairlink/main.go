// Package main provides the pairlink server binary.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pairlink/pairlink/internal/config"
	"github.com/pairlink/pairlink/internal/observability"
	"github.com/pairlink/pairlink/ws"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty = defaults and environment only")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	rateLimit := &ws.RateLimitConfig{
		MessagesPerSecond: rate.Limit(cfg.RateLimit.MessagesPerSecond),
		Burst:             cfg.RateLimit.Burst,
		Enabled:           cfg.RateLimit.Enabled,
	}

	server := ws.New(ws.NewConfig(cfg.Server.Addr, rateLimit, ws.AllOrigins(), logger))

	ctx := context.Background()
	if err := server.Start(ctx); err != nil {
		logger.Fatal("starting server", zap.Error(err))
	}

	logger.Info("pairlink server started", zap.String("addr", cfg.Server.Addr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		logger.Error("stopping server", zap.Error(err))
	}
}
