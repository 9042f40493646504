package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/api"
	"github.com/acme/call-connection/internal/app"
	"github.com/acme/call-connection/internal/keepalive"
	"github.com/acme/call-connection/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close()

	cfg := container.Config
	logger := container.Logger.Named("connectiond")

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Name, cfg.App.Env)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		logger.Fatal("failed to ensure kafka topics", zap.Error(err))
	}
	if err := container.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	runtime := container.Runtime()
	runner := keepalive.New(runtime.Connections, runtime.Limiter, cfg.Connection.KeepaliveInterval, logger.Logger)
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("keepalive stopped", zap.Error(err))
		}
	}()

	server := api.NewServer(cfg.HTTP, container.HandlerSet())
	logger.Info("starting server", zap.Int("port", cfg.HTTP.Port), zap.Int("platform_level", cfg.Platform.Level))
	if err := server.Start(ctx); err != nil {
		logger.Error("server terminated", zap.Error(err))
	}

	timeout := cfg.Connection.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()
	if err := runtime.Connections.Shutdown(shutdownCtx); err != nil {
		logger.Warn("connection shutdown incomplete", zap.Error(err))
	}
	logger.Info("stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
