package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/app"
	"github.com/acme/call-connection/internal/telemetry"
	eventworker "github.com/acme/call-connection/internal/worker/event"
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
	logger := container.Logger.Named("eventworker")

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Name+"-event-worker", cfg.App.Env)
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

	repos := container.Repositories()
	reader := container.Kafka.NewReader(cfg.Kafka.EventTopic, cfg.Kafka.ConsumerGroupID+"-events")
	worker := eventworker.New(reader, repos.Events, repos.Stats, logger.Logger)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker terminated", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
