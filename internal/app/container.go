package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/acme/call-connection/internal/api/handlers"
	"github.com/acme/call-connection/internal/callengine"
	"github.com/acme/call-connection/internal/config"
	"github.com/acme/call-connection/internal/connection"
	"github.com/acme/call-connection/internal/infra/db"
	"github.com/acme/call-connection/internal/infra/redis"
	"github.com/acme/call-connection/internal/platform"
	"github.com/acme/call-connection/internal/queue"
	pgrepo "github.com/acme/call-connection/internal/repository/postgres"
	scyllarepo "github.com/acme/call-connection/internal/repository/scylla"
	"github.com/acme/call-connection/internal/service/concurrency"
	connsvc "github.com/acme/call-connection/internal/service/connection"
	"github.com/acme/call-connection/internal/telephony"
	"github.com/acme/call-connection/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	repos struct {
		once  sync.Once
		value *repositories
	}
	runtime struct {
		once  sync.Once
		value *runtime
	}
}

type repositories struct {
	Events *scyllarepo.EventStore
	Stats  *pgrepo.DisconnectStatisticsRepository
}

type runtime struct {
	Publisher   *queue.EventPublisher
	Limiter     *concurrency.Limiter
	Registrar   telephony.Registrar
	Engine      *callengine.Engine
	Controller  *connection.Controller
	Connections *connsvc.Service
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.NewWithOptions(logger.Options{
		Env:        cfg.App.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		_ = scylla.Close()
		_ = pg.Close()
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		_ = redisClient.Close()
		_ = scylla.Close()
		_ = pg.Close()
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	lg.Info("container built")
	return &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}, nil
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.repos.once.Do(func() {
		c.repos.value = &repositories{
			Events: scyllarepo.NewEventStore(c.Scylla.Session()),
			Stats:  pgrepo.NewDisconnectStatisticsRepository(c.Postgres.DB()),
		}
	})
	return c.repos.value
}

// Runtime exposes the connection runtime: controller, service and their collaborators.
func (c *Container) Runtime() *runtime {
	c.runtime.once.Do(func() {
		cfg := c.Config
		level := platform.Level(cfg.Platform.Level)
		permissions := platform.NewStaticPermissions(cfg.Platform.Permissions...)
		zl := c.Logger.Logger

		rt := &runtime{
			Publisher: queue.NewEventPublisher(c.Kafka, cfg.Kafka.EventTopic),
			Limiter:   concurrency.NewLimiter(c.Redis.Inner(), cfg.Connection.MaxConcurrentPerAccount, cfg.Connection.SlotTTL),
			Registrar: telephony.NewLoopback(zl),
			Engine:    callengine.New(),
		}
		rt.Controller = connection.NewController(rt.Registrar, level, permissions, zl)
		rt.Connections = connsvc.NewService(
			rt.Controller,
			rt.Engine,
			rt.Limiter,
			rt.Publisher,
			permissions,
			connsvc.Options{DefaultAccountID: cfg.Connection.DefaultAccountID},
			zl,
		)
		c.runtime.value = rt
	})
	return c.runtime.value
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet() *handlers.HandlerSet {
	repos := c.Repositories()
	return handlers.NewHandlerSet(handlers.Dependencies{
		Connections: c.Runtime().Connections,
		Events:      repos.Events,
		Stats:       repos.Stats,
		HealthChecks: map[string]handlers.HealthCheck{
			"postgres": c.Postgres.Ping,
			"redis":    c.Redis.Ping,
			"scylla":   c.Scylla.Ping,
		},
		Logger: c.Logger.Logger,
	})
}

// EnsureSchema creates the tables the repositories rely on.
func (c *Container) EnsureSchema(ctx context.Context) error {
	repos := c.Repositories()
	if err := repos.Events.EnsureSchema(ctx); err != nil {
		return err
	}
	return repos.Stats.EnsureSchema(ctx)
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	partitions := c.Config.Kafka.Partitions
	if partitions <= 0 {
		partitions = 12
	}
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.EventTopic}, partitions, 1)
}

// Close releases all held resources. Live connections must be shut down first.
func (c *Container) Close() error {
	var errs []error
	if rt := c.runtime.value; rt != nil && rt.Publisher != nil {
		if err := rt.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	return errors.Join(errs...)
}
