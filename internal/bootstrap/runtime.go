// Package bootstrap holds the process wiring shared by every binary under cmd/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/fuelops/fuelops-backend/pkg/config"
	"github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/migrate"
	"github.com/fuelops/fuelops-backend/pkg/pubsub"
	"github.com/fuelops/fuelops-backend/pkg/redis"
)

// Runtime is the configured process: config, logger, database and whatever
// optional clients the binary asked for. Close releases them in reverse.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Main runs fn under a context cancelled by SIGINT or SIGTERM and exits
// non-zero when it fails for any reason other than that cancellation.
func Main(service string, fn func(ctx context.Context, rt *Runtime) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, service, fn)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, service string, fn func(context.Context, *Runtime) error) int {
	rt, err := Start(ctx, service)
	if err != nil {
		logger.New(logger.Options{ServiceName: service}).Error(ctx, "startup failed", err)
		return 1
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Error(ctx, "shutdown cleanup failed", err)
		}
	}()

	ctx = rt.Logger.WithFields(ctx, map[string]any{"env": rt.Config.App.Env, "serviceKind": service})
	if err := fn(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, service+" stopped unexpectedly", err)
		return 1
	}
	rt.Logger.Info(ctx, service+" shut down gracefully")
	return 0
}

// Start loads .env and config, builds the logger, opens the database and
// prepares its schema.
func Start(ctx context.Context, service string) (*Runtime, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = service

	logg := logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	if envErr != nil {
		logg.Debug(ctx, ".env file not loaded, relying on environment")
	}

	rt := &Runtime{Service: service, Config: cfg, Logger: logg}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt.DB = dbClient
	rt.onClose("database", dbClient.Close)

	if err := migrate.PrepareSchema(ctx, cfg, logg, dbClient); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}
	return rt, nil
}

func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.onClose("redis", client.Close)
	return client, nil
}

func (rt *Runtime) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}
	rt.onClose("pubsub", client.Close)
	return client, nil
}

func (rt *Runtime) onClose(name string, fn func() error) {
	rt.closers = append(rt.closers, namedCloser{name: name, close: fn})
}

// Close releases clients newest first and reports every failure.
func (rt *Runtime) Close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errs
}
