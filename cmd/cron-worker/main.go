package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fuelops/fuelops-backend/internal/bootstrap"
	"github.com/fuelops/fuelops-backend/internal/cron"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	stack, err := rt.LedgerStack(ledgerMetrics)
	if err != nil {
		return err
	}

	driftJob, err := cron.NewLedgerDriftJob(cron.LedgerDriftJobParams{
		Logger:  rt.Logger,
		Ledger:  stack.Ledger,
		Metrics: ledgerMetrics,
		Repair:  cfg.Ledger.AuditRepair,
	})
	if err != nil {
		return fmt.Errorf("ledger drift job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        rt.Logger,
		DB:            rt.DB,
		Repository:    stack.OutboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
		BatchSize:     cfg.Outbox.PruneBatchSize,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}

	registry := cron.NewRegistry(driftJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     rt.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, rt.Logger)
	rt.Logger.Info(rt.Logger.WithField(ctx, "jobs", registry.Names()), "starting cron worker")
	return service.Run(ctx)
}

// lockName scopes the cron lock per environment so staging and production
// sharing a Redis do not block each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
