package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fuelops/fuelops-backend/internal/bootstrap"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
	"github.com/fuelops/fuelops-backend/pkg/outbox/registry"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	pubsubClient, err := rt.PubSub(ctx)
	if err != nil {
		return err
	}
	eventRegistry, err := registry.NewEventRegistry(rt.Config.PubSub)
	if err != nil {
		return err
	}

	metricsRegistry := prometheus.NewRegistry()
	conn := rt.DB.DB()
	service, err := NewService(ServiceParams{
		Config:        rt.Config,
		Logger:        rt.Logger,
		DB:            rt.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(conn),
		Metrics:       metrics.NewOutboxMetrics(metricsRegistry),
	})
	if err != nil {
		return err
	}

	metrics.Serve(ctx, rt.Config.Service.MetricsAddr, metricsRegistry, rt.Logger)
	rt.Logger.Info(rt.Logger.WithField(ctx, "topics", eventRegistry.Topics()), "starting outbox publisher")
	return service.Run(ctx)
}
