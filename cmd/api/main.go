package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fuelops/fuelops-backend/api/routes"
	"github.com/fuelops/fuelops-backend/internal/bootstrap"
	"github.com/fuelops/fuelops-backend/internal/cashledger"
	"github.com/fuelops/fuelops-backend/internal/invoices"
	"github.com/fuelops/fuelops-backend/internal/reconciliation"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	bootstrap.Main("api", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config
	logg := rt.Logger
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	stack, err := rt.LedgerStack(ledgerMetrics)
	if err != nil {
		return err
	}

	conn := rt.DB.DB()
	cashService, err := cashledger.NewService(rt.DB, cashledger.NewRepository(conn), logg)
	if err != nil {
		return fmt.Errorf("cash ledger service: %w", err)
	}
	bridgeParams := invoices.BridgeParams{
		Logger: logg,
		DB:     rt.DB,
		Repo:   invoices.NewRepository(conn),
		Outbox: stack.Outbox,
		Ledger: stack.Ledger,
	}
	if cfg.FeatureFlags.CashSubLedger {
		bridgeParams.Cash = cashService
	}
	invoiceBridge, err := invoices.NewBridge(bridgeParams)
	if err != nil {
		return fmt.Errorf("invoice bridge: %w", err)
	}
	recoveryService, err := reconciliation.NewService(reconciliation.ServiceParams{
		Logger:  logg,
		Repo:    reconciliation.NewRepository(conn),
		Ledger:  stack.Ledger,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		return fmt.Errorf("reconciliation service: %w", err)
	}

	// PORT is set by the hosting platform and wins over config.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(
			cfg,
			logg,
			rt.DB,
			redisClient,
			registry,
			metrics.NewHTTPMetrics(registry),
			stack.Ledger,
			stack.Credit,
			recoveryService,
			invoiceBridge,
			cashService,
			outbox.NewDLQRepository(conn),
		),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx = logg.WithField(ctx, "addr", server.Addr)
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logg.Info(ctx, "starting api server")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
