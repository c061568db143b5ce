package bootstrap

import (
	"fmt"

	"github.com/fuelops/fuelops-backend/internal/credit"
	"github.com/fuelops/fuelops-backend/internal/ledger"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
)

// LedgerStack is the accounting core shared by the API and the cron worker.
type LedgerStack struct {
	Credit     credit.Calculator
	OutboxRepo *outbox.Repository
	Outbox     *outbox.Service
	Ledger     ledger.Service
}

func (rt *Runtime) LedgerStack(ledgerMetrics *metrics.LedgerMetrics) (*LedgerStack, error) {
	conn := rt.DB.DB()
	calc, err := credit.NewCalculator(credit.NewRepository(conn), rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("credit calculator: %w", err)
	}
	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, rt.Logger)
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Logger:       rt.Logger,
		DB:           rt.DB,
		Repo:         ledger.NewRepository(conn),
		Outbox:       outboxService,
		Availability: calc,
		Metrics:      ledgerMetrics,
		Config:       rt.Config.Ledger,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	return &LedgerStack{
		Credit:     calc,
		OutboxRepo: outboxRepo,
		Outbox:     outboxService,
		Ledger:     ledgerService,
	}, nil
}
