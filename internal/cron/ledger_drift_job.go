package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/fuelops/fuelops-backend/internal/ledger"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
)

type driftAuditor interface {
	ListAccountIDs(ctx context.Context) ([]uuid.UUID, error)
	Audit(ctx context.Context, customerID uuid.UUID) (*ledger.Drift, error)
	Recalculate(ctx context.Context, customerID uuid.UUID) (*ledger.Totals, error)
}

type LedgerDriftJobParams struct {
	Logger  *logger.Logger
	Ledger  driftAuditor
	Metrics *metrics.LedgerMetrics
	// Repair rebuilds drifted aggregates from their entries.
	Repair bool
}

// NewLedgerDriftJob audits every account aggregate against its entry log.
func NewLedgerDriftJob(params LedgerDriftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerDriftJob{
		logg:    params.Logger,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		repair:  params.Repair,
	}, nil
}

type ledgerDriftJob struct {
	logg    *logger.Logger
	ledger  driftAuditor
	metrics *metrics.LedgerMetrics
	repair  bool
}

func (j *ledgerDriftJob) Name() string { return "ledger-drift-audit" }

func (j *ledgerDriftJob) Run(ctx context.Context) error {
	ids, err := j.ledger.ListAccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	var (
		errs     error
		drifted  int
		repaired int
	)
	for _, id := range ids {
		accountCtx := j.logg.WithAccountID(ctx, id.String())
		drift, err := j.ledger.Audit(accountCtx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("audit %s: %w", id, err))
			continue
		}
		if !drift.HasDrift {
			continue
		}
		drifted++
		j.logg.Warn(j.logg.WithFields(accountCtx, map[string]any{
			"stored_total_paid":     drift.Stored.TotalPaid.String(),
			"computed_total_paid":   drift.Computed.TotalPaid.String(),
			"stored_total_orders":   drift.Stored.TotalOrders.String(),
			"computed_total_orders": drift.Computed.TotalOrders.String(),
			"stored_outstanding":    drift.Stored.OutstandingAmount.String(),
			"computed_outstanding":  drift.Computed.OutstandingAmount.String(),
		}), "account aggregate drifted from entry log")

		if !j.repair {
			continue
		}
		if _, err := j.ledger.Recalculate(accountCtx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("repair %s: %w", id, err))
			continue
		}
		repaired++
	}

	j.metrics.SetDrift(drifted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"accounts": len(ids),
		"drifted":  drifted,
		"repaired": repaired,
		"errors":   len(multierr.Errors(errs)),
	}), "ledger drift audit complete")
	return errs
}
