// Package reconciliation finds confirmed payments that never reached the
// ledger and records them.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/fuelops/fuelops-backend/internal/ledger"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
	"github.com/fuelops/fuelops-backend/pkg/money"
	"github.com/fuelops/fuelops-backend/pkg/types"
)

const (
	outcomeRecovered      = "recovered"
	outcomeAlreadyPresent = "already_present"
	outcomeFailed         = "failed"
)

type ledgerWriter interface {
	RecordCollection(ctx context.Context, input ledger.RecordCollectionInput) (*ledger.WriteResult, error)
	Recalculate(ctx context.Context, customerID uuid.UUID) (*ledger.Totals, error)
}

// RecoveryResult summarises one AutoRecover run.
type RecoveryResult struct {
	CustomerID     uuid.UUID      `json:"customer_id"`
	Checked        int            `json:"checked"`
	Recovered      int            `json:"recovered"`
	AlreadyPresent int            `json:"already_present"`
	Failed         int            `json:"failed"`
	Errors         []string       `json:"errors"`
	Totals         *ledger.Totals `json:"totals,omitempty"`
}

type Service interface {
	AutoRecover(ctx context.Context, customerID uuid.UUID) (*RecoveryResult, error)
}

type ServiceParams struct {
	Logger  *logger.Logger
	Repo    Repository
	Ledger  ledgerWriter
	Metrics *metrics.LedgerMetrics
	Now     func() time.Time
}

type service struct {
	logg    *logger.Logger
	repo    Repository
	ledger  ledgerWriter
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger writer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:    params.Logger,
		repo:    params.Repo,
		ledger:  params.Ledger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// AutoRecover walks the account's confirmed, unreconciled orders one at a
// time. A failing order is flagged for manual review and the run moves on.
func (s *service) AutoRecover(ctx context.Context, customerID uuid.UUID) (*RecoveryResult, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	ok, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	ctx = s.logg.WithAccountID(ctx, customerID.String())

	orders, err := s.repo.ListPendingOrders(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unreconciled orders")
	}

	result := &RecoveryResult{CustomerID: customerID, Errors: []string{}}
	var errs error
	for i := range orders {
		order := orders[i]
		result.Checked++
		outcome, err := s.recoverOrder(ctx, customerID, &order)
		switch {
		case err != nil:
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.OrderNumber, err))
			s.flag(ctx, &order, err)
		case outcome == outcomeAlreadyPresent:
			result.AlreadyPresent++
		default:
			result.Recovered++
		}
	}
	for _, e := range multierr.Errors(errs) {
		result.Errors = append(result.Errors, e.Error())
	}

	s.metrics.AddRecovery(outcomeRecovered, result.Recovered)
	s.metrics.AddRecovery(outcomeAlreadyPresent, result.AlreadyPresent)
	s.metrics.AddRecovery(outcomeFailed, result.Failed)

	if result.Recovered > 0 {
		totals, err := s.ledger.Recalculate(ctx, customerID)
		if err != nil {
			return nil, err
		}
		result.Totals = totals
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"checked":         result.Checked,
		"recovered":       result.Recovered,
		"already_present": result.AlreadyPresent,
		"failed":          result.Failed,
	}), "ledger auto-recovery finished")
	return result, nil
}

func (s *service) recoverOrder(ctx context.Context, customerID uuid.UUID, order *models.Order) (string, error) {
	exists, err := s.repo.HasCollection(ctx, customerID, order.ID)
	if err != nil {
		return "", fmt.Errorf("check ledger entry: %w", err)
	}
	outcome := outcomeAlreadyPresent
	if !exists {
		amount := order.Amount
		if final, ok := money.FromNull(order.FinalAmount); ok {
			amount = final
		}
		if _, err := s.ledger.RecordCollection(ctx, ledger.RecordCollectionInput{
			CustomerID:   customerID,
			OrderID:      &order.ID,
			Amount:       amount,
			Description:  fmt.Sprintf("Payment received for order %s", order.OrderNumber),
			Channel:      enums.ChannelForOrderMethod(order.PaymentMethod),
			Category:     enums.EntryCategoryCollection,
			ExternalRefs: gatewayRefs(order),
		}); err != nil {
			return "", err
		}
		outcome = outcomeRecovered
	}
	if err := s.repo.MarkReconciled(ctx, order.ID, s.now().UTC()); err != nil {
		return "", fmt.Errorf("mark order reconciled: %w", err)
	}
	return outcome, nil
}

func (s *service) flag(ctx context.Context, order *models.Order, cause error) {
	orderCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"amount":       money.String(order.Amount),
	})
	s.logg.Error(orderCtx, "ledger auto-recovery failed for order", cause)
	if err := s.repo.MarkForReview(ctx, order.ID, cause.Error()); err != nil {
		s.logg.Error(orderCtx, "flag order for manual review failed", err)
	}
}

func gatewayRefs(order *models.Order) types.ExternalRefs {
	refs := types.ExternalRefs{}
	if order.GatewayOrderID != nil {
		refs[types.RefGatewayOrderID] = *order.GatewayOrderID
	}
	if order.GatewayPaymentID != nil {
		refs[types.RefGatewayPaymentID] = *order.GatewayPaymentID
	}
	if order.GatewaySignature != nil {
		refs[types.RefGatewaySignature] = *order.GatewaySignature
	}
	return refs
}
