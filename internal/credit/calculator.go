package credit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/money"
)

// Availability is the credit position of one customer at read time.
type Availability struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	Eligible   bool            `json:"credit_eligible"`
	Limit      decimal.Decimal `json:"credit_limit"`
	Used       decimal.Decimal `json:"credit_limit_used"`
	Available  decimal.Decimal `json:"amount_available"`
	OpenCredit decimal.Decimal `json:"open_credit"`
	Repayments decimal.Decimal `json:"repayments"`
}

// Calculator derives credit availability from open credit orders and
// repayment entries. It never reads the account aggregate.
type Calculator interface {
	ComputeAvailability(ctx context.Context, customerID uuid.UUID) (*Availability, error)
	PersistAvailability(ctx context.Context, customerID uuid.UUID)
	EnsureCapacity(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*Availability, error)
}

type calculator struct {
	repo Repository
	logg *logger.Logger
}

func NewCalculator(repo Repository, logg *logger.Logger) (Calculator, error) {
	if repo == nil {
		return nil, fmt.Errorf("credit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &calculator{repo: repo, logg: logg}, nil
}

func (c *calculator) ComputeAvailability(ctx context.Context, customerID uuid.UUID) (*Availability, error) {
	customer, err := c.repo.FindCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}

	orders, err := c.repo.ListOpenCreditOrders(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open credit orders")
	}
	repayments, err := c.repo.ListRepaymentAmounts(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit repayments")
	}

	open := decimal.Zero
	for _, order := range orders {
		amount := order.Amount
		if final, ok := money.FromNull(order.FinalAmount); ok {
			amount = final
		}
		open = open.Add(money.Round(amount))
	}
	open = money.Round(open)
	repaid := money.Sum(repayments...)

	limit := money.Round(customer.CreditLimit)
	if limit.IsNegative() {
		limit = decimal.Zero
	}
	used := money.Clamp(open.Sub(repaid), decimal.Zero, limit)

	return &Availability{
		CustomerID: customerID,
		Eligible:   customer.CreditEligible,
		Limit:      limit,
		Used:       used,
		Available:  limit.Sub(used),
		OpenCredit: open,
		Repayments: repaid,
	}, nil
}

// PersistAvailability refreshes the cached columns on the customer row.
// Failures are logged and dropped.
func (c *calculator) PersistAvailability(ctx context.Context, customerID uuid.UUID) {
	ctx = c.logg.WithAccountID(ctx, customerID.String())
	availability, err := c.ComputeAvailability(ctx, customerID)
	if err != nil {
		c.logg.Error(ctx, "compute credit availability failed", err)
		return
	}
	if err := c.repo.UpdateAvailability(ctx, customerID, availability.Used, availability.Available); err != nil {
		c.logg.Error(c.logg.WithFields(ctx, map[string]any{
			"credit_limit_used": availability.Used.String(),
			"amount_available":  availability.Available.String(),
		}), "persist credit availability failed", err)
	}
}

// EnsureCapacity admits a new credit order of amount or refuses it.
func (c *calculator) EnsureCapacity(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*Availability, error) {
	amount = money.Round(amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid credit amount").
			WithDetails(map[string]any{"amount": "must be greater than zero"})
	}
	availability, err := c.ComputeAvailability(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !availability.Eligible {
		return availability, pkgerrors.New(pkgerrors.CodeStateConflict, "account is not credit eligible").
			WithDetails(map[string]any{"customer_id": customerID})
	}
	if amount.GreaterThan(availability.Available) {
		return availability, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient credit").
			WithDetails(map[string]any{
				"requested": money.String(amount),
				"available": money.String(availability.Available),
			})
	}
	return availability, nil
}
