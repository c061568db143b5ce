package credit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// Repository reads the inputs of the availability formula and writes the
// cached result back onto the customer.
type Repository interface {
	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	ListOpenCreditOrders(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	ListRepaymentAmounts(ctx context.Context, customerID uuid.UUID) ([]decimal.Decimal, error)
	UpdateAvailability(ctx context.Context, customerID uuid.UUID, used, available decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) ListOpenCreditOrders(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Select("id", "amount", "final_amount").
		Where("customer_id = ?", customerID).
		Where("payment_method = ?", enums.OrderPaymentMethodCredit).
		Where("status NOT IN ?", enums.ClosedOrderStatuses()).
		Find(&orders).Error
	return orders, err
}

func (r *repository) ListRepaymentAmounts(ctx context.Context, customerID uuid.UUID) ([]decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("customer_id = ?", customerID).
		Where("direction = ? AND category = ?", enums.EntryDirectionCredit, enums.EntryCategoryCreditRepayment).
		Pluck("amount", &amounts).Error
	return amounts, err
}

func (r *repository) UpdateAvailability(ctx context.Context, customerID uuid.UUID, used, available decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]any{
			"credit_limit_used": used,
			"amount_available":  available,
		}).Error
}
