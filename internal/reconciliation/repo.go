package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
)

type Repository interface {
	CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error)
	ListPendingOrders(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	HasCollection(ctx context.Context, customerID, orderID uuid.UUID) (bool, error)
	MarkReconciled(ctx context.Context, orderID uuid.UUID, at time.Time) error
	MarkForReview(ctx context.Context, orderID uuid.UUID, reason string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", customerID).Count(&count).Error
	return count > 0, err
}

// ListPendingOrders returns confirmed payments not yet matched to a ledger credit.
func (r *repository) ListPendingOrders(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Where("payment_confirmation_status = ?", enums.ConfirmationStatusCompleted).
		Where("ledger_reconciled = ?", false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) HasCollection(ctx context.Context, customerID, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("customer_id = ? AND order_id = ? AND direction = ?", customerID, orderID, enums.EntryDirectionCredit).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) MarkReconciled(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"ledger_reconciled":    true,
			"needs_manual_review":  false,
			"reconciliation_error": nil,
			"reconciled_at":        at,
		}).Error
}

func (r *repository) MarkForReview(ctx context.Context, orderID uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"needs_manual_review":  true,
			"reconciliation_error": reason,
		}).Error
}
