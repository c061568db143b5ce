package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// Repository covers the invoice and order reads the bridge needs plus the
// one ledger mutation it owns: removing entries before a repost.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	LockInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	UpdateStatus(ctx context.Context, invoiceID uuid.UUID, status enums.InvoiceStatus, finalisedAt *time.Time, now time.Time) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	DeleteInvoiceEntries(ctx context.Context, invoiceID uuid.UUID, directions []enums.EntryDirection) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	return r.findInvoice(r.db.WithContext(ctx), invoiceID)
}

func (r *repository) LockInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	return r.findInvoice(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), invoiceID)
}

func (r *repository) findInvoice(q *gorm.DB, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := q.Where("id = ?", invoiceID).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) UpdateStatus(ctx context.Context, invoiceID uuid.UUID, status enums.InvoiceStatus, finalisedAt *time.Time, now time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if finalisedAt != nil {
		updates["finalised_at"] = *finalisedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(updates).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) DeleteInvoiceEntries(ctx context.Context, invoiceID uuid.UUID, directions []enums.EntryDirection) (int64, error) {
	if len(directions) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("invoice_id = ? AND direction IN ?", invoiceID, directions).
		Delete(&models.LedgerEntry{})
	return res.RowsAffected, res.Error
}
