package ledger

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

// Repository manages persistence for ledger entries and account aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error)
	EnsureAggregate(ctx context.Context, customerID uuid.UUID, now time.Time) error
	LockAggregate(ctx context.Context, customerID uuid.UUID) (*models.AccountBalance, error)
	FindAggregate(ctx context.Context, customerID uuid.UUID) (*models.AccountBalance, error)
	UpdateAggregate(ctx context.Context, agg *models.AccountBalance, expectedVersion int64) (bool, error)
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListEntries(ctx context.Context, customerID uuid.UUID) ([]models.LedgerEntry, error)
	PageEntries(ctx context.Context, customerID uuid.UUID, offset, limit int) ([]models.LedgerEntry, int64, error)
	OrderNumbers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	InvoiceNumbers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	ListEligibleAggregates(ctx context.Context) ([]models.AccountBalance, error)
	ListAccountIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", customerID).Count(&count).Error
	return count > 0, err
}

// EnsureAggregate inserts a zeroed aggregate unless one already exists.
func (r *repository) EnsureAggregate(ctx context.Context, customerID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Exec(`
INSERT INTO account_balances
	(id, customer_id, current_balance, total_paid, total_orders, outstanding_amount, status, version, created_at, updated_at)
VALUES (?, ?, 0, 0, 0, 0, ?, 0, ?, ?)
ON CONFLICT (customer_id) DO NOTHING`,
		uuid.New(), customerID, enums.AccountStatusActive, now, now,
	).Error
}

func (r *repository) LockAggregate(ctx context.Context, customerID uuid.UUID) (*models.AccountBalance, error) {
	var agg models.AccountBalance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// FindAggregate returns nil without error when the account has no aggregate yet.
func (r *repository) FindAggregate(ctx context.Context, customerID uuid.UUID) (*models.AccountBalance, error) {
	var agg models.AccountBalance
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&agg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agg, nil
}

// UpdateAggregate writes the aggregate only if its stored version still
// equals expectedVersion. It reports false when another writer won.
func (r *repository) UpdateAggregate(ctx context.Context, agg *models.AccountBalance, expectedVersion int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.AccountBalance{}).
		Where("id = ? AND version = ?", agg.ID, expectedVersion).
		Updates(map[string]any{
			"current_balance":     agg.CurrentBalance,
			"total_paid":          agg.TotalPaid,
			"total_orders":        agg.TotalOrders,
			"outstanding_amount":  agg.OutstandingAmount,
			"status":              agg.Status,
			"last_transaction_at": agg.LastTransactionAt,
			"last_payment_at":     agg.LastPaymentAt,
			"version":             agg.Version,
			"updated_at":          agg.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, customerID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) PageEntries(ctx context.Context, customerID uuid.UUID, offset, limit int) ([]models.LedgerEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	return entries, total, err
}

type numberRow struct {
	ID     uuid.UUID
	Number string
}

func (r *repository) OrderNumbers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	return r.numbers(ctx, &models.Order{}, "order_number", ids)
}

func (r *repository) InvoiceNumbers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	return r.numbers(ctx, &models.Invoice{}, "invoice_number", ids)
}

func (r *repository) numbers(ctx context.Context, model any, column string, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []numberRow
	if err := r.db.WithContext(ctx).
		Model(model).
		Select("id, "+column+" AS number").
		Where("id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Number
	}
	return out, nil
}

// ListEligibleAggregates returns aggregates of credit-eligible customers.
func (r *repository) ListEligibleAggregates(ctx context.Context) ([]models.AccountBalance, error) {
	var rows []models.AccountBalance
	err := r.db.WithContext(ctx).
		Model(&models.AccountBalance{}).
		Joins("JOIN customers ON customers.id = account_balances.customer_id").
		Where("customers.credit_eligible = ?", true).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.AccountBalance{}).
		Order("customer_id ASC").
		Pluck("customer_id", &ids).Error
	return ids, err
}
