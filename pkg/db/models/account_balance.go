package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// AccountBalance is the per-customer running aggregate of the entry log.
// Version guards concurrent writers.
type AccountBalance struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID        uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;uniqueIndex"`
	CurrentBalance    decimal.Decimal     `gorm:"column:current_balance;type:numeric(14,2);not null"`
	TotalPaid         decimal.Decimal     `gorm:"column:total_paid;type:numeric(14,2);not null"`
	TotalOrders       decimal.Decimal     `gorm:"column:total_orders;type:numeric(14,2);not null"`
	OutstandingAmount decimal.Decimal     `gorm:"column:outstanding_amount;type:numeric(14,2);not null"`
	Status            enums.AccountStatus `gorm:"column:status;type:text;not null"`
	LastTransactionAt *time.Time          `gorm:"column:last_transaction_at"`
	LastPaymentAt     *time.Time          `gorm:"column:last_payment_at"`
	Version           int64               `gorm:"column:version;not null"`
	CreatedAt         time.Time           `gorm:"column:created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at"`
}

func (a *AccountBalance) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
