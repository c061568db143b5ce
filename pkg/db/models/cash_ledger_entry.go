package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// CashLedgerEntry tracks physical cash handled per delivery. It is keyed by
// order and invoice and never feeds the customer balance.
type CashLedgerEntry struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	InvoiceID   uuid.UUID            `gorm:"column:invoice_id;type:uuid;not null"`
	Direction   enums.EntryDirection `gorm:"column:direction;type:text;not null"`
	Method      enums.CashMethod     `gorm:"column:method;type:text;not null"`
	Amount      decimal.Decimal      `gorm:"column:amount;type:numeric(14,2);not null"`
	Description string               `gorm:"column:description;not null"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (e *CashLedgerEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
