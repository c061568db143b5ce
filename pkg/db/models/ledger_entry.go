package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/enums"
	"github.com/fuelops/fuelops-backend/pkg/types"
)

// LedgerEntry is one immutable movement on a customer account.
type LedgerEntry struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID        uuid.UUID                `gorm:"column:customer_id;type:uuid;not null"`
	OrderID           *uuid.UUID               `gorm:"column:order_id;type:uuid"`
	InvoiceID         *uuid.UUID               `gorm:"column:invoice_id;type:uuid"`
	Direction         enums.EntryDirection     `gorm:"column:direction;type:text;not null"`
	Category          enums.EntryCategory      `gorm:"column:category;type:text;not null"`
	Amount            decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	BalanceBefore     decimal.Decimal          `gorm:"column:balance_before;type:numeric(14,2);not null"`
	BalanceAfter      decimal.Decimal          `gorm:"column:balance_after;type:numeric(14,2);not null"`
	Description       string                   `gorm:"column:description;not null"`
	PaymentChannel    enums.PaymentChannel     `gorm:"column:payment_channel;type:text;not null"`
	PaymentStatus     enums.EntryPaymentStatus `gorm:"column:payment_status;type:text;not null"`
	ExternalRefs      types.ExternalRefs       `gorm:"column:external_refs;type:jsonb"`
	DeliveredQuantity decimal.NullDecimal      `gorm:"column:delivered_quantity;type:numeric(14,3)"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
