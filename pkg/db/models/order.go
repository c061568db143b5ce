package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// Order is the obligation a delivery creates. The ledger only reads it, except
// for the reconciliation flags written by the recovery job.
type Order struct {
	ID                        uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID                uuid.UUID                `gorm:"column:customer_id;type:uuid;not null"`
	OrderNumber               string                   `gorm:"column:order_number;not null"`
	PaymentMethod             enums.OrderPaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status                    enums.OrderStatus        `gorm:"column:status;type:text;not null"`
	Amount                    decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	FinalAmount               decimal.NullDecimal      `gorm:"column:final_amount;type:numeric(14,2)"`
	CashCollected             decimal.NullDecimal      `gorm:"column:cash_collected;type:numeric(14,2)"`
	DeliveredQuantity         decimal.NullDecimal      `gorm:"column:delivered_quantity;type:numeric(14,3)"`
	PaymentConfirmationStatus enums.ConfirmationStatus `gorm:"column:payment_confirmation_status;type:text;not null"`
	GatewayOrderID            *string                  `gorm:"column:gateway_order_id"`
	GatewayPaymentID          *string                  `gorm:"column:gateway_payment_id"`
	GatewaySignature          *string                  `gorm:"column:gateway_signature"`
	LedgerReconciled          bool                     `gorm:"column:ledger_reconciled;not null"`
	NeedsManualReview         bool                     `gorm:"column:needs_manual_review;not null"`
	ReconciliationError       *string                  `gorm:"column:reconciliation_error"`
	ReconciledAt              *time.Time               `gorm:"column:reconciled_at"`
	CreatedAt                 time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
