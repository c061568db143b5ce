package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// Invoice is the settlement document issued against an order.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:text;not null"`
	TotalAmount   decimal.NullDecimal `gorm:"column:total_amount;type:numeric(14,2)"`
	BaseAmount    decimal.Decimal     `gorm:"column:base_amount;type:numeric(14,2);not null"`
	FinalisedAt   *time.Time          `gorm:"column:finalised_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
