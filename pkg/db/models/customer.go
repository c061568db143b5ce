package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is the account holder. Credit policy lives here; CreditLimitUsed and
// AmountAvailable are a cache refreshed from the ledger, never a source of truth.
type Customer struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string              `gorm:"column:name;not null"`
	Phone           *string             `gorm:"column:phone"`
	CreditEligible  bool                `gorm:"column:credit_eligible;not null"`
	CreditLimit     decimal.Decimal     `gorm:"column:credit_limit;type:numeric(14,2);not null"`
	FuelRate        decimal.NullDecimal `gorm:"column:fuel_rate;type:numeric(14,2)"`
	CreditLimitUsed decimal.Decimal     `gorm:"column:credit_limit_used;type:numeric(14,2);not null"`
	AmountAvailable decimal.Decimal     `gorm:"column:amount_available;type:numeric(14,2);not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
