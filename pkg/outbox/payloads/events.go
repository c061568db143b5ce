package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// LedgerEntryRecordedEvent is emitted in the same transaction as every entry.
type LedgerEntryRecordedEvent struct {
	EntryID       uuid.UUID            `json:"entry_id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	OrderID       *uuid.UUID           `json:"order_id,omitempty"`
	InvoiceID     *uuid.UUID           `json:"invoice_id,omitempty"`
	Direction     enums.EntryDirection `json:"direction"`
	Category      enums.EntryCategory  `json:"category"`
	Channel       enums.PaymentChannel `json:"payment_channel"`
	Amount        decimal.Decimal      `json:"amount"`
	BalanceBefore decimal.Decimal      `json:"balance_before"`
	BalanceAfter  decimal.Decimal      `json:"balance_after"`
	RecordedAt    time.Time            `json:"recorded_at"`
}

// AccountRecalculatedEvent carries the rebuilt aggregate totals.
type AccountRecalculatedEvent struct {
	CustomerID  uuid.UUID           `json:"customer_id"`
	TotalPaid   decimal.Decimal     `json:"total_paid"`
	TotalOrders decimal.Decimal     `json:"total_orders"`
	Outstanding decimal.Decimal     `json:"outstanding_amount"`
	Status      enums.AccountStatus `json:"status"`
	EntryCount  int                 `json:"entry_count"`
	Version     int64               `json:"version"`
}

type InvoiceStatusChangedEvent struct {
	InvoiceID  uuid.UUID           `json:"invoice_id"`
	CustomerID uuid.UUID           `json:"customer_id"`
	OrderID    uuid.UUID           `json:"order_id"`
	From       enums.InvoiceStatus `json:"from"`
	To         enums.InvoiceStatus `json:"to"`
	ChangedAt  time.Time           `json:"changed_at"`
}

// InvoiceFinalisedEvent is emitted once per invoice when it reaches finalised.
type InvoiceFinalisedEvent struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	CustomerID    uuid.UUID `json:"customer_id"`
	OrderID       uuid.UUID `json:"order_id"`
	FinalisedAt   time.Time `json:"finalised_at"`
}
