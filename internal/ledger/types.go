package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	"github.com/fuelops/fuelops-backend/pkg/pagination"
	"github.com/fuelops/fuelops-backend/pkg/types"
)

// RecordCollectionInput describes money received from a customer.
type RecordCollectionInput struct {
	CustomerID    uuid.UUID
	OrderID       *uuid.UUID
	InvoiceID     *uuid.UUID
	Amount        decimal.Decimal
	Description   string
	Channel       enums.PaymentChannel
	Category      enums.EntryCategory
	PaymentStatus enums.EntryPaymentStatus
	ExternalRefs  types.ExternalRefs
}

// RecordObligationInput describes value delivered to a customer.
type RecordObligationInput struct {
	CustomerID        uuid.UUID
	OrderID           *uuid.UUID
	InvoiceID         *uuid.UUID
	Amount            decimal.Decimal
	Description       string
	Channel           enums.PaymentChannel
	PaymentStatus     enums.EntryPaymentStatus
	ExternalRefs      types.ExternalRefs
	DeliveredQuantity *decimal.Decimal
}

// Balance is the read model of an account aggregate.
type Balance struct {
	CustomerID        uuid.UUID           `json:"customer_id"`
	CurrentBalance    decimal.Decimal     `json:"current_balance"`
	TotalPaid         decimal.Decimal     `json:"total_paid"`
	TotalOrders       decimal.Decimal     `json:"total_orders"`
	OutstandingAmount decimal.Decimal     `json:"outstanding_amount"`
	Status            enums.AccountStatus `json:"status"`
	LastTransactionAt *time.Time          `json:"last_transaction_at,omitempty"`
	LastPaymentAt     *time.Time          `json:"last_payment_at,omitempty"`
	Version           int64               `json:"version"`
}

func emptyBalance(customerID uuid.UUID) Balance {
	return Balance{
		CustomerID:        customerID,
		CurrentBalance:    decimal.Zero,
		TotalPaid:         decimal.Zero,
		TotalOrders:       decimal.Zero,
		OutstandingAmount: decimal.Zero,
		Status:            enums.AccountStatusActive,
	}
}

func balanceFromModel(agg *models.AccountBalance) Balance {
	return Balance{
		CustomerID:        agg.CustomerID,
		CurrentBalance:    agg.CurrentBalance,
		TotalPaid:         agg.TotalPaid,
		TotalOrders:       agg.TotalOrders,
		OutstandingAmount: agg.OutstandingAmount,
		Status:            agg.Status,
		LastTransactionAt: agg.LastTransactionAt,
		LastPaymentAt:     agg.LastPaymentAt,
		Version:           agg.Version,
	}
}

// EntryView is a ledger entry with its source documents resolved for display.
type EntryView struct {
	ID                uuid.UUID                `json:"id"`
	CustomerID        uuid.UUID                `json:"customer_id"`
	OrderID           *uuid.UUID               `json:"order_id,omitempty"`
	OrderNumber       *string                  `json:"order_number,omitempty"`
	InvoiceID         *uuid.UUID               `json:"invoice_id,omitempty"`
	InvoiceNumber     *string                  `json:"invoice_number,omitempty"`
	Direction         enums.EntryDirection     `json:"direction"`
	Category          enums.EntryCategory      `json:"category"`
	Amount            decimal.Decimal          `json:"amount"`
	BalanceBefore     decimal.Decimal          `json:"balance_before"`
	BalanceAfter      decimal.Decimal          `json:"balance_after"`
	Description       string                   `json:"description"`
	PaymentChannel    enums.PaymentChannel     `json:"payment_channel"`
	PaymentStatus     enums.EntryPaymentStatus `json:"payment_status"`
	ExternalRefs      types.ExternalRefs       `json:"external_refs,omitempty"`
	DeliveredQuantity *decimal.Decimal         `json:"delivered_quantity,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
}

func entryView(e models.LedgerEntry) EntryView {
	view := EntryView{
		ID:             e.ID,
		CustomerID:     e.CustomerID,
		OrderID:        e.OrderID,
		InvoiceID:      e.InvoiceID,
		Direction:      e.Direction,
		Category:       e.Category,
		Amount:         e.Amount,
		BalanceBefore:  e.BalanceBefore,
		BalanceAfter:   e.BalanceAfter,
		Description:    e.Description,
		PaymentChannel: e.PaymentChannel,
		PaymentStatus:  e.PaymentStatus,
		ExternalRefs:   e.ExternalRefs,
		CreatedAt:      e.CreatedAt,
	}
	if e.DeliveredQuantity.Valid {
		qty := e.DeliveredQuantity.Decimal
		view.DeliveredQuantity = &qty
	}
	return view
}

// WriteResult is returned by the write path once the transaction commits.
type WriteResult struct {
	Entry    EntryView `json:"entry"`
	Balance  Balance   `json:"balance"`
	Attempts int       `json:"-"`
}

// TransactionPage is one page of history, newest first.
type TransactionPage struct {
	Entries    []EntryView     `json:"entries"`
	Pagination pagination.Meta `json:"pagination"`
}

// Totals are entry-log sums for one account.
type Totals struct {
	CustomerID        uuid.UUID       `json:"customer_id"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalOrders       decimal.Decimal `json:"total_orders"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	EntryCount        int             `json:"entry_count"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty"`
	LastPaymentAt     *time.Time      `json:"last_payment_at,omitempty"`
}

// Drift compares a stored aggregate with a fresh entry sum. It is a value,
// not an error: HasDrift reports a reconciliation gap.
type Drift struct {
	CustomerID   uuid.UUID       `json:"customer_id"`
	Stored       Balance         `json:"stored"`
	Computed     Totals          `json:"computed"`
	PaidDelta    decimal.Decimal `json:"paid_delta"`
	OrdersDelta  decimal.Decimal `json:"orders_delta"`
	HasAggregate bool            `json:"has_aggregate"`
	HasDrift     bool            `json:"has_drift"`
}

// AdminSummary aggregates credit-eligible accounts.
type AdminSummary struct {
	TotalAccounts      int             `json:"total_accounts"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	TotalReceived      decimal.Decimal `json:"total_received"`
	TotalObligated     decimal.Decimal `json:"total_obligated"`
	AverageOutstanding decimal.Decimal `json:"average_outstanding"`
	OverdueCount       int             `json:"overdue_count"`
	OverdueWindowDays  int             `json:"overdue_window_days"`
}
