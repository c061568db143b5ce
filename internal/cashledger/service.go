// Package cashledger records the physical cash handled on a delivery. Its
// entries are keyed by order and invoice and never touch account balances.
package cashledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/money"
)

const cashEntryUniqueIndex = "ux_cash_ledger_entries_invoice_direction"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Entry is the API view of one cash sub-ledger row.
type Entry struct {
	ID          uuid.UUID            `json:"id"`
	OrderID     uuid.UUID            `json:"order_id"`
	InvoiceID   uuid.UUID            `json:"invoice_id"`
	Direction   enums.EntryDirection `json:"direction"`
	Method      enums.CashMethod     `json:"method"`
	Amount      decimal.Decimal      `json:"amount"`
	Description string               `json:"description"`
	CreatedAt   time.Time            `json:"created_at"`
}

func entryFromModel(m models.CashLedgerEntry) Entry {
	return Entry{
		ID:          m.ID,
		OrderID:     m.OrderID,
		InvoiceID:   m.InvoiceID,
		Direction:   m.Direction,
		Method:      m.Method,
		Amount:      m.Amount,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// PostResult reports the cash rows of an invoice after a posting attempt.
type PostResult struct {
	OrderID   uuid.UUID `json:"order_id"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	Entries   []Entry   `json:"entries"`
	Created   bool      `json:"created"`
	NoOp      bool      `json:"no_op"`
}

type Service interface {
	PostCashEntries(ctx context.Context, orderID, invoiceID uuid.UUID, method enums.CashMethod) (*PostResult, error)
}

type service struct {
	db   txRunner
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(db txRunner, repo Repository, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cash ledger repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{db: db, repo: repo, logg: logg, now: time.Now}, nil
}

// PostCashEntries writes the driver-cash credit and invoice-total debit for an
// invoice once. Later calls return the rows already written.
func (s *service) PostCashEntries(ctx context.Context, orderID, invoiceID uuid.UUID, method enums.CashMethod) (*PostResult, error) {
	if orderID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and invoice id required")
	}
	if method == "" {
		method = enums.CashMethodCash
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cash method").
			WithDetails(map[string]any{"method": method})
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	invoice, err := s.repo.FindInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	if invoice.OrderID != order.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice does not belong to order")
	}

	result := &PostResult{OrderID: orderID, InvoiceID: invoiceID}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			for _, e := range existing {
				result.Entries = append(result.Entries, entryFromModel(e))
			}
			return nil
		}

		cash, _ := money.FromNull(order.CashCollected)
		total := invoiceTotal(invoice)
		if !cash.IsPositive() && !total.IsPositive() {
			result.NoOp = true
			return nil
		}

		now := s.now().UTC()
		if cash.IsPositive() {
			entry := models.CashLedgerEntry{
				OrderID:     orderID,
				InvoiceID:   invoiceID,
				Direction:   enums.EntryDirectionCredit,
				Method:      method,
				Amount:      cash,
				Description: fmt.Sprintf("Driver cash collected for %s", invoice.InvoiceNumber),
				CreatedAt:   now,
			}
			if err := repo.Create(ctx, &entry); err != nil {
				return err
			}
			result.Entries = append(result.Entries, entryFromModel(entry))
		}
		if total.IsPositive() {
			entry := models.CashLedgerEntry{
				OrderID:     orderID,
				InvoiceID:   invoiceID,
				Direction:   enums.EntryDirectionDebit,
				Method:      method,
				Amount:      total,
				Description: fmt.Sprintf("Invoice %s total", invoice.InvoiceNumber),
				CreatedAt:   now,
			}
			if err := repo.Create(ctx, &entry); err != nil {
				return err
			}
			result.Entries = append(result.Entries, entryFromModel(entry))
		}
		result.Created = true
		return nil
	})
	if isDuplicatePosting(err) {
		// a concurrent poster for this invoice committed first
		return s.existing(ctx, orderID, invoiceID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransaction, err, "post cash entries")
	}

	if result.NoOp {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":   orderID.String(),
			"invoice_id": invoiceID.String(),
		}), "cash ledger posting skipped: no cash and no invoice total")
	}
	return result, nil
}

func (s *service) existing(ctx context.Context, orderID, invoiceID uuid.UUID) (*PostResult, error) {
	rows, err := s.repo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cash entries")
	}
	result := &PostResult{OrderID: orderID, InvoiceID: invoiceID}
	for _, row := range rows {
		result.Entries = append(result.Entries, entryFromModel(row))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID.String(),
		"invoice_id": invoiceID.String(),
	}), "cash ledger already posted by a concurrent call")
	return result, nil
}

// isDuplicatePosting matches the (invoice_id, direction) unique index. sqlite
// names the columns instead of the index.
func isDuplicatePosting(err error) bool {
	return dbpkg.IsUniqueViolation(err, cashEntryUniqueIndex) ||
		dbpkg.IsUniqueViolation(err, "cash_ledger_entries.invoice_id")
}

func invoiceTotal(invoice *models.Invoice) decimal.Decimal {
	if total, ok := money.FromNull(invoice.TotalAmount); ok {
		return total
	}
	return money.Round(invoice.BaseAmount)
}
