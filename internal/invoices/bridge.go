// Package invoices moves settlement documents through their lifecycle and
// posts the ledger entries a finalised invoice implies.
package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/internal/cashledger"
	"github.com/fuelops/fuelops-backend/internal/ledger"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/money"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
	"github.com/fuelops/fuelops-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LedgerWriter is the slice of the ledger service the bridge posts through.
type LedgerWriter interface {
	RecordCollection(ctx context.Context, input ledger.RecordCollectionInput) (*ledger.WriteResult, error)
	RecordObligation(ctx context.Context, input ledger.RecordObligationInput) (*ledger.WriteResult, error)
	Recalculate(ctx context.Context, customerID uuid.UUID) (*ledger.Totals, error)
}

type CashPoster interface {
	PostCashEntries(ctx context.Context, orderID, invoiceID uuid.UUID, method enums.CashMethod) (*cashledger.PostResult, error)
}

// StatusChange is the outcome of UpdateStatus.
type StatusChange struct {
	InvoiceID uuid.UUID           `json:"invoice_id"`
	From      enums.InvoiceStatus `json:"from"`
	To        enums.InvoiceStatus `json:"to"`
	Changed   bool                `json:"changed"`
	Posting   *PostingResult      `json:"posting,omitempty"`
}

// PostingResult describes what finalisation wrote to the ledger.
type PostingResult struct {
	InvoiceID  uuid.UUID              `json:"invoice_id"`
	OrderID    uuid.UUID              `json:"order_id"`
	CustomerID uuid.UUID              `json:"customer_id"`
	Amount     decimal.Decimal        `json:"amount"`
	Channel    enums.PaymentChannel   `json:"payment_channel"`
	Deleted    int64                  `json:"deleted_entries"`
	Entries    []ledger.EntryView     `json:"entries"`
	Totals     *ledger.Totals         `json:"totals,omitempty"`
	Cash       *cashledger.PostResult `json:"cash_ledger,omitempty"`
	Skipped    bool                   `json:"skipped"`
	SkipReason string                 `json:"skip_reason,omitempty"`
}

type Bridge interface {
	UpdateStatus(ctx context.Context, invoiceID uuid.UUID, target enums.InvoiceStatus) (*StatusChange, error)
	PostFinalisation(ctx context.Context, invoiceID uuid.UUID) (*PostingResult, error)
}

type BridgeParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   Repository
	Outbox outboxEmitter
	Ledger LedgerWriter
	// Cash is optional; nil disables the cash sub-ledger posting.
	Cash CashPoster
	Now  func() time.Time
}

type bridge struct {
	logg   *logger.Logger
	db     txRunner
	repo   Repository
	outbox outboxEmitter
	ledger LedgerWriter
	cash   CashPoster
	now    func() time.Time
}

func NewBridge(params BridgeParams) (Bridge, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger writer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &bridge{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		outbox: params.Outbox,
		ledger: params.Ledger,
		cash:   params.Cash,
		now:    now,
	}, nil
}

func (b *bridge) UpdateStatus(ctx context.Context, invoiceID uuid.UUID, target enums.InvoiceStatus) (*StatusChange, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice status").
			WithDetails(map[string]any{"status": target})
	}
	logCtx := b.logg.WithInvoiceID(ctx, invoiceID.String())

	change := &StatusChange{InvoiceID: invoiceID, To: target}
	err := b.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := b.repo.WithTx(tx)
		invoice, err := repo.LockInvoice(ctx, invoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		change.From = invoice.Status
		if invoice.Status == target {
			return nil
		}
		if !invoice.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice status transition not allowed").
				WithDetails(map[string]any{"from": invoice.Status, "to": target})
		}

		now := b.now().UTC()
		var finalisedAt *time.Time
		if target == enums.InvoiceStatusFinalised {
			finalisedAt = &now
		}
		if err := repo.UpdateStatus(ctx, invoiceID, target, finalisedAt, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
		}

		actor := outbox.ActorFromContext(ctx, "invoices")
		if err := b.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceStatusChanged,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoiceID,
			Actor:         actor,
			Data: payloads.InvoiceStatusChangedEvent{
				InvoiceID:  invoiceID,
				CustomerID: invoice.CustomerID,
				OrderID:    invoice.OrderID,
				From:       invoice.Status,
				To:         target,
				ChangedAt:  now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invoice status event")
		}
		if finalisedAt != nil {
			if err := b.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInvoiceFinalised,
				AggregateType: enums.AggregateInvoice,
				AggregateID:   invoiceID,
				Actor:         actor,
				Data: payloads.InvoiceFinalisedEvent{
					InvoiceID:     invoiceID,
					InvoiceNumber: invoice.InvoiceNumber,
					CustomerID:    invoice.CustomerID,
					OrderID:       invoice.OrderID,
					FinalisedAt:   now,
				},
				OccurredAt: now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invoice finalised event")
			}
		}
		change.Changed = true
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransaction, err, "update invoice status")
	}

	if change.Changed && target == enums.InvoiceStatusFinalised {
		posting, err := b.PostFinalisation(ctx, invoiceID)
		if err != nil {
			b.logg.Warn(logCtx, "invoice finalised without ledger posting")
		} else {
			change.Posting = posting
		}
	}
	return change, nil
}

// PostFinalisation writes the ledger entries of a finalised invoice. Entries
// previously posted for the invoice in the same directions are replaced, so
// repeated calls leave one set of entries.
func (b *bridge) PostFinalisation(ctx context.Context, invoiceID uuid.UUID) (_ *PostingResult, err error) {
	logCtx := b.logg.WithInvoiceID(ctx, invoiceID.String())
	defer func() {
		if err != nil {
			b.logg.Error(logCtx, "invoice finalisation posting failed", err)
		}
	}()

	invoice, err := b.repo.FindInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	order, err := b.repo.FindOrder(ctx, invoice.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	ctx = b.logg.WithFields(b.logg.WithInvoiceID(ctx, invoiceID.String()), postingFields(invoice, order))
	logCtx = ctx
	result := &PostingResult{
		InvoiceID:  invoice.ID,
		OrderID:    order.ID,
		CustomerID: invoice.CustomerID,
		Channel:    enums.ChannelForOrderMethod(order.PaymentMethod),
	}

	amount := resolveAmount(invoice)
	result.Amount = amount
	if !amount.IsPositive() {
		result.Skipped = true
		result.SkipReason = "invoice amount is not positive"
		b.logg.Warn(ctx, "skipping finalisation posting: invoice amount is not positive")
		return result, nil
	}

	driverCash, _ := money.FromNull(order.CashCollected)
	pairCash := order.PaymentMethod == enums.OrderPaymentMethodCash && driverCash.IsPositive()
	// the whole set is replaced: a pair posted earlier may now be a single debit
	directions := []enums.EntryDirection{enums.EntryDirectionCredit, enums.EntryDirectionDebit}

	deleted, err := b.repo.DeleteInvoiceEntries(ctx, invoice.ID, directions)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove previous invoice entries")
	}
	result.Deleted = deleted
	if deleted > 0 {
		b.logg.Warn(b.logg.WithField(ctx, "deleted_entries", deleted), "replacing previously posted invoice entries")
		if _, err := b.ledger.Recalculate(ctx, invoice.CustomerID); err != nil {
			return nil, err
		}
	}

	var quantity *decimal.Decimal
	if order.DeliveredQuantity.Valid {
		q := order.DeliveredQuantity.Decimal
		quantity = &q
	}

	if pairCash {
		credit, err := b.ledger.RecordCollection(ctx, ledger.RecordCollectionInput{
			CustomerID:  invoice.CustomerID,
			OrderID:     &order.ID,
			InvoiceID:   &invoice.ID,
			Amount:      driverCash,
			Description: fmt.Sprintf("Cash collected for invoice %s", invoice.InvoiceNumber),
			Channel:     enums.PaymentChannelCash,
			Category:    enums.EntryCategoryCollection,
		})
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, credit.Entry)
	}

	debit, err := b.ledger.RecordObligation(ctx, ledger.RecordObligationInput{
		CustomerID:        invoice.CustomerID,
		OrderID:           &order.ID,
		InvoiceID:         &invoice.ID,
		Amount:            amount,
		Description:       fmt.Sprintf("Invoice %s finalised for order %s", invoice.InvoiceNumber, order.OrderNumber),
		Channel:           result.Channel,
		DeliveredQuantity: quantity,
	})
	if err != nil {
		return nil, err
	}
	result.Entries = append(result.Entries, debit.Entry)

	totals, err := b.ledger.Recalculate(ctx, invoice.CustomerID)
	if err != nil {
		return nil, err
	}
	result.Totals = totals

	if order.PaymentMethod == enums.OrderPaymentMethodCash && b.cash != nil {
		cash, err := b.cash.PostCashEntries(ctx, order.ID, invoice.ID, enums.CashMethodCash)
		if err != nil {
			b.logg.Error(ctx, "cash sub-ledger posting failed", err)
		} else {
			result.Cash = cash
		}
	}
	return result, nil
}

// resolveAmount prefers the invoice total and falls back to the base amount.
func resolveAmount(invoice *models.Invoice) decimal.Decimal {
	if total, ok := money.FromNull(invoice.TotalAmount); ok {
		return total
	}
	return money.Round(invoice.BaseAmount)
}

func postingFields(invoice *models.Invoice, order *models.Order) map[string]any {
	fields := map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"order_id":       order.ID.String(),
		"account_id":     invoice.CustomerID.String(),
		"payment_method": order.PaymentMethod.String(),
		"base_amount":    money.String(invoice.BaseAmount),
		"order_amount":   money.String(order.Amount),
	}
	if v, ok := money.FromNull(invoice.TotalAmount); ok {
		fields["total_amount"] = money.String(v)
	}
	if v, ok := money.FromNull(order.FinalAmount); ok {
		fields["final_amount"] = money.String(v)
	}
	if v, ok := money.FromNull(order.CashCollected); ok {
		fields["cash_collected"] = money.String(v)
	}
	return fields
}
