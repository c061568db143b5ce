package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/config"
	dbpkg "github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
	"github.com/fuelops/fuelops-backend/pkg/money"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
	"github.com/fuelops/fuelops-backend/pkg/outbox/payloads"
	"github.com/fuelops/fuelops-backend/pkg/pagination"
	"github.com/fuelops/fuelops-backend/pkg/types"
)

const (
	defaultMaxWriteAttempts       = 3
	defaultCollectionDescription  = "Payment received"
	defaultObligationDescription  = "Order delivered"
	metricOutcomeCommitted        = "committed"
	metricOutcomeConflictExceeded = "conflict_exhausted"
	metricOutcomeFailed           = "failed"
	metricLabelRecalculate        = "recalculate"
)

// errVersionConflict aborts a write attempt when the aggregate changed underneath it.
var errVersionConflict = errors.New("account aggregate version conflict")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AvailabilityPersister refreshes the cached credit columns after a write.
// Implementations log and swallow their own failures.
type AvailabilityPersister interface {
	PersistAvailability(ctx context.Context, customerID uuid.UUID)
}

// Service is the single entry point for mutating and reading account ledgers.
type Service interface {
	RecordCollection(ctx context.Context, input RecordCollectionInput) (*WriteResult, error)
	RecordObligation(ctx context.Context, input RecordObligationInput) (*WriteResult, error)
	GetBalance(ctx context.Context, customerID uuid.UUID) (*Balance, error)
	GetOutstanding(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	GetTransactionHistory(ctx context.Context, customerID uuid.UUID, params pagination.PageParams) (*TransactionPage, error)
	Recalculate(ctx context.Context, customerID uuid.UUID) (*Totals, error)
	Audit(ctx context.Context, customerID uuid.UUID) (*Drift, error)
	Summary(ctx context.Context) (*AdminSummary, error)
	ListAccountIDs(ctx context.Context) ([]uuid.UUID, error)
}

type ServiceParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Repo         Repository
	Outbox       outboxEmitter
	Availability AvailabilityPersister
	Metrics      *metrics.LedgerMetrics
	Config       config.LedgerConfig
	Now          func() time.Time
}

type service struct {
	logg         *logger.Logger
	db           txRunner
	repo         Repository
	outbox       outboxEmitter
	availability AvailabilityPersister
	metrics      *metrics.LedgerMetrics
	cfg          config.LedgerConfig
	maxAttempts  int
	now          func() time.Time
}

// NewService wires the ledger service with its collaborators.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	attempts := params.Config.MaxWriteAttempts
	if attempts <= 0 {
		attempts = defaultMaxWriteAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repo,
		outbox:       params.Outbox,
		availability: params.Availability,
		metrics:      params.Metrics,
		cfg:          params.Config,
		maxAttempts:  attempts,
		now:          now,
	}, nil
}

// posting is the direction-neutral form of a collection or obligation.
type posting struct {
	customerID        uuid.UUID
	orderID           *uuid.UUID
	invoiceID         *uuid.UUID
	direction         enums.EntryDirection
	category          enums.EntryCategory
	amount            decimal.Decimal
	description       string
	channel           enums.PaymentChannel
	paymentStatus     enums.EntryPaymentStatus
	refs              types.ExternalRefs
	deliveredQuantity *decimal.Decimal
}

func (s *service) RecordCollection(ctx context.Context, input RecordCollectionInput) (*WriteResult, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = defaultCollectionDescription
	}
	category, err := s.collectionCategory(input.Category, description)
	if err != nil {
		return nil, err
	}
	channel := input.Channel
	if channel == "" {
		channel = enums.PaymentChannelGateway
	}
	return s.record(ctx, posting{
		customerID:    input.CustomerID,
		orderID:       input.OrderID,
		invoiceID:     input.InvoiceID,
		direction:     enums.EntryDirectionCredit,
		category:      category,
		amount:        input.Amount,
		description:   description,
		channel:       channel,
		paymentStatus: input.PaymentStatus,
		refs:          input.ExternalRefs.Compact(),
	})
}

func (s *service) RecordObligation(ctx context.Context, input RecordObligationInput) (*WriteResult, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = defaultObligationDescription
	}
	channel := input.Channel
	if channel == "" {
		channel = enums.PaymentChannelLedger
	}
	return s.record(ctx, posting{
		customerID:        input.CustomerID,
		orderID:           input.OrderID,
		invoiceID:         input.InvoiceID,
		direction:         enums.EntryDirectionDebit,
		category:          enums.EntryCategoryObligation,
		amount:            input.Amount,
		description:       description,
		channel:           channel,
		paymentStatus:     input.PaymentStatus,
		refs:              input.ExternalRefs.Compact(),
		deliveredQuantity: input.DeliveredQuantity,
	})
}

// collectionCategory honours an explicit credit category, otherwise promotes
// descriptions carrying the repayment prefix to credit_repayment.
func (s *service) collectionCategory(explicit enums.EntryCategory, description string) (enums.EntryCategory, error) {
	if explicit != "" {
		if !explicit.IsValid() || explicit.Direction() != enums.EntryDirectionCredit {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid collection category").
				WithDetails(map[string]any{"category": explicit})
		}
		return explicit, nil
	}
	prefix := s.cfg.CreditRepaymentPrefix
	if prefix != "" && strings.HasPrefix(description, prefix) {
		return enums.EntryCategoryCreditRepayment, nil
	}
	return enums.EntryCategoryCollection, nil
}

func (s *service) record(ctx context.Context, p posting) (*WriteResult, error) {
	p.amount = money.Round(p.amount)
	if err := validatePosting(p); err != nil {
		return nil, err
	}
	if p.paymentStatus == "" {
		p.paymentStatus = enums.EntryPaymentStatusCompleted
	}
	if err := s.ensureCustomer(ctx, p.customerID); err != nil {
		return nil, err
	}

	ctx = s.logg.WithAccountID(ctx, p.customerID.String())
	var result *WriteResult
	attempts := 0
	err := s.withRetry(ctx, p.direction.String(), func(tx *gorm.DB) error {
		attempts++
		res, err := s.writeOnce(ctx, tx, p)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Attempts = attempts

	s.persistAvailability(ctx, p.customerID)
	return result, nil
}

func validatePosting(p posting) error {
	details := map[string]any{}
	if p.customerID == uuid.Nil {
		details["customer_id"] = "required"
	}
	if !p.amount.IsPositive() {
		details["amount"] = "must be greater than zero"
	}
	if !p.channel.IsValid() {
		details["payment_channel"] = "invalid"
	}
	if p.paymentStatus != "" && !p.paymentStatus.IsValid() {
		details["payment_status"] = "invalid"
	}
	if p.deliveredQuantity != nil && p.deliveredQuantity.IsNegative() {
		details["delivered_quantity"] = "must not be negative"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger posting").WithDetails(details)
}

func (s *service) ensureCustomer(ctx context.Context, customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	ok, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return nil
}

// withRetry runs fn in a fresh transaction, retrying the whole transaction
// while the aggregate version guard or the database rejects it as a
// serialization conflict.
func (s *service) withRetry(ctx context.Context, label string, fn func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = s.db.WithTx(ctx, fn)
		if lastErr == nil {
			s.metrics.ObserveWrite(label, metricOutcomeCommitted)
			return nil
		}
		if !isRetryableWrite(lastErr) {
			s.metrics.ObserveWrite(label, metricOutcomeFailed)
			if typed := pkgerrors.As(lastErr); typed != nil {
				return typed
			}
			return pkgerrors.Wrap(pkgerrors.CodeTransaction, lastErr, "ledger transaction failed")
		}
		s.metrics.IncRetry(label)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"attempt": attempt, "error": lastErr.Error()}), "ledger write conflict, retrying")
	}
	s.metrics.ObserveWrite(label, metricOutcomeConflictExceeded)
	return pkgerrors.Wrap(pkgerrors.CodeTransaction, lastErr, fmt.Sprintf("ledger write aborted after %d attempts", s.maxAttempts))
}

func isRetryableWrite(err error) bool {
	return errors.Is(err, errVersionConflict) || dbpkg.IsSerializationFailure(err)
}

func (s *service) writeOnce(ctx context.Context, tx *gorm.DB, p posting) (*WriteResult, error) {
	repo := s.repo.WithTx(tx)
	now := s.now().UTC()

	if err := repo.EnsureAggregate(ctx, p.customerID, now); err != nil {
		return nil, fmt.Errorf("upsert aggregate: %w", err)
	}
	agg, err := repo.LockAggregate(ctx, p.customerID)
	if err != nil {
		return nil, fmt.Errorf("lock aggregate: %w", err)
	}

	before := money.Round(agg.CurrentBalance)
	after := before.Add(p.amount)
	if p.direction == enums.EntryDirectionDebit {
		after = before.Sub(p.amount)
	}

	entry := &models.LedgerEntry{
		CustomerID:     p.customerID,
		OrderID:        p.orderID,
		InvoiceID:      p.invoiceID,
		Direction:      p.direction,
		Category:       p.category,
		Amount:         p.amount,
		BalanceBefore:  before,
		BalanceAfter:   after,
		Description:    p.description,
		PaymentChannel: p.channel,
		PaymentStatus:  p.paymentStatus,
		ExternalRefs:   p.refs,
		CreatedAt:      now,
	}
	if p.deliveredQuantity != nil {
		entry.DeliveredQuantity = decimal.NewNullDecimal(*p.deliveredQuantity)
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if p.direction == enums.EntryDirectionCredit {
		agg.TotalPaid = money.Round(agg.TotalPaid.Add(p.amount))
		agg.LastPaymentAt = &now
	} else {
		agg.TotalOrders = money.Round(agg.TotalOrders.Add(p.amount))
	}
	agg.OutstandingAmount = agg.TotalPaid.Sub(agg.TotalOrders)
	agg.CurrentBalance = agg.OutstandingAmount
	agg.LastTransactionAt = &now
	agg.Status = deriveStatus(agg.Status, agg.OutstandingAmount, agg.LastPaymentAt, agg.CreatedAt, now, s.cfg.OverdueWindow())

	expected := agg.Version
	agg.Version++
	agg.UpdatedAt = now
	ok, err := repo.UpdateAggregate(ctx, agg, expected)
	if err != nil {
		return nil, fmt.Errorf("update aggregate: %w", err)
	}
	if !ok {
		return nil, errVersionConflict
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLedgerEntryRecorded,
		AggregateType: enums.AggregateAccount,
		AggregateID:   p.customerID,
		Actor:         outbox.ActorFromContext(ctx, "ledger"),
		Data: payloads.LedgerEntryRecordedEvent{
			EntryID:       entry.ID,
			CustomerID:    p.customerID,
			OrderID:       p.orderID,
			InvoiceID:     p.invoiceID,
			Direction:     p.direction,
			Category:      p.category,
			Channel:       p.channel,
			Amount:        p.amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			RecordedAt:    now,
		},
		OccurredAt: now,
	}); err != nil {
		return nil, fmt.Errorf("emit ledger event: %w", err)
	}

	return &WriteResult{Entry: entryView(*entry), Balance: balanceFromModel(agg)}, nil
}

func (s *service) persistAvailability(ctx context.Context, customerID uuid.UUID) {
	if s.availability == nil {
		return
	}
	s.availability.PersistAvailability(ctx, customerID)
}

func (s *service) GetBalance(ctx context.Context, customerID uuid.UUID) (*Balance, error) {
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	agg, err := s.repo.FindAggregate(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account balance")
	}
	if agg == nil {
		balance := emptyBalance(customerID)
		return &balance, nil
	}
	balance := balanceFromModel(agg)
	return &balance, nil
}

func (s *service) GetOutstanding(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	balance, err := s.GetBalance(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.OutstandingAmount, nil
}

func (s *service) GetTransactionHistory(ctx context.Context, customerID uuid.UUID, params pagination.PageParams) (*TransactionPage, error) {
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	params = params.Normalize()
	entries, total, err := s.repo.PageEntries(ctx, customerID, params.Offset(), params.PageSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	var orderIDs, invoiceIDs []uuid.UUID
	for _, e := range entries {
		if e.OrderID != nil {
			orderIDs = append(orderIDs, *e.OrderID)
		}
		if e.InvoiceID != nil {
			invoiceIDs = append(invoiceIDs, *e.InvoiceID)
		}
	}
	orderNumbers, err := s.repo.OrderNumbers(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve order numbers")
	}
	invoiceNumbers, err := s.repo.InvoiceNumbers(ctx, invoiceIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve invoice numbers")
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		view := entryView(e)
		if e.OrderID != nil {
			if number, ok := orderNumbers[*e.OrderID]; ok {
				view.OrderNumber = &number
			}
		}
		if e.InvoiceID != nil {
			if number, ok := invoiceNumbers[*e.InvoiceID]; ok {
				view.InvoiceNumber = &number
			}
		}
		views = append(views, view)
	}
	return &TransactionPage{Entries: views, Pagination: pagination.NewMeta(params, total)}, nil
}

// Recalculate rebuilds the aggregate from the entry log. Running it twice
// yields the same aggregate.
func (s *service) Recalculate(ctx context.Context, customerID uuid.UUID) (*Totals, error) {
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	ctx = s.logg.WithAccountID(ctx, customerID.String())

	var totals Totals
	err := s.withRetry(ctx, metricLabelRecalculate, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		if err := repo.EnsureAggregate(ctx, customerID, now); err != nil {
			return fmt.Errorf("upsert aggregate: %w", err)
		}
		agg, err := repo.LockAggregate(ctx, customerID)
		if err != nil {
			return fmt.Errorf("lock aggregate: %w", err)
		}
		entries, err := repo.ListEntries(ctx, customerID)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}

		totals = sumEntries(customerID, entries)
		agg.TotalPaid = totals.TotalPaid
		agg.TotalOrders = totals.TotalOrders
		agg.OutstandingAmount = totals.OutstandingAmount
		agg.CurrentBalance = totals.OutstandingAmount
		agg.LastTransactionAt = totals.LastTransactionAt
		agg.LastPaymentAt = totals.LastPaymentAt
		agg.Status = deriveStatus(agg.Status, agg.OutstandingAmount, agg.LastPaymentAt, agg.CreatedAt, now, s.cfg.OverdueWindow())

		expected := agg.Version
		agg.Version++
		agg.UpdatedAt = now
		ok, err := repo.UpdateAggregate(ctx, agg, expected)
		if err != nil {
			return fmt.Errorf("update aggregate: %w", err)
		}
		if !ok {
			return errVersionConflict
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAccountRecalculated,
			AggregateType: enums.AggregateAccount,
			AggregateID:   customerID,
			Actor:         outbox.ActorFromContext(ctx, "ledger"),
			Data: payloads.AccountRecalculatedEvent{
				CustomerID:  customerID,
				TotalPaid:   totals.TotalPaid,
				TotalOrders: totals.TotalOrders,
				Outstanding: totals.OutstandingAmount,
				Status:      agg.Status,
				EntryCount:  totals.EntryCount,
				Version:     agg.Version,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.persistAvailability(ctx, customerID)
	return &totals, nil
}

// sumEntries totals credits and debits independently of any aggregate.
func sumEntries(customerID uuid.UUID, entries []models.LedgerEntry) Totals {
	totals := Totals{
		CustomerID:  customerID,
		TotalPaid:   decimal.Zero,
		TotalOrders: decimal.Zero,
		EntryCount:  len(entries),
	}
	for i := range entries {
		e := entries[i]
		created := e.CreatedAt
		if totals.LastTransactionAt == nil || created.After(*totals.LastTransactionAt) {
			totals.LastTransactionAt = &created
		}
		switch e.Direction {
		case enums.EntryDirectionCredit:
			totals.TotalPaid = totals.TotalPaid.Add(e.Amount)
			if totals.LastPaymentAt == nil || created.After(*totals.LastPaymentAt) {
				totals.LastPaymentAt = &created
			}
		case enums.EntryDirectionDebit:
			totals.TotalOrders = totals.TotalOrders.Add(e.Amount)
		}
	}
	totals.TotalPaid = money.Round(totals.TotalPaid)
	totals.TotalOrders = money.Round(totals.TotalOrders)
	totals.OutstandingAmount = totals.TotalPaid.Sub(totals.TotalOrders)
	return totals
}

// Audit reports whether the stored aggregate disagrees with the entry log.
// It never writes.
func (s *service) Audit(ctx context.Context, customerID uuid.UUID) (*Drift, error) {
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	agg, err := s.repo.FindAggregate(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account balance")
	}
	entries, err := s.repo.ListEntries(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	computed := sumEntries(customerID, entries)
	stored := emptyBalance(customerID)
	if agg != nil {
		stored = balanceFromModel(agg)
	}
	drift := &Drift{
		CustomerID:   customerID,
		Stored:       stored,
		Computed:     computed,
		PaidDelta:    stored.TotalPaid.Sub(computed.TotalPaid),
		OrdersDelta:  stored.TotalOrders.Sub(computed.TotalOrders),
		HasAggregate: agg != nil,
	}
	drift.HasDrift = !drift.PaidDelta.IsZero() ||
		!drift.OrdersDelta.IsZero() ||
		!stored.OutstandingAmount.Equal(computed.OutstandingAmount) ||
		!stored.CurrentBalance.Equal(computed.OutstandingAmount)
	return drift, nil
}

func (s *service) Summary(ctx context.Context) (*AdminSummary, error) {
	rows, err := s.repo.ListEligibleAggregates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list account balances")
	}
	now := s.now().UTC()
	window := s.cfg.OverdueWindow()
	summary := &AdminSummary{
		TotalAccounts:      len(rows),
		TotalOutstanding:   decimal.Zero,
		TotalReceived:      decimal.Zero,
		TotalObligated:     decimal.Zero,
		AverageOutstanding: decimal.Zero,
		OverdueWindowDays:  s.cfg.OverdueDays,
	}
	for _, row := range rows {
		summary.TotalOutstanding = summary.TotalOutstanding.Add(row.OutstandingAmount)
		summary.TotalReceived = summary.TotalReceived.Add(row.TotalPaid)
		summary.TotalObligated = summary.TotalObligated.Add(row.TotalOrders)
		if isOverdue(row.OutstandingAmount, row.LastPaymentAt, row.CreatedAt, now, window) {
			summary.OverdueCount++
		}
	}
	summary.TotalOutstanding = money.Round(summary.TotalOutstanding)
	summary.TotalReceived = money.Round(summary.TotalReceived)
	summary.TotalObligated = money.Round(summary.TotalObligated)
	if len(rows) > 0 {
		summary.AverageOutstanding = money.Round(summary.TotalOutstanding.Div(decimal.NewFromInt(int64(len(rows)))))
	}
	return summary, nil
}

func (s *service) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	return ids, nil
}
