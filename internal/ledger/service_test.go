package ledger

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/config"
	dbpkg "github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/db/dbtest"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
	"github.com/fuelops/fuelops-backend/pkg/pagination"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type availabilityRecorder struct {
	calls []uuid.UUID
}

func (a *availabilityRecorder) PersistAvailability(_ context.Context, customerID uuid.UUID) {
	a.calls = append(a.calls, customerID)
}

type harness struct {
	conn   *gorm.DB
	svc    Service
	clock  *testClock
	avail  *availabilityRecorder
	outbox *outbox.Repository
}

func newHarness(t *testing.T, wrap func(Repository) Repository) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	avail := &availabilityRecorder{}
	outboxRepo := outbox.NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "ledger-test", Output: io.Discard})

	var repo Repository = NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	svc, err := NewService(ServiceParams{
		Logger:       logg,
		DB:           dbpkg.NewFromGorm(conn),
		Repo:         repo,
		Outbox:       outbox.NewService(outboxRepo, logg),
		Availability: avail,
		Config: config.LedgerConfig{
			CreditRepaymentPrefix: "Credit payment received",
			OverdueDays:           30,
			MaxWriteAttempts:      3,
		},
		Now: clock.Now,
	})
	require.NoError(t, err)
	return &harness{conn: conn, svc: svc, clock: clock, avail: avail, outbox: outboxRepo}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got.String())
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestRecordKeepsEntriesAndAggregateConsistent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, h.conn, "5000")
	order := dbtest.SeedOrder(t, h.conn, customer.ID, "1000", nil)

	qty := dec("250.5")
	debit, err := h.svc.RecordObligation(ctx, RecordObligationInput{
		CustomerID:        customer.ID,
		OrderID:           &order.ID,
		Amount:            dec("1000"),
		DeliveredQuantity: &qty,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EntryDirectionDebit, debit.Entry.Direction)
	assert.Equal(t, enums.EntryCategoryObligation, debit.Entry.Category)
	assert.Equal(t, enums.PaymentChannelLedger, debit.Entry.PaymentChannel)
	assert.Equal(t, "Order delivered", debit.Entry.Description)
	assert.Equal(t, 1, debit.Attempts)
	requireAmount(t, "0", debit.Entry.BalanceBefore)
	requireAmount(t, "-1000", debit.Entry.BalanceAfter)

	h.clock.Advance(time.Hour)
	credit, err := h.svc.RecordCollection(ctx, RecordCollectionInput{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		Amount:     dec("400.004"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EntryCategoryCollection, credit.Entry.Category)
	assert.Equal(t, enums.PaymentChannelGateway, credit.Entry.PaymentChannel)
	assert.Equal(t, enums.EntryPaymentStatusCompleted, credit.Entry.PaymentStatus)
	requireAmount(t, "400", credit.Entry.Amount)
	requireAmount(t, "-1000", credit.Entry.BalanceBefore)
	requireAmount(t, "-600", credit.Entry.BalanceAfter)

	balance, err := h.svc.GetBalance(ctx, customer.ID)
	require.NoError(t, err)
	requireAmount(t, "400", balance.TotalPaid)
	requireAmount(t, "1000", balance.TotalOrders)
	requireAmount(t, "-600", balance.OutstandingAmount)
	requireAmount(t, "-600", balance.CurrentBalance)
	assert.Equal(t, int64(2), balance.Version)
	assert.Equal(t, enums.AccountStatusActive, balance.Status)
	require.NotNil(t, balance.LastPaymentAt)
	assert.True(t, balance.LastPaymentAt.Equal(h.clock.Now()))

	outstanding, err := h.svc.GetOutstanding(ctx, customer.ID)
	require.NoError(t, err)
	requireAmount(t, "-600", outstanding)

	events, err := h.outbox.ListForAggregate(ctx, enums.AggregateAccount, customer.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, enums.EventLedgerEntryRecorded, ev.EventType)
	}
	assert.Equal(t, []uuid.UUID{customer.ID, customer.ID}, h.avail.calls)
}

func TestRecordRejectsNonPositiveAmounts(t *testing.T) {
	h := newHarness(t, nil)
	customer := dbtest.SeedCustomer(t, h.conn, "1000")

	for _, amount := range []string{"0", "-5", "0.004"} {
		_, err := h.svc.RecordCollection(context.Background(), RecordCollectionInput{
			CustomerID: customer.ID,
			Amount:     dec(amount),
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "amount %s", amount)
	}

	var count int64
	require.NoError(t, h.conn.Model(&models.LedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordUnknownCustomerIsNotFound(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	missing := uuid.New()

	_, err := h.svc.RecordObligation(ctx, RecordObligationInput{CustomerID: missing, Amount: dec("10")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.GetBalance(ctx, missing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.Recalculate(ctx, missing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetBalanceWithoutAggregateIsZeroAndReadOnly(t *testing.T) {
	h := newHarness(t, nil)
	customer := dbtest.SeedCustomer(t, h.conn, "1000")

	balance, err := h.svc.GetBalance(context.Background(), customer.ID)
	require.NoError(t, err)
	requireAmount(t, "0", balance.OutstandingAmount)
	requireAmount(t, "0", balance.TotalPaid)
	assert.Equal(t, enums.AccountStatusActive, balance.Status)

	var count int64
	require.NoError(t, h.conn.Model(&models.AccountBalance{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCollectionCategoryResolution(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, h.conn, "1000")

	repayment, err := h.svc.RecordCollection(ctx, RecordCollectionInput{
		CustomerID:  customer.ID,
		Amount:      dec("50"),
		Description: "Credit payment received via bank transfer",
		Channel:     enums.PaymentChannelBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EntryCategoryCreditRepayment, repayment.Entry.Category)

	plain, err := h.svc.RecordCollection(ctx, RecordCollectionInput{
		CustomerID:  customer.ID,
		Amount:      dec("50"),
		Description: "Cash at depot",
		Channel:     enums.PaymentChannelCash,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EntryCategoryCollection, plain.Entry.Category)

	explicit, err := h.svc.RecordCollection(ctx, RecordCollectionInput{
		CustomerID: customer.ID,
		Amount:     dec("50"),
		Category:   enums.EntryCategoryCreditRepayment,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EntryCategoryCreditRepayment, explicit.Entry.Category)
	assert.Equal(t, "Payment received", explicit.Entry.Description)

	_, err = h.svc.RecordCollection(ctx, RecordCollectionInput{
		CustomerID: customer.ID,
		Amount:     dec("50"),
		Category:   enums.EntryCategoryObligation,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecalculateRepairsDriftAndIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, h.conn, "1000")

	_, err := h.svc.RecordObligation(ctx, RecordObligationInput{CustomerID: customer.ID, Amount: dec("700")})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.svc.RecordCollection(ctx, RecordCollectionInput{CustomerID: customer.ID, Amount: dec("200")})
	require.NoError(t, err)

	require.NoError(t, h.conn.Model(&models.AccountBalance{}).
		Where("customer_id = ?", customer.ID).
		Updates(map[string]any{"total_paid": 0, "outstanding_amount": 0, "current_balance": 0}).Error)

	drift, err := h.svc.Audit(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, drift.HasDrift)
	requireAmount(t, "-200", drift.PaidDelta)
	requireAmount(t, "0", drift.OrdersDelta)

	first, err := h.svc.Recalculate(ctx, customer.ID)
	require.NoError(t, err)
	requireAmount(t, "200", first.TotalPaid)
	requireAmount(t, "700", first.TotalOrders)
	requireAmount(t, "-500", first.OutstandingAmount)
	assert.Equal(t, 2, first.EntryCount)

	second, err := h.svc.Recalculate(ctx, customer.ID)
	require.NoError(t, err)
	requireAmount(t, first.TotalPaid.String(), second.TotalPaid)
	requireAmount(t, first.TotalOrders.String(), second.TotalOrders)
	requireAmount(t, first.OutstandingAmount.String(), second.OutstandingAmount)

	drift, err = h.svc.Audit(ctx, customer.ID)
	require.NoError(t, err)
	assert.False(t, drift.HasDrift)

	events, err := h.outbox.ListForAggregate(ctx, enums.AggregateAccount, customer.ID)
	require.NoError(t, err)
	recalculated := 0
	for _, ev := range events {
		if ev.EventType == enums.EventAccountRecalculated {
			recalculated++
		}
	}
	assert.Equal(t, 2, recalculated)
}

func TestRecalculateWithoutEntriesCreatesZeroAggregate(t *testing.T) {
	h := newHarness(t, nil)
	customer := dbtest.SeedCustomer(t, h.conn, "1000")

	totals, err := h.svc.Recalculate(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Zero(t, totals.EntryCount)
	requireAmount(t, "0", totals.OutstandingAmount)

	balance, err := h.svc.GetBalance(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance.Version)
}

type conflictingRepo struct {
	Repository
	conflicts *int
}

func (r conflictingRepo) WithTx(tx *gorm.DB) Repository {
	return conflictingRepo{Repository: r.Repository.WithTx(tx), conflicts: r.conflicts}
}

func (r conflictingRepo) UpdateAggregate(ctx context.Context, agg *models.AccountBalance, expectedVersion int64) (bool, error) {
	if *r.conflicts > 0 {
		*r.conflicts--
		return false, nil
	}
	return r.Repository.UpdateAggregate(ctx, agg, expectedVersion)
}

func TestRecordRetriesOnVersionConflict(t *testing.T) {
	conflicts := 1
	h := newHarness(t, func(repo Repository) Repository {
		return conflictingRepo{Repository: repo, conflicts: &conflicts}
	})
	customer := dbtest.SeedCustomer(t, h.conn, "1000")

	res, err := h.svc.RecordObligation(context.Background(), RecordObligationInput{CustomerID: customer.ID, Amount: dec("120")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	var entries int64
	require.NoError(t, h.conn.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)

	var events int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestRecordGivesUpAfterMaxAttempts(t *testing.T) {
	conflicts := 10
	h := newHarness(t, func(repo Repository) Repository {
		return conflictingRepo{Repository: repo, conflicts: &conflicts}
	})
	customer := dbtest.SeedCustomer(t, h.conn, "1000")

	_, err := h.svc.RecordCollection(context.Background(), RecordCollectionInput{CustomerID: customer.ID, Amount: dec("10")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTransaction))
	assert.Equal(t, 7, conflicts)
	assert.Empty(t, h.avail.calls)

	var entries int64
	require.NoError(t, h.conn.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestTransactionHistoryPagesNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, h.conn, "1000")
	order := dbtest.SeedOrder(t, h.conn, customer.ID, "300", nil)
	invoice := dbtest.SeedInvoice(t, h.conn, order, enums.InvoiceStatusIssued, nil)

	_, err := h.svc.RecordObligation(ctx, RecordObligationInput{CustomerID: customer.ID, OrderID: &order.ID, InvoiceID: &invoice.ID, Amount: dec("300")})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.svc.RecordCollection(ctx, RecordCollectionInput{CustomerID: customer.ID, Amount: dec("100")})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.svc.RecordCollection(ctx, RecordCollectionInput{CustomerID: customer.ID, Amount: dec("50")})
	require.NoError(t, err)

	page, err := h.svc.GetTransactionHistory(ctx, customer.ID, pagination.PageParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	requireAmount(t, "50", page.Entries[0].Amount)
	requireAmount(t, "100", page.Entries[1].Amount)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	last, err := h.svc.GetTransactionHistory(ctx, customer.ID, pagination.PageParams{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)
	require.NotNil(t, last.Entries[0].OrderNumber)
	require.NotNil(t, last.Entries[0].InvoiceNumber)
	assert.Equal(t, order.OrderNumber, *last.Entries[0].OrderNumber)
	assert.Equal(t, invoice.InvoiceNumber, *last.Entries[0].InvoiceNumber)
}

func TestSummaryCountsEligibleAccountsAndOverdue(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	late := dbtest.SeedCustomer(t, h.conn, "2000")
	settled := dbtest.SeedCustomer(t, h.conn, "2000")
	cashOnly := dbtest.SeedCustomer(t, h.conn, "0")
	require.NoError(t, h.conn.Model(&models.Customer{}).Where("id = ?", cashOnly.ID).Update("credit_eligible", false).Error)

	_, err := h.svc.RecordObligation(ctx, RecordObligationInput{CustomerID: late.ID, Amount: dec("500")})
	require.NoError(t, err)
	_, err = h.svc.RecordObligation(ctx, RecordObligationInput{CustomerID: settled.ID, Amount: dec("300")})
	require.NoError(t, err)
	_, err = h.svc.RecordCollection(ctx, RecordCollectionInput{CustomerID: settled.ID, Amount: dec("300")})
	require.NoError(t, err)
	_, err = h.svc.RecordObligation(ctx, RecordObligationInput{CustomerID: cashOnly.ID, Amount: dec("100")})
	require.NoError(t, err)

	h.clock.Advance(31 * 24 * time.Hour)

	summary, err := h.svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalAccounts)
	requireAmount(t, "-500", summary.TotalOutstanding)
	requireAmount(t, "300", summary.TotalReceived)
	requireAmount(t, "800", summary.TotalObligated)
	requireAmount(t, "-250", summary.AverageOutstanding)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.Equal(t, 30, summary.OverdueWindowDays)

	_, err = h.svc.Recalculate(ctx, late.ID)
	require.NoError(t, err)
	balance, err := h.svc.GetBalance(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AccountStatusOverdue, balance.Status)

	ids, err := h.svc.ListAccountIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestSuspendedStatusIsSticky(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour
	old := now.Add(-40 * 24 * time.Hour)

	assert.Equal(t, enums.AccountStatusSuspended, deriveStatus(enums.AccountStatusSuspended, dec("10"), nil, old, now, window))
	assert.Equal(t, enums.AccountStatusOverdue, deriveStatus(enums.AccountStatusActive, dec("-1"), &old, old, now, window))
	assert.Equal(t, enums.AccountStatusActive, deriveStatus(enums.AccountStatusOverdue, dec("0"), &old, old, now, window))
	recent := now.Add(-24 * time.Hour)
	assert.Equal(t, enums.AccountStatusActive, deriveStatus(enums.AccountStatusActive, dec("-1"), &recent, old, now, window))
}
