package cashledger

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbpkg "github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/db/dbtest"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

func newTestService(t *testing.T) (*gorm.DB, Service) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(dbpkg.NewFromGorm(conn), NewRepository(conn), logger.New(logger.Options{ServiceName: "cash-test", Output: io.Discard}))
	require.NoError(t, err)
	return conn, svc
}

func TestPostCashEntriesPairsCashAndTotal(t *testing.T) {
	conn, svc := newTestService(t)
	customer := dbtest.SeedCustomer(t, conn, "0")
	order := dbtest.SeedOrder(t, conn, customer.ID, "1000", func(o *models.Order) {
		o.PaymentMethod = enums.OrderPaymentMethodCash
		o.CashCollected = decimal.NewNullDecimal(decimal.NewFromInt(800))
	})
	invoice := dbtest.SeedInvoice(t, conn, order, enums.InvoiceStatusFinalised, nil)

	res, err := svc.PostCashEntries(context.Background(), order.ID, invoice.ID, enums.CashMethodQR)
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, enums.EntryDirectionCredit, res.Entries[0].Direction)
	assert.True(t, res.Entries[0].Amount.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, enums.EntryDirectionDebit, res.Entries[1].Direction)
	assert.True(t, res.Entries[1].Amount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, enums.CashMethodQR, res.Entries[1].Method)

	again, err := svc.PostCashEntries(context.Background(), order.ID, invoice.ID, enums.CashMethodQR)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Len(t, again.Entries, 2)

	var count int64
	require.NoError(t, conn.Model(&models.CashLedgerEntry{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var balances int64
	require.NoError(t, conn.Model(&models.AccountBalance{}).Count(&balances).Error)
	assert.Zero(t, balances)
}

// staleReadRepo hides committed rows from reads inside the transaction, the
// way a second poster sees the table before the first one commits.
type staleReadRepo struct {
	Repository
	stale bool
}

func (r *staleReadRepo) WithTx(tx *gorm.DB) Repository {
	return &staleReadRepo{Repository: r.Repository.WithTx(tx), stale: true}
}

func (r *staleReadRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.CashLedgerEntry, error) {
	if r.stale {
		return nil, nil
	}
	return r.Repository.ListByInvoice(ctx, invoiceID)
}

func TestPostCashEntriesConcurrentPosterReturnsCommittedRows(t *testing.T) {
	conn, svc := newTestService(t)
	customer := dbtest.SeedCustomer(t, conn, "0")
	order := dbtest.SeedOrder(t, conn, customer.ID, "1000", func(o *models.Order) {
		o.PaymentMethod = enums.OrderPaymentMethodCash
		o.CashCollected = decimal.NewNullDecimal(decimal.NewFromInt(800))
	})
	invoice := dbtest.SeedInvoice(t, conn, order, enums.InvoiceStatusFinalised, nil)

	first, err := svc.PostCashEntries(context.Background(), order.ID, invoice.ID, enums.CashMethodCash)
	require.NoError(t, err)
	require.True(t, first.Created)

	racer, err := NewService(dbpkg.NewFromGorm(conn), &staleReadRepo{Repository: NewRepository(conn)},
		logger.New(logger.Options{ServiceName: "cash-test", Output: io.Discard}))
	require.NoError(t, err)

	second, err := racer.PostCashEntries(context.Background(), order.ID, invoice.ID, enums.CashMethodCash)
	require.NoError(t, err)
	assert.False(t, second.Created)
	require.Len(t, second.Entries, 2)
	assert.Equal(t, first.Entries[0].ID, second.Entries[0].ID)

	var count int64
	require.NoError(t, conn.Model(&models.CashLedgerEntry{}).Where("invoice_id = ?", invoice.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestPostCashEntriesNoOpWhenNothingToPost(t *testing.T) {
	conn, svc := newTestService(t)
	customer := dbtest.SeedCustomer(t, conn, "0")
	order := dbtest.SeedOrder(t, conn, customer.ID, "0", func(o *models.Order) { o.PaymentMethod = enums.OrderPaymentMethodCash })
	invoice := dbtest.SeedInvoice(t, conn, order, enums.InvoiceStatusFinalised, nil)

	res, err := svc.PostCashEntries(context.Background(), order.ID, invoice.ID, "")
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.False(t, res.Created)
	assert.Empty(t, res.Entries)
}

func TestPostCashEntriesPrefersInvoiceTotal(t *testing.T) {
	conn, svc := newTestService(t)
	customer := dbtest.SeedCustomer(t, conn, "0")
	order := dbtest.SeedOrder(t, conn, customer.ID, "500", nil)
	invoice := dbtest.SeedInvoice(t, conn, order, enums.InvoiceStatusFinalised, func(inv *models.Invoice) {
		inv.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString("540.50"))
	})

	res, err := svc.PostCashEntries(context.Background(), order.ID, invoice.ID, enums.CashMethodCash)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, enums.EntryDirectionDebit, res.Entries[0].Direction)
	assert.True(t, res.Entries[0].Amount.Equal(decimal.RequireFromString("540.5")))
}

func TestPostCashEntriesValidation(t *testing.T) {
	conn, svc := newTestService(t)
	customer := dbtest.SeedCustomer(t, conn, "0")
	order := dbtest.SeedOrder(t, conn, customer.ID, "100", nil)
	other := dbtest.SeedOrder(t, conn, customer.ID, "100", nil)
	invoice := dbtest.SeedInvoice(t, conn, other, enums.InvoiceStatusFinalised, nil)
	ctx := context.Background()

	_, err := svc.PostCashEntries(ctx, order.ID, invoice.ID, "card")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.PostCashEntries(ctx, order.ID, invoice.ID, enums.CashMethodCash)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.PostCashEntries(ctx, uuid.New(), invoice.ID, enums.CashMethodCash)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
