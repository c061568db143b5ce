package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fuelops/fuelops-backend/pkg/config"
	"github.com/fuelops/fuelops-backend/pkg/db/dbtest"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := dbtest.Open(t)
	client := NewFromGorm(conn)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&models.Customer{Name: "committed", CreditLimit: decimal.NewFromInt(100)}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.Customer{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Customer{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, conn.Model(&models.Customer{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateAssignsClientSideIDs(t *testing.T) {
	conn := dbtest.Open(t)

	customer := models.Customer{Name: "Depot 4"}
	require.NoError(t, conn.Create(&customer).Error)
	require.NotEqual(t, uuid.Nil, customer.ID)
}

func TestPing(t *testing.T) {
	client := NewFromGorm(dbtest.Open(t))
	require.NoError(t, client.Ping(context.Background()))
}

func TestIsUniqueViolationMatchesSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	customerID := uuid.New()

	insert := `INSERT INTO account_balances (id, customer_id) VALUES (?, ?)`
	require.NoError(t, conn.Exec(insert, uuid.NewString(), customerID.String()).Error)
	err := conn.Exec(insert, uuid.NewString(), customerID.String()).Error
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err, ""))
	require.False(t, IsUniqueViolation(errors.New("other"), ""))
}

func TestPostgresErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_outbox_events_once"})
	require.True(t, IsUniqueViolation(unique, ""))
	require.True(t, IsUniqueViolation(unique, "ux_outbox_events_once"))
	require.False(t, IsUniqueViolation(unique, "ux_account_balances_customer"))

	serialization := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	require.True(t, IsSerializationFailure(serialization))
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	require.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsSerializationFailure(errors.New("database is locked")))
	require.False(t, IsSerializationFailure(nil))
}

func TestSQLiteDSNAddsPragmas(t *testing.T) {
	require.Equal(t, "fuelops.db?_foreign_keys=1&_busy_timeout=5000", sqliteDSN("fuelops.db"))
	require.Equal(t, "file::memory:?cache=shared&_foreign_keys=1&_busy_timeout=5000", sqliteDSN("file::memory:?cache=shared"))
	require.Equal(t, "x.db?_foreign_keys=0&_busy_timeout=100", sqliteDSN("x.db?_foreign_keys=0&_busy_timeout=100"))
}

func TestDialectorForDriver(t *testing.T) {
	lite := dialectorFor(config.DBConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.Equal(t, "sqlite", lite.Name())

	pg := dialectorFor(config.DBConfig{Driver: "postgres", DSN: "postgres://u@localhost/db"})
	require.Equal(t, "postgres", pg.Name())
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := dbtest.Open(t)
	client := NewFromGorm(conn)

	require.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&models.Customer{Name: "panicked"}).Error)
			panic("mid-posting")
		})
	})

	var count int64
	require.NoError(t, conn.Model(&models.Customer{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestQueryLoggerReportsFailuresAndSlowStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf})
	q := newQueryLogger(logg).(*queryLogger)
	statement := func() (string, int64) { return "UPDATE account_balances SET amount = 1", 1 }

	q.Trace(context.Background(), time.Now(), statement, nil)
	require.Empty(t, buf.String())

	q.Trace(context.Background(), time.Now(), statement, gorm.ErrRecordNotFound)
	require.Empty(t, buf.String())

	q.Trace(context.Background(), time.Now(), statement, errors.New("deadlock detected"))
	require.Contains(t, buf.String(), `"db.query_failed"`)
	require.Contains(t, buf.String(), "account_balances")
	buf.Reset()

	q.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	require.Contains(t, buf.String(), `"db.slow_query"`)
	buf.Reset()

	q.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), statement, errors.New("ignored"))
	require.Empty(t, buf.String())
}

func TestConfigurePoolPinsSQLiteToOneConnection(t *testing.T) {
	sqlDB, err := dbtest.Open(t).DB()
	require.NoError(t, err)
	configurePool(sqlDB, config.DBConfig{Driver: "sqlite", MaxOpenConns: 20})
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}
