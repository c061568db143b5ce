package migrate

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/config"
	"github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

func TestPrepareSchemaAppliesSQLiteSchema(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: "prod"},
		DB:  config.DBConfig{Driver: "sqlite", DSN: dsn},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})

	require.NoError(t, PrepareSchema(context.Background(), cfg, logg, db.NewFromGorm(conn)))
	for _, table := range []string{"ledger_entries", "account_balances", "cash_ledger_entries", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestPrepareSchemaLeavesPostgresOutsideDev(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: "prod"},
		DB:           config.DBConfig{Driver: "postgres"},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})

	// a nil client proves nothing was touched
	require.NoError(t, PrepareSchema(context.Background(), cfg, logg, nil))
}
