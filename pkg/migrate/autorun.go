package migrate

import (
	"context"
	"fmt"

	"github.com/fuelops/fuelops-backend/pkg/config"
	"github.com/fuelops/fuelops-backend/pkg/db"
	"github.com/fuelops/fuelops-backend/pkg/db/schema"
	"github.com/fuelops/fuelops-backend/pkg/logger"
)

// PrepareSchema runs at process start. A sqlite database always receives
// the embedded ledger schema. Postgres is migrated here only in dev with
// FUELOPS_AUTO_MIGRATE set; every other environment uses cmd/migrate.
func PrepareSchema(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case cfg.DB.IsSQLite():
		return prepareSQLite(ctx, cfg, logg, client)
	case cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate:
		return migratePostgres(ctx, cfg, logg, client)
	default:
		logg.Debug(ctx, "schema left to cmd/migrate")
		return nil
	}
}

func prepareSQLite(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if err := schema.ApplySQLite(client.DB().WithContext(ctx)); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	logg.Info(logg.WithField(ctx, "dsn", cfg.DB.DSN), "sqlite ledger schema ready")
	return nil
}

func migratePostgres(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "ledger migrations applied")
	return nil
}
