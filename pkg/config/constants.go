package config

const (
	EnvPrefix = "FUELOPS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FUELOPS_APP_ENV"
	EnvPort     = "FUELOPS_APP_PORT"
	EnvLogLevel = "FUELOPS_LOG_LEVEL"

	EnvDBDSN    = "FUELOPS_DB_DSN"
	EnvDBDriver = "FUELOPS_DB_DRIVER"
	EnvDBHost   = "FUELOPS_DB_HOST"
	EnvDBUser   = "FUELOPS_DB_USER"
	EnvDBName   = "FUELOPS_DB_NAME"

	EnvRedisURL = "FUELOPS_REDIS_URL"

	EnvGCPProjectID      = "FUELOPS_GCP_PROJECT_ID"
	EnvPubSubLedgerTopic = "FUELOPS_PUBSUB_LEDGER_TOPIC"

	EnvLedgerRepaymentPrefix = "FUELOPS_LEDGER_CREDIT_REPAYMENT_PREFIX"
	EnvLedgerOverdueDays     = "FUELOPS_LEDGER_OVERDUE_DAYS"
	EnvLedgerAuditRepair     = "FUELOPS_LEDGER_AUDIT_REPAIR"

	EnvMetricsAddr          = "FUELOPS_METRICS_ADDR"
	EnvCronJobTimeout       = "FUELOPS_CRON_JOB_TIMEOUT"
	EnvOutboxPruneBatchSize = "FUELOPS_OUTBOX_PRUNE_BATCH_SIZE"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
