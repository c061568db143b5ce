package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Cron         CronConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FUELOPS_APP_ENV" required:"true"`
	Port         string `envconfig:"FUELOPS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FUELOPS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FUELOPS_LOG_WARN_STACK" default:"false"`
	// LogFormat is "json" or "console".
	LogFormat string `envconfig:"FUELOPS_LOG_FORMAT" default:"json"`
}

func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FUELOPS_SERVICE_KIND" default:"api"`
	// MetricsAddr is the scrape listener for worker processes; empty disables it.
	MetricsAddr string `envconfig:"FUELOPS_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"FUELOPS_DB_DSN"`
	Driver string `envconfig:"FUELOPS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FUELOPS_DB_HOST"`
	LegacyPort     int    `envconfig:"FUELOPS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FUELOPS_DB_USER"`
	LegacyPassword string `envconfig:"FUELOPS_DB_PASSWORD"`
	LegacyName     string `envconfig:"FUELOPS_DB_NAME"`
	LegacySSLMode  string `envconfig:"FUELOPS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FUELOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FUELOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FUELOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FUELOPS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FUELOPS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FUELOPS_REDIS_ADDR"`
	Password     string        `envconfig:"FUELOPS_REDIS_PASSWORD"`
	DB           int           `envconfig:"FUELOPS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FUELOPS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FUELOPS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FUELOPS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FUELOPS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FUELOPS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FUELOPS_AUTO_MIGRATE" default:"false"`
	// CashSubLedger toggles the cash sub-ledger posting that follows invoice finalisation.
	CashSubLedger bool `envconfig:"FUELOPS_FEATURE_CASH_SUB_LEDGER" default:"true"`
}

// LedgerConfig tunes the accounting engine.
type LedgerConfig struct {
	CreditRepaymentPrefix string `envconfig:"FUELOPS_LEDGER_CREDIT_REPAYMENT_PREFIX" default:"Credit payment received"`
	OverdueDays           int    `envconfig:"FUELOPS_LEDGER_OVERDUE_DAYS" default:"30"`
	MaxWriteAttempts      int    `envconfig:"FUELOPS_LEDGER_MAX_WRITE_ATTEMPTS" default:"3"`
	AuditRepair           bool   `envconfig:"FUELOPS_LEDGER_AUDIT_REPAIR" default:"false"`
}

// OverdueWindow returns the no-payment window after which a negative account is overdue.
func (l LedgerConfig) OverdueWindow() time.Duration {
	if l.OverdueDays <= 0 {
		return 0
	}
	return time.Duration(l.OverdueDays) * 24 * time.Hour
}

// CronConfig schedules the cron worker. JobTimeout should stay below LockTTL
// so a stuck job cannot outlive the lock.
type CronConfig struct {
	Interval   time.Duration `envconfig:"FUELOPS_CRON_INTERVAL" default:"1h"`
	LockTTL    time.Duration `envconfig:"FUELOPS_CRON_LOCK_TTL" default:"2h"`
	JobTimeout time.Duration `envconfig:"FUELOPS_CRON_JOB_TIMEOUT" default:"30m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FUELOPS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// RateLimitConfig throttles the write routes per client IP.
type RateLimitConfig struct {
	WriteRequests int           `envconfig:"FUELOPS_RATE_LIMIT_WRITE_REQUESTS" default:"120"`
	Window        time.Duration `envconfig:"FUELOPS_RATE_LIMIT_WINDOW" default:"1m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FUELOPS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FUELOPS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FUELOPS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"FUELOPS_PUBSUB_LEDGER_TOPIC" default:"fuelops-ledger-events"`
	// InvoiceTopic falls back to LedgerTopic when empty.
	InvoiceTopic string `envconfig:"FUELOPS_PUBSUB_INVOICE_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FUELOPS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FUELOPS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FUELOPS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"FUELOPS_OUTBOX_RETENTION_DAYS" default:"30"`
	PruneBatchSize int `envconfig:"FUELOPS_OUTBOX_PRUNE_BATCH_SIZE" default:"500"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "fuelops.db"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
