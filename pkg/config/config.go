package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DocStore  DocStoreConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	QR        QRConfig
	Fanout    FanoutConfig
	Cron      CronConfig
	RateLimit RateLimitConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Features  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(cfg.Features.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"QRCATALOG_APP_ENV" required:"true"`
	Port         string `envconfig:"QRCATALOG_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QRCATALOG_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"QRCATALOG_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"QRCATALOG_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"QRCATALOG_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DocStoreConfig points at the hierarchical JSON document store (Firebase RTDB REST dialect).
type DocStoreConfig struct {
	BaseURL          string        `envconfig:"QRCATALOG_DOCSTORE_URL" required:"true"`
	AuthToken        string        `envconfig:"QRCATALOG_DOCSTORE_AUTH_TOKEN"`
	Timeout          time.Duration `envconfig:"QRCATALOG_DOCSTORE_TIMEOUT" default:"10s"`
	IncrementRetries int           `envconfig:"QRCATALOG_DOCSTORE_INCREMENT_RETRIES" default:"8"`
}

// DBConfig backs the fan-out journal.
type DBConfig struct {
	DSN    string `envconfig:"QRCATALOG_DB_DSN"`
	Driver string `envconfig:"QRCATALOG_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"QRCATALOG_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QRCATALOG_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QRCATALOG_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QRCATALOG_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"QRCATALOG_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"QRCATALOG_REDIS_URL"`
	Address      string        `envconfig:"QRCATALOG_REDIS_ADDR"`
	Password     string        `envconfig:"QRCATALOG_REDIS_PASSWORD"`
	DB           int           `envconfig:"QRCATALOG_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QRCATALOG_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QRCATALOG_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QRCATALOG_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QRCATALOG_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QRCATALOG_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a Redis endpoint was provided.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig verifies bearer tokens minted by the external auth service.
type JWTConfig struct {
	Secret string `envconfig:"QRCATALOG_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"QRCATALOG_JWT_ISSUER" required:"true"`
	// Leeway absorbs clock skew between the auth service and this API.
	Leeway time.Duration `envconfig:"QRCATALOG_JWT_LEEWAY" default:"30s"`
}

type QRConfig struct {
	PublicBaseURL  string `envconfig:"QRCATALOG_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	CurrencySymbol string `envconfig:"QRCATALOG_CURRENCY_SYMBOL" default:"₹"`
	MaxUploadMB    int    `envconfig:"QRCATALOG_QR_MAX_UPLOAD_MB" default:"10"`
}

// MaxUploadBytes returns the decode upload limit in bytes.
func (q QRConfig) MaxUploadBytes() int64 {
	if q.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(q.MaxUploadMB) << 20
}

type FanoutConfig struct {
	RepairGrace       time.Duration `envconfig:"QRCATALOG_FANOUT_REPAIR_GRACE" default:"2m"`
	RepairMaxAttempts int           `envconfig:"QRCATALOG_FANOUT_REPAIR_MAX_ATTEMPTS" default:"10"`
	RepairBatchSize   int           `envconfig:"QRCATALOG_FANOUT_REPAIR_BATCH_SIZE" default:"50"`
	IdempotencyTTL    time.Duration `envconfig:"QRCATALOG_FANOUT_IDEMPOTENCY_TTL" default:"24h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"QRCATALOG_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"QRCATALOG_CRON_LOCK_TTL" default:"5m"`

	// JournalRetentionDays is how long committed fan-out journal rows are kept.
	JournalRetentionDays int `envconfig:"QRCATALOG_CRON_JOURNAL_RETENTION_DAYS" default:"30"`
}

// RateLimitConfig throttles the unauthenticated QR endpoints and product requests.
// A zero window or limit disables the policy.
type RateLimitConfig struct {
	QRWindow       time.Duration `envconfig:"QRCATALOG_RATE_LIMIT_QR_WINDOW" default:"1m"`
	QRIPLimit      int           `envconfig:"QRCATALOG_RATE_LIMIT_QR_IP_LIMIT" default:"120"`
	RequestsWindow time.Duration `envconfig:"QRCATALOG_RATE_LIMIT_REQUESTS_WINDOW" default:"1h"`
	RequestsLimit  int           `envconfig:"QRCATALOG_RATE_LIMIT_REQUESTS_USER_LIMIT" default:"30"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"QRCATALOG_GCP_PROJECT_ID"`
}

// PubSubConfig is optional; an empty OrdersTopic disables order events.
type PubSubConfig struct {
	OrdersTopic string `envconfig:"QRCATALOG_PUBSUB_ORDERS_TOPIC"`
}

// Enabled reports whether order events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.OrdersTopic) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"QRCATALOG_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"QRCATALOG_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) validate(useSQLite bool) error {
	if useSQLite {
		if db.DSN == "" {
			db.DSN = "file:qrcatalog.db?cache=shared"
		}
		db.Driver = DBDriverSQLite
		return nil
	}
	if strings.TrimSpace(db.DSN) == "" {
		return fmt.Errorf("%s is required", EnvDBDSN)
	}
	return nil
}
