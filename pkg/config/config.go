package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "OCEAN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cart         CartConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"OCEAN_APP_ENV" required:"true"`
	Port         string `envconfig:"OCEAN_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"OCEAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OCEAN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"OCEAN_DB_DSN"`
	Driver string `envconfig:"OCEAN_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"OCEAN_DB_HOST"`
	Port     int    `envconfig:"OCEAN_DB_PORT" default:"5432"`
	User     string `envconfig:"OCEAN_DB_USER"`
	Password string `envconfig:"OCEAN_DB_PASSWORD"`
	Name     string `envconfig:"OCEAN_DB_NAME"`
	SSLMode  string `envconfig:"OCEAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"OCEAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"OCEAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"OCEAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OCEAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if strings.EqualFold(d.Driver, "sqlite") {
		d.DSN = "file::memory:?cache=shared"
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either OCEAN_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"OCEAN_REDIS_URL" required:"true"`
	Password     string        `envconfig:"OCEAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"OCEAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OCEAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OCEAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OCEAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OCEAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OCEAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"OCEAN_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"OCEAN_JWT_ISSUER" default:"ocean-shopping-center"`
}

// CartConfig holds lifecycle thresholds consumed by the sweep jobs.
type CartConfig struct {
	GuestTTL           time.Duration `envconfig:"OCEAN_CART_GUEST_TTL" default:"168h"`
	AbandonAfter       time.Duration `envconfig:"OCEAN_CART_ABANDON_AFTER" default:"72h"`
	EmptyRetention     time.Duration `envconfig:"OCEAN_CART_EMPTY_RETENTION" default:"24h"`
	TerminalRetention  time.Duration `envconfig:"OCEAN_CART_TERMINAL_RETENTION" default:"2160h"`
	SweepBatchSize     int           `envconfig:"OCEAN_CART_SWEEP_BATCH_SIZE" default:"200"`
	LockAcquireTimeout time.Duration `envconfig:"OCEAN_CART_LOCK_ACQUIRE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"OCEAN_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"OCEAN_AUTO_MIGRATE" default:"false"`
}

type PubSubConfig struct {
	ProjectID string `envconfig:"OCEAN_PUBSUB_PROJECT_ID"`
	TopicID   string `envconfig:"OCEAN_PUBSUB_TOPIC_ID" default:"ocean-domain-events"`
}

type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"OCEAN_OUTBOX_POLL_INTERVAL" default:"5s"`
	BatchSize    int           `envconfig:"OCEAN_OUTBOX_BATCH_SIZE" default:"100"`
	MaxAttempts  int           `envconfig:"OCEAN_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionAge time.Duration `envconfig:"OCEAN_OUTBOX_RETENTION_AGE" default:"336h"`
}
