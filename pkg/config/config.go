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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Gateway      GatewayConfig
	Mail         MailConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"SOKOMART_APP_ENV" required:"true"`
	Port         string `envconfig:"SOKOMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOKOMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOKOMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOKOMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOKOMART_DB_DSN"`
	Driver string `envconfig:"SOKOMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOKOMART_DB_HOST"`
	LegacyPort     int    `envconfig:"SOKOMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOKOMART_DB_USER"`
	LegacyPassword string `envconfig:"SOKOMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOKOMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOKOMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOKOMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOKOMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOKOMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOKOMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOKOMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOKOMART_REDIS_ADDR"`
	Password     string        `envconfig:"SOKOMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOKOMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOKOMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOKOMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOKOMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOKOMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOKOMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOKOMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOKOMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOKOMART_JWT_EXPIRATION_MINUTES" required:"true"`
}

func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SOKOMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SOKOMART_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SOKOMART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SOKOMART_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SOKOMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SOKOMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"SOKOMART_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"SOKOMART_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"SOKOMART_PUBSUB_NOTIFICATION_TOPIC" default:"sm-notification-events"`
	NotificationSubscription string `envconfig:"SOKOMART_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type GatewayConfig struct {
	BaseURL       string        `envconfig:"SOKOMART_GATEWAY_BASE_URL"`
	MerchantCode  string        `envconfig:"SOKOMART_GATEWAY_MERCHANT_CODE"`
	APIKey        string        `envconfig:"SOKOMART_GATEWAY_API_KEY"`
	CallbackToken string        `envconfig:"SOKOMART_GATEWAY_CALLBACK_TOKEN"`
	Timeout       time.Duration `envconfig:"SOKOMART_GATEWAY_TIMEOUT" default:"10s"`
	InvoiceExpiry time.Duration `envconfig:"SOKOMART_GATEWAY_INVOICE_EXPIRY" default:"24h"`
}

type MailConfig struct {
	DefaultFrom string `envconfig:"SOKOMART_MAIL_FROM_EMAIL" default:"no-reply@sokomart.dev"`
	Enabled     bool   `envconfig:"SOKOMART_MAIL_ENABLED" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOKOMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOKOMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOKOMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	PendingOrderTTL    time.Duration `envconfig:"SOKOMART_CRON_PENDING_ORDER_TTL" default:"24h"`
	PendingOrderSweep  time.Duration `envconfig:"SOKOMART_CRON_PENDING_ORDER_SWEEP" default:"5m"`
	OutboxRetention    time.Duration `envconfig:"SOKOMART_CRON_OUTBOX_RETENTION" default:"168h"`
	OutboxSweep        time.Duration `envconfig:"SOKOMART_CRON_OUTBOX_SWEEP" default:"1h"`
	GatewayPollEvery   time.Duration `envconfig:"SOKOMART_CRON_GATEWAY_POLL_EVERY" default:"10m"`
	GatewayPollMaxAge  time.Duration `envconfig:"SOKOMART_CRON_GATEWAY_POLL_MAX_AGE" default:"48h"`
	LockTTL            time.Duration `envconfig:"SOKOMART_CRON_LOCK_TTL" default:"4m"`
	ShutdownGrace      time.Duration `envconfig:"SOKOMART_CRON_SHUTDOWN_GRACE" default:"30s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
