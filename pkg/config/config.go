package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Worker   WorkerConfig
	Features FeatureFlagsConfig
}

// Load reads the BOOKSTORE_* environment. Every problem found after parsing
// is reported at once so a bad deploy fails with the full list.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	err := c.DB.resolveDSN()
	switch strings.ToLower(c.App.LogFormat) {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be json or console, got %q", EnvLogFormat, c.App.LogFormat))
	}
	if c.Checkout.RateLimitPerUser <= 0 || c.Checkout.RateLimitPerIP <= 0 {
		err = multierr.Append(err, errors.New("checkout rate limits must be positive"))
	}
	if c.Worker.SweepLimit <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvWorkerSweepLimit))
	}
	// A sweep cycle is cut off at four fifths of the lease; one gateway call
	// must still fit inside it.
	if budget := c.Worker.LockTTL - c.Worker.LockTTL/5; budget <= c.Gateway.Timeout {
		err = multierr.Append(err, fmt.Errorf("%s must be well above %s, got %s", EnvWorkerLockTTL, EnvGatewayTimeout, c.Worker.LockTTL))
	}
	return err
}

type AppConfig struct {
	Env             string        `envconfig:"BOOKSTORE_APP_ENV" required:"true"`
	Port            string        `envconfig:"BOOKSTORE_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"BOOKSTORE_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"BOOKSTORE_LOG_FORMAT" default:"json"`
	LogWarnStack    bool          `envconfig:"BOOKSTORE_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"BOOKSTORE_SHUTDOWN_TIMEOUT" default:"15s"`

	CORSAllowedOrigins []string `envconfig:"BOOKSTORE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"BOOKSTORE_DB_DSN"`

	LegacyHost     string `envconfig:"BOOKSTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKSTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKSTORE_DB_USER"`
	LegacyPassword string `envconfig:"BOOKSTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKSTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKSTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKSTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig only covers verification; tokens are issued by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"BOOKSTORE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"BOOKSTORE_JWT_ISSUER" required:"true"`
}

type GatewayConfig struct {
	BaseURL     string        `envconfig:"BOOKSTORE_GATEWAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	KeyID       string        `envconfig:"BOOKSTORE_GATEWAY_KEY_ID"`
	KeySecret   string        `envconfig:"BOOKSTORE_GATEWAY_KEY_SECRET"`
	Currency    string        `envconfig:"BOOKSTORE_GATEWAY_CURRENCY" default:"INR"`
	CallbackURL string        `envconfig:"BOOKSTORE_GATEWAY_CALLBACK_URL"`
	Timeout     time.Duration `envconfig:"BOOKSTORE_GATEWAY_TIMEOUT" default:"10s"`
	NotifySMS   bool          `envconfig:"BOOKSTORE_GATEWAY_NOTIFY_SMS" default:"true"`
	NotifyEmail bool          `envconfig:"BOOKSTORE_GATEWAY_NOTIFY_EMAIL" default:"true"`

	BreakerMaxFailures uint32        `envconfig:"BOOKSTORE_GATEWAY_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"BOOKSTORE_GATEWAY_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// Missing lists, in a fixed order, the gateway settings that must be present
// before the process accepts traffic.
func (g GatewayConfig) Missing() []string {
	var missing []string
	for _, setting := range []struct{ env, value string }{
		{EnvGatewayBaseURL, g.BaseURL},
		{EnvGatewayKeyID, g.KeyID},
		{EnvGatewayKeySecret, g.KeySecret},
		{EnvGatewayCallbackURL, g.CallbackURL},
	} {
		if strings.TrimSpace(setting.value) == "" {
			missing = append(missing, setting.env)
		}
	}
	return missing
}

type CheckoutConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BOOKSTORE_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`

	RateLimitWindow  time.Duration `envconfig:"BOOKSTORE_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser int64         `envconfig:"BOOKSTORE_CHECKOUT_RATE_LIMIT_PER_USER" default:"10"`
	RateLimitPerIP   int64         `envconfig:"BOOKSTORE_CHECKOUT_RATE_LIMIT_PER_IP" default:"30"`
}

// WorkerConfig drives cmd/reconcile-worker.
type WorkerConfig struct {
	Interval   time.Duration `envconfig:"BOOKSTORE_WORKER_INTERVAL" default:"1m"`
	SweepGrace time.Duration `envconfig:"BOOKSTORE_WORKER_SWEEP_GRACE" default:"15m"`
	SweepLimit int           `envconfig:"BOOKSTORE_WORKER_SWEEP_LIMIT" default:"100"`
	LockTTL    time.Duration `envconfig:"BOOKSTORE_WORKER_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BOOKSTORE_AUTO_MIGRATE" default:"false"`
}

// resolveDSN assembles a postgres URL from the discrete BOOKSTORE_DB_* parts
// when no DSN is given.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		dsn.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
