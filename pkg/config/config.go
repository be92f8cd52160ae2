package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Payments PaymentsConfig
	Feed     FeedConfig
	API      APIConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYTRACK_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"PAYTRACK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PAYTRACK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PAYTRACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN         string `envconfig:"PAYTRACK_DB_DSN"`
	AutoMigrate bool   `envconfig:"PAYTRACK_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"PAYTRACK_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PAYTRACK_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PAYTRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYTRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYTRACK_REDIS_URL"`
	Address      string        `envconfig:"PAYTRACK_REDIS_ADDR"`
	Password     string        `envconfig:"PAYTRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYTRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYTRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYTRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYTRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYTRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYTRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PaymentsConfig carries the fee, validation and tracking settings.
type PaymentsConfig struct {
	APIBaseURL            string          `envconfig:"PAYTRACK_API_BASE_URL"`
	CurrencyCode          string          `envconfig:"PAYTRACK_CURRENCY_CODE" default:"ZMW"`
	CountryCode           string          `envconfig:"PAYTRACK_COUNTRY_CODE" default:"ZM"`
	PlatformFeePercentage decimal.Decimal `envconfig:"PAYTRACK_PLATFORM_FEE_PERCENTAGE" default:"2"`
	MinPaymentAmount      decimal.Decimal `envconfig:"PAYTRACK_MIN_PAYMENT_AMOUNT" default:"5"`
	MaxPaymentAmount      decimal.Decimal `envconfig:"PAYTRACK_MAX_PAYMENT_AMOUNT" default:"1000000"`
	PollIntervalMS        int             `envconfig:"PAYTRACK_POLL_INTERVAL_MS" default:"5000"`
	PendingTimeoutMS      int             `envconfig:"PAYTRACK_PENDING_TIMEOUT_MS" default:"300000"`
	HTTPTimeout           time.Duration   `envconfig:"PAYTRACK_HTTP_TIMEOUT" default:"10s"`
}

// PollInterval returns the poll cadence as a duration.
func (p PaymentsConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// PendingTimeout returns the maximum time a session may sit in pending.
func (p PaymentsConfig) PendingTimeout() time.Duration {
	return time.Duration(p.PendingTimeoutMS) * time.Millisecond
}

func (p *PaymentsConfig) validate() error {
	hundred := decimal.NewFromInt(100)
	if p.PlatformFeePercentage.IsNegative() || p.PlatformFeePercentage.GreaterThan(hundred) {
		return fmt.Errorf("%s must be within [0,100], got %s", EnvPlatformFeePercentage, p.PlatformFeePercentage)
	}
	if !p.MinPaymentAmount.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvMinPaymentAmount)
	}
	if p.MinPaymentAmount.GreaterThan(p.MaxPaymentAmount) {
		return fmt.Errorf("%s must not exceed %s", EnvMinPaymentAmount, EnvMaxPaymentAmount)
	}
	if p.PollIntervalMS <= 0 {
		return fmt.Errorf("%s must be positive", EnvPollIntervalMS)
	}
	if p.PendingTimeoutMS <= 0 {
		return fmt.Errorf("%s must be positive", EnvPendingTimeoutMS)
	}
	p.CurrencyCode = strings.ToUpper(strings.TrimSpace(p.CurrencyCode))
	if len(p.CurrencyCode) != 3 {
		return fmt.Errorf("%s must be a 3-letter code, got %q", EnvCurrencyCode, p.CurrencyCode)
	}
	p.CountryCode = strings.ToUpper(strings.TrimSpace(p.CountryCode))
	p.APIBaseURL = strings.TrimRight(strings.TrimSpace(p.APIBaseURL), "/")
	return nil
}

// FeedConfig names the Redis channels used for status push events.
type FeedConfig struct {
	ChannelPrefix string `envconfig:"PAYTRACK_FEED_CHANNEL_PREFIX" default:"pt:payment_status"`
}

type APIConfig struct {
	Port            string        `envconfig:"PAYTRACK_API_PORT" default:"8080"`
	AllowedOrigins  []string      `envconfig:"PAYTRACK_API_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"PAYTRACK_API_SHUTDOWN_TIMEOUT" default:"10s"`

	// Status lookups are polled; these cap a single client and a single reference.
	LookupRateWindow     time.Duration `envconfig:"PAYTRACK_API_LOOKUP_RATE_WINDOW" default:"1m"`
	LookupIPLimit        int           `envconfig:"PAYTRACK_API_LOOKUP_IP_LIMIT" default:"120"`
	LookupReferenceLimit int           `envconfig:"PAYTRACK_API_LOOKUP_REFERENCE_LIMIT" default:"60"`
}
