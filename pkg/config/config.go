package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	FlowPayment = "payment"
	FlowDirect  = "direct"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App       AppConfig
	Redis     RedisConfig
	DB        DBConfig
	Commerce  CommerceConfig
	Telegram  TelegramConfig
	Checkout  CheckoutConfig
	Session   SessionConfig
	Webhook   WebhookConfig
	Reconcile ReconcileConfig
	Admin     AdminConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"CHATSHOP_APP_ENV" required:"true"`
	Port            string        `envconfig:"CHATSHOP_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"CHATSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"CHATSHOP_LOG_WARN_STACK" default:"false"`
	LogFormat       string        `envconfig:"CHATSHOP_LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"CHATSHOP_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"CHATSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHATSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"CHATSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHATSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHATSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHATSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHATSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHATSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHATSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DBConfig points at the reconciliation ledger database.
type DBConfig struct {
	Driver          string        `envconfig:"CHATSHOP_DB_DRIVER" default:"sqlite"`
	DSN             string        `envconfig:"CHATSHOP_DB_DSN" default:"file:chatshop.db?_busy_timeout=5000"`
	AutoMigrate     bool          `envconfig:"CHATSHOP_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"CHATSHOP_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CHATSHOP_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CHATSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
}

func (db DBConfig) validate() error {
	switch strings.ToLower(db.Driver) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported db driver %q", db.Driver)
	}
	if strings.TrimSpace(db.DSN) == "" {
		return fmt.Errorf("CHATSHOP_DB_DSN is required")
	}
	return nil
}

type CommerceConfig struct {
	BaseURL         string        `envconfig:"CHATSHOP_COMMERCE_BASE_URL" required:"true"`
	UsersPath       string        `envconfig:"CHATSHOP_COMMERCE_USERS_PATH" default:"/users"`
	CategoriesPath  string        `envconfig:"CHATSHOP_COMMERCE_CATEGORIES_PATH" default:"/categories/"`
	ProductsPath    string        `envconfig:"CHATSHOP_COMMERCE_PRODUCTS_PATH" default:"/products/"`
	OrderGroupsPath string        `envconfig:"CHATSHOP_COMMERCE_ORDER_GROUPS_PATH" default:"/order-groups/"`
	OrdersPath      string        `envconfig:"CHATSHOP_COMMERCE_ORDERS_PATH" default:"/orders/"`
	Timeout         time.Duration `envconfig:"CHATSHOP_COMMERCE_TIMEOUT" default:"10s"`
}

type TelegramConfig struct {
	Token         string        `envconfig:"CHATSHOP_TELEGRAM_TOKEN" required:"true"`
	APIURL        string        `envconfig:"CHATSHOP_TELEGRAM_API_URL" default:"https://api.telegram.org"`
	WebhookURL    string        `envconfig:"CHATSHOP_TELEGRAM_WEBHOOK_URL"`
	WebhookSecret string        `envconfig:"CHATSHOP_TELEGRAM_WEBHOOK_SECRET"`
	PaymentToken  string        `envconfig:"CHATSHOP_PAYMENT_PROVIDER_TOKEN"`
	Timeout       time.Duration `envconfig:"CHATSHOP_TELEGRAM_TIMEOUT" default:"10s"`
	FallbackImage string        `envconfig:"CHATSHOP_FALLBACK_IMAGE_URL" default:"https://upload.wikimedia.org/wikipedia/commons/d/d1/Image_not_available.png"`

	// ImageHostPrefix marks product image URLs Telegram cannot fetch, such as
	// a backend served from localhost.
	ImageHostPrefix string `envconfig:"CHATSHOP_IMAGE_HOST_PREFIX" default:"http://127.0.0.1"`
}

type CheckoutConfig struct {
	Flow     string `envconfig:"CHATSHOP_CHECKOUT_FLOW" default:"payment"`
	Currency string `envconfig:"CHATSHOP_CHECKOUT_CURRENCY" default:"UZS"`
}

// PaymentGated reports whether orders are committed only after payment.
func (c CheckoutConfig) PaymentGated() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Flow), FlowDirect)
}

func (c CheckoutConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Flow)) {
	case FlowPayment, FlowDirect:
		return nil
	}
	return fmt.Errorf("unsupported checkout flow %q", c.Flow)
}

type SessionConfig struct {
	IdleTTL       time.Duration `envconfig:"CHATSHOP_SESSION_IDLE_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"CHATSHOP_SESSION_SWEEP_INTERVAL" default:"10m"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CHATSHOP_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
	MaxPending     int           `envconfig:"CHATSHOP_WEBHOOK_MAX_PENDING" default:"32"`
}

type ReconcileConfig struct {
	ReportInterval time.Duration `envconfig:"CHATSHOP_ORPHAN_REPORT_INTERVAL" default:"1h"`
	StaleAfter     time.Duration `envconfig:"CHATSHOP_ORPHAN_STALE_AFTER" default:"6h"`
}

// AdminConfig guards the operator routes. They are not mounted without a token.
type AdminConfig struct {
	Token string `envconfig:"CHATSHOP_ADMIN_TOKEN"`
}
