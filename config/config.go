package config

import (
	"flag"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultServerAddr        = ":8080"
	defaultDatabaseDSN       = ""
	defaultLogLevel          = "debug"
	defaultInvoiceDir        = "./invoices"
	defaultFrontendURL       = "http://localhost:3000"
	defaultSMTPHost          = "localhost"
	defaultSMTPPort          = 587
	defaultShopEmail         = "info@henkes-stoffzauber.de"
	defaultPayPalBaseURL     = "https://api-m.sandbox.paypal.com"
	defaultGatewayTimeout    = 10 * time.Second
	defaultIdempotencyWindow = 15 * time.Minute
	defaultReconcileInterval = 5 * time.Minute
	defaultReconcileMinAge   = 30 * time.Minute
)

type Config struct {
	ServerAddr  string
	DatabaseDSN string
	LogLevel    string

	InvoiceDir  string
	FrontendURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	ShopEmail    string

	PayPalBaseURL      string
	PayPalClientID     string
	PayPalClientSecret string
	GatewayTimeout     time.Duration

	IdempotencyWindow time.Duration
	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration

	AdminUser         string
	AdminPasswordHash string
	AuthTokenKey      string
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		cfg := Config{
			SMTPPort:          defaultSMTPPort,
			GatewayTimeout:    defaultGatewayTimeout,
			IdempotencyWindow: defaultIdempotencyWindow,
			ReconcileInterval: defaultReconcileInterval,
			ReconcileMinAge:   defaultReconcileMinAge,
		}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddr, "storefront server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "storefront database DSN")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
		flag.StringVar(&cfg.InvoiceDir, "i", defaultInvoiceDir, "invoice output directory")
		flag.StringVar(&cfg.FrontendURL, "f", defaultFrontendURL, "storefront frontend base URL")

		flag.Parse()

		// if environment variable is set, then using it
		if v := os.Getenv("RUN_ADDRESS"); v != "" {
			cfg.ServerAddr = v
		}
		if v := os.Getenv("DATABASE_URI"); v != "" {
			cfg.DatabaseDSN = v
		}
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			cfg.LogLevel = v
		}
		if v := os.Getenv("INVOICE_DIR"); v != "" {
			cfg.InvoiceDir = v
		}
		if v := os.Getenv("FRONTEND_URL"); v != "" {
			cfg.FrontendURL = v
		}
		if v := os.Getenv("SMTP_HOST"); v != "" {
			cfg.SMTPHost = v
		} else {
			cfg.SMTPHost = defaultSMTPHost
		}
		if v := os.Getenv("SMTP_PORT"); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.SMTPPort = port
			}
		}
		cfg.SMTPUser = os.Getenv("SMTP_USER")
		cfg.SMTPPassword = os.Getenv("SMTP_PASS")
		if v := os.Getenv("SHOP_EMAIL"); v != "" {
			cfg.ShopEmail = v
		} else {
			cfg.ShopEmail = defaultShopEmail
		}
		if v := os.Getenv("PAYPAL_BASE_URL"); v != "" {
			cfg.PayPalBaseURL = v
		} else {
			cfg.PayPalBaseURL = defaultPayPalBaseURL
		}
		cfg.PayPalClientID = os.Getenv("PAYPAL_CLIENT_ID")
		cfg.PayPalClientSecret = os.Getenv("PAYPAL_CLIENT_SECRET")
		if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfg.GatewayTimeout = d
			}
		}
		if v := os.Getenv("IDEMPOTENCY_WINDOW"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfg.IdempotencyWindow = d
			}
		}
		if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfg.ReconcileInterval = d
			}
		}
		if v := os.Getenv("RECONCILE_MIN_AGE"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfg.ReconcileMinAge = d
			}
		}
		cfg.AdminUser = os.Getenv("ADMIN_USER")
		cfg.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
		cfg.AuthTokenKey = os.Getenv("AUTH_TOKEN_KEY")

		singleton = &cfg
	})

	return singleton, nil
}
