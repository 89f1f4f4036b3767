package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Sources   SourcesConfig
	Sheets    SheetsConfig
	Webhook   WebhookConfig
	Cache     CacheConfig
	Fetch     FetchConfig
	Auth      AuthConfig
	WhatsApp  WhatsAppConfig
	Reporting ReportingConfig
	MongoDB   MongoDBConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// StoreConfig describes the retail store printed on receipts.
type StoreConfig struct {
	Name     string
	Timezone string
}

// SourcesConfig lists the CSV proxy endpoints that expose the spreadsheet tabs.
type SourcesConfig struct {
	// Mode selects where sheet data is read from: "csv" (proxy endpoints) or "sheets" (Sheets API).
	Mode          string
	ProductsURL   string
	CustomersURL  string
	ReceiptsURL   string
	OrdersURL     string
	ClientTimeout time.Duration
}

// SheetsConfig contains configuration required to interact with Google Sheets directly.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	ProductsRange   string
	CustomersRange  string
	ReceiptsRange   string
	OrdersRange     string
}

// WebhookConfig points at the Apps Script deployment that performs writes.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// CacheConfig selects the key-value backend that persists terminal caches.
type CacheConfig struct {
	Backend       string
	BoltPath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxValueBytes int
}

// FetchConfig tunes FetchWithFallback.
type FetchConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// AuthConfig carries the shared store password and token signing material.
type AuthConfig struct {
	StorePassword string
	TokenSecret   string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
// Receipt sharing is disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	// SheetRange receives the daily summary row in sheets mode. Empty disables it.
	SheetRange string
}

// MongoDBConfig holds settings for MongoDB. The daily archive is disabled when URI is empty.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
	File  string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Store: StoreConfig{
			Name:     getenvWithDefault("STORE_NAME", "My Store"),
			Timezone: getenvWithDefault("TIMEZONE", "Asia/Kolkata"),
		},
		Sources: SourcesConfig{
			Mode:          strings.ToLower(getenvWithDefault("SOURCE_MODE", "csv")),
			ProductsURL:   os.Getenv("PRODUCTS_CSV_URL"),
			CustomersURL:  os.Getenv("CUSTOMERS_CSV_URL"),
			ReceiptsURL:   os.Getenv("RECEIPTS_CSV_URL"),
			OrdersURL:     os.Getenv("ORDERS_CSV_URL"),
			ClientTimeout: getenvDuration("SOURCE_TIMEOUT", 15*time.Second),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			ProductsRange:   getenvWithDefault("SHEETS_PRODUCTS_RANGE", "Products!A:D"),
			CustomersRange:  getenvWithDefault("SHEETS_CUSTOMERS_RANGE", "Customers!A:C"),
			ReceiptsRange:   getenvWithDefault("SHEETS_RECEIPTS_RANGE", "Receipts!A:ZZ"),
			OrdersRange:     getenvWithDefault("SHEETS_ORDERS_RANGE", "Orders!A:B"),
		},
		Webhook: WebhookConfig{
			URL:     os.Getenv("APPS_SCRIPT_WEBHOOK_URL"),
			Timeout: getenvDuration("WEBHOOK_TIMEOUT", 20*time.Second),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(getenvWithDefault("CACHE_BACKEND", "bolt")),
			BoltPath:      getenvWithDefault("CACHE_BOLT_PATH", "storefront.db"),
			RedisAddr:     getenvWithDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getenvInt("REDIS_DB", 0),
			MaxValueBytes: getenvInt("CACHE_MAX_VALUE_BYTES", 5<<20),
		},
		Fetch: FetchConfig{
			MaxRetries: getenvInt("FETCH_MAX_RETRIES", 3),
			RetryDelay: getenvDuration("FETCH_RETRY_DELAY", time.Second),
		},
		Auth: AuthConfig{
			StorePassword: os.Getenv("STORE_PASSWORD"),
			TokenSecret:   os.Getenv("AUTH_TOKEN_SECRET"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "55 23 * * *"),
			SheetRange:   os.Getenv("REPORT_SHEET_RANGE"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "storefront"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Store.Name == "" {
		return errors.New("STORE_NAME must not be empty")
	}

	if _, err := time.LoadLocation(c.Store.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	switch c.Sources.Mode {
	case "csv":
		switch {
		case c.Sources.ProductsURL == "":
			return errors.New("PRODUCTS_CSV_URL must be provided")
		case c.Sources.CustomersURL == "":
			return errors.New("CUSTOMERS_CSV_URL must be provided")
		case c.Sources.ReceiptsURL == "":
			return errors.New("RECEIPTS_CSV_URL must be provided")
		case c.Sources.OrdersURL == "":
			return errors.New("ORDERS_CSV_URL must be provided")
		}
	case "sheets":
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
		}
	default:
		return fmt.Errorf("unsupported SOURCE_MODE %q", c.Sources.Mode)
	}

	if c.Webhook.URL == "" {
		return errors.New("APPS_SCRIPT_WEBHOOK_URL must be provided")
	}

	switch c.Cache.Backend {
	case "bolt":
		if c.Cache.BoltPath == "" {
			return errors.New("CACHE_BOLT_PATH must not be empty")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("REDIS_ADDR must not be empty")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.Cache.Backend)
	}

	if c.Fetch.MaxRetries < 0 {
		return errors.New("FETCH_MAX_RETRIES must not be negative")
	}

	if c.Auth.StorePassword == "" {
		return errors.New("STORE_PASSWORD must be provided")
	}

	if c.Auth.TokenSecret == "" {
		return errors.New("AUTH_TOKEN_SECRET must be provided")
	}

	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided when WHATSAPP_TOKEN is set")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	return nil
}

// Location resolves the store timezone. Validate guarantees it loads.
func (c StoreConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
