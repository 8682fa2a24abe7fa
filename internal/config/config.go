package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig
	Backend     BackendConfig
	POS         POSConfig
	Scanner     ScannerConfig
	Database    DatabaseConfig
	Idempotency IdempotencyConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Printer     PrinterConfig
}

type AppConfig struct {
	Name     string
	Env      string
	Port     string
	Debug    bool
	LogLevel string
}

// BackendConfig points at the inventory/transaction service the proxies forward to.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// POSConfig is the fixed register identity stamped on every transaction.
type POSConfig struct {
	EmployeeCode string
	StoreCode    string
	PosNumber    string
	TaxCode      string
	TaxRate      int64 // percent; only used for the provisional ex-tax figure
	StoreName    string
	SessionTTL   time.Duration // idle register sessions are dropped after this
}

type ScannerConfig struct {
	Policy     string
	Formats    []string
	SessionTTL time.Duration
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Timezone string
}

type IdempotencyConfig struct {
	TTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

type PrinterConfig struct {
	Type     string
	USBPath  string
	Address  string
	Width    int
	Encoding string
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	// Set defaults
	viper.SetDefault("APP_NAME", "popup-pos")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BACKEND_URL", "")
	viper.SetDefault("API_URL", "http://localhost:8000")
	viper.SetDefault("BACKEND_TIMEOUT_SECONDS", 10)
	viper.SetDefault("POS_EMPLOYEE_CODE", "9999999999")
	viper.SetDefault("POS_STORE_CODE", "30")
	viper.SetDefault("POS_NUMBER", "90")
	viper.SetDefault("POS_TAX_CODE", "10")
	viper.SetDefault("POS_TAX_RATE", 10)
	viper.SetDefault("REGISTER_SESSION_TTL_MINUTES", 720)
	viper.SetDefault("STORE_NAME", "テクワンPOPUP POS")
	viper.SetDefault("SCANNER_POLICY", "confirm")
	viper.SetDefault("SCANNER_FORMATS", "ean_13,ean_8,upc_a,upc_e,code_128")
	viper.SetDefault("SCANNER_SESSION_TTL_SECONDS", 300)
	viper.SetDefault("DB_DRIVER", "none")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "popup_pos")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "Asia/Tokyo")
	viper.SetDefault("IDEMPOTENCY_TTL_HOURS", 24)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("PRINTER_TYPE", "none")
	viper.SetDefault("PRINTER_WIDTH", 32)
	viper.SetDefault("PRINTER_ENCODING", "shift_jis")

	// API_URL is the legacy name for the backend address.
	backendURL := viper.GetString("BACKEND_URL")
	if backendURL == "" {
		backendURL = viper.GetString("API_URL")
	}

	return &Config{
		App: AppConfig{
			Name:     viper.GetString("APP_NAME"),
			Env:      viper.GetString("APP_ENV"),
			Port:     viper.GetString("APP_PORT"),
			Debug:    viper.GetBool("APP_DEBUG"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(backendURL, "/"),
			Timeout: time.Duration(viper.GetInt("BACKEND_TIMEOUT_SECONDS")) * time.Second,
		},
		POS: POSConfig{
			EmployeeCode: viper.GetString("POS_EMPLOYEE_CODE"),
			StoreCode:    viper.GetString("POS_STORE_CODE"),
			PosNumber:    viper.GetString("POS_NUMBER"),
			TaxCode:      viper.GetString("POS_TAX_CODE"),
			TaxRate:      viper.GetInt64("POS_TAX_RATE"),
			StoreName:    viper.GetString("STORE_NAME"),
			SessionTTL:   time.Duration(viper.GetInt("REGISTER_SESSION_TTL_MINUTES")) * time.Minute,
		},
		Scanner: ScannerConfig{
			Policy:     viper.GetString("SCANNER_POLICY"),
			Formats:    splitList(viper.GetString("SCANNER_FORMATS")),
			SessionTTL: time.Duration(viper.GetInt("SCANNER_SESSION_TTL_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   viper.GetString("DB_DRIVER"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
			Timezone: viper.GetString("DB_TIMEZONE"),
		},
		Idempotency: IdempotencyConfig{
			TTL: time.Duration(viper.GetInt("IDEMPOTENCY_TTL_HOURS")) * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
		Printer: PrinterConfig{
			Type:     viper.GetString("PRINTER_TYPE"),
			USBPath:  viper.GetString("PRINTER_USB_PATH"),
			Address:  viper.GetString("PRINTER_ADDRESS"),
			Width:    viper.GetInt("PRINTER_WIDTH"),
			Encoding: viper.GetString("PRINTER_ENCODING"),
		},
	}
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// Enabled reports whether a persistent store is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.Driver == "postgres"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
