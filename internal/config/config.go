package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Lifecycle LifecycleConfig
	NATS      NATSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver          string // postgres, memory
	ApplicationName string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// GatewayConfig holds the mobile-money gateway credentials and endpoints
type GatewayConfig struct {
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	ShortCode          string
	PassKey            string
	TransactionType    string
	CallbackURL        string
	RequestTimeout     time.Duration
	TokenRefreshMargin time.Duration
	CurrencyExponent   int32

	B2CShortCode       string
	InitiatorName      string
	InitiatorPassword  string
	SecurityCredential string
	CertificatePath    string
	ResultURL          string
	QueueTimeoutURL    string
}

// LifecycleConfig controls how long pending transactions wait before reconciliation
type LifecycleConfig struct {
	CallbackDeadline time.Duration
	HardTimeout      time.Duration
	SweepInterval    time.Duration
	SweepBatchSize   int
	SweepConcurrency int
	OrphanWindow     time.Duration
	OrphanInterval   time.Duration
}

// NATSConfig holds event publishing configuration
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Enabled       bool
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"SERVER_READ_TIMEOUT":  "15s",
	"SERVER_WRITE_TIMEOUT": "30s",
	"SERVER_IDLE_TIMEOUT":  "60s",

	"DB_DRIVER":            "postgres",
	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "postgres",
	"DB_NAME":              "pesaguru_payments",
	"DB_SSLMODE":           "disable",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": "5m",
	"DB_CONNECT_TIMEOUT":   "30s",
	"DB_APPLICATION_NAME":  "pesapay-gateway",

	"GATEWAY_BASE_URL":             "https://sandbox.safaricom.co.ke",
	"GATEWAY_SHORT_CODE":           "174379",
	"GATEWAY_TRANSACTION_TYPE":     "CustomerPayBillOnline",
	"GATEWAY_REQUEST_TIMEOUT":      "30s",
	"GATEWAY_TOKEN_REFRESH_MARGIN": "60s",
	"GATEWAY_CURRENCY_EXPONENT":    0,
	"GATEWAY_B2C_SHORT_CODE":       "600000",
	"GATEWAY_INITIATOR_NAME":       "testapi",

	"LIFECYCLE_CALLBACK_DEADLINE":  "2m",
	"LIFECYCLE_HARD_TIMEOUT":       "24h",
	"LIFECYCLE_SWEEP_INTERVAL":     "1m",
	"LIFECYCLE_SWEEP_BATCH_SIZE":   100,
	"LIFECYCLE_SWEEP_CONCURRENCY":  4,
	"LIFECYCLE_ORPHAN_WINDOW":      "10m",
	"LIFECYCLE_ORPHAN_INTERVAL":    "15s",

	"NATS_ENABLED":        false,
	"NATS_URL":            "nats://localhost:4222",
	"NATS_SUBJECT_PREFIX": "payments",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",
}

// Load loads configuration from environment variables, an optional pesapay.yaml,
// and sensible defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("pesapay")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("SERVER_IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnectTimeout:  v.GetDuration("DB_CONNECT_TIMEOUT"),
			ApplicationName: v.GetString("DB_APPLICATION_NAME"),
		},
		Gateway: GatewayConfig{
			BaseURL:            strings.TrimSuffix(v.GetString("GATEWAY_BASE_URL"), "/"),
			ConsumerKey:        v.GetString("GATEWAY_CONSUMER_KEY"),
			ConsumerSecret:     v.GetString("GATEWAY_CONSUMER_SECRET"),
			ShortCode:          v.GetString("GATEWAY_SHORT_CODE"),
			PassKey:            v.GetString("GATEWAY_PASS_KEY"),
			TransactionType:    v.GetString("GATEWAY_TRANSACTION_TYPE"),
			CallbackURL:        v.GetString("GATEWAY_CALLBACK_URL"),
			RequestTimeout:     v.GetDuration("GATEWAY_REQUEST_TIMEOUT"),
			TokenRefreshMargin: v.GetDuration("GATEWAY_TOKEN_REFRESH_MARGIN"),
			CurrencyExponent:   v.GetInt32("GATEWAY_CURRENCY_EXPONENT"),
			B2CShortCode:       v.GetString("GATEWAY_B2C_SHORT_CODE"),
			InitiatorName:      v.GetString("GATEWAY_INITIATOR_NAME"),
			InitiatorPassword:  v.GetString("GATEWAY_INITIATOR_PASSWORD"),
			SecurityCredential: v.GetString("GATEWAY_SECURITY_CREDENTIAL"),
			CertificatePath:    v.GetString("GATEWAY_CERTIFICATE_PATH"),
			ResultURL:          v.GetString("GATEWAY_RESULT_URL"),
			QueueTimeoutURL:    v.GetString("GATEWAY_QUEUE_TIMEOUT_URL"),
		},
		Lifecycle: LifecycleConfig{
			CallbackDeadline: v.GetDuration("LIFECYCLE_CALLBACK_DEADLINE"),
			HardTimeout:      v.GetDuration("LIFECYCLE_HARD_TIMEOUT"),
			SweepInterval:    v.GetDuration("LIFECYCLE_SWEEP_INTERVAL"),
			SweepBatchSize:   v.GetInt("LIFECYCLE_SWEEP_BATCH_SIZE"),
			SweepConcurrency: v.GetInt("LIFECYCLE_SWEEP_CONCURRENCY"),
			OrphanWindow:     v.GetDuration("LIFECYCLE_ORPHAN_WINDOW"),
			OrphanInterval:   v.GetDuration("LIFECYCLE_ORPHAN_INTERVAL"),
		},
		NATS: NATSConfig{
			Enabled:       v.GetBool("NATS_ENABLED"),
			URL:           v.GetString("NATS_URL"),
			SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name cannot be empty")
		}
		if c.Database.ConnectTimeout < 0 {
			return fmt.Errorf("database connect timeout cannot be negative")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or memory)", c.Database.Driver)
	}

	if _, err := url.ParseRequestURI(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("invalid gateway base url: %w", err)
	}
	if c.Gateway.ShortCode == "" {
		return fmt.Errorf("gateway short code cannot be empty")
	}
	if c.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("gateway request timeout must be positive")
	}
	if c.Gateway.TokenRefreshMargin < 0 {
		return fmt.Errorf("token refresh margin cannot be negative")
	}
	if c.Gateway.CurrencyExponent < 0 || c.Gateway.CurrencyExponent > 4 {
		return fmt.Errorf("currency exponent must be between 0 and 4, got %d", c.Gateway.CurrencyExponent)
	}

	if c.Lifecycle.CallbackDeadline <= 0 {
		return fmt.Errorf("callback deadline must be positive")
	}
	if c.Lifecycle.HardTimeout < c.Lifecycle.CallbackDeadline {
		return fmt.Errorf("hard timeout (%s) must be >= callback deadline (%s)",
			c.Lifecycle.HardTimeout, c.Lifecycle.CallbackDeadline)
	}
	if c.Lifecycle.SweepConcurrency < 1 {
		return fmt.Errorf("sweep concurrency must be at least 1")
	}
	if c.Lifecycle.SweepBatchSize < 1 {
		return fmt.Errorf("sweep batch size must be at least 1")
	}
	if c.Lifecycle.OrphanWindow <= 0 {
		return fmt.Errorf("orphan window must be positive")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url cannot be empty when nats is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	switch c.Logger.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logger.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string. The application name tags the
// gateway's sessions in pg_stat_activity.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
	if c.ApplicationName != "" {
		dsn += " application_name=" + c.ApplicationName
	}
	return dsn
}
