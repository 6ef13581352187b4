package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string `validate:"oneof=development test staging production"`
	LogLevel string `validate:"oneof=debug info warn error"`

	// Secrets
	EncryptionKey string
	JWTSecret     string
	JWTTTL        time.Duration `validate:"gt=0"`

	// Database. An empty DatabaseURL selects the local SQLite file.
	DatabaseURL    string
	DatabaseDriver string `validate:"omitempty,oneof=auto postgres sqlite"`
	SQLitePath     string

	// Redis enables the shared invoice sequence and the distributed run lock.
	RedisURL string

	// RabbitMQ. Empty selects the in-process bus.
	RabbitMQURL string

	// Surfaces
	APIAddr          string `validate:"required"`
	MCPAddr          string `validate:"required"`
	MCPAuthToken     string
	WorkerHealthAddr string `validate:"required"`

	// Renewal engine
	RenewalRunAt       string `validate:"required"`
	RenewalTimezone    string
	RenewalConcurrency int `validate:"gte=1,lte=256"`
	RenewalGraceDays   int `validate:"gte=0"`

	// Charge gateway
	ChargeSuccessRate       decimal.Decimal
	BreakerFailureThreshold int           `validate:"gte=1"`
	BreakerOpenTimeout      time.Duration `validate:"gt=0"`

	// Outbox
	OutboxPollInterval     time.Duration `validate:"gt=0"`
	OutboxBatchSize        int           `validate:"gte=1"`
	OutboxMaxRetries       int           `validate:"gte=0"`
	OutboxStatsInterval    time.Duration `validate:"gt=0"`
	OutboxRetentionDays    int           `validate:"gte=1"`
	OutboxCleanupInterval  time.Duration `validate:"gt=0"`
	OutboxProcessorEnabled bool
}

// Load loads configuration from environment variables, reading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		EncryptionKey: getEnv("BILLORA_ENCRYPTION_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTTTL:        getDurationEnv("JWT_TTL", 24*time.Hour),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "auto"),
		SQLitePath:     getEnv("SQLITE_PATH", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		APIAddr:          getEnv("API_ADDR", "0.0.0.0:8080"),
		MCPAddr:          getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken:     getEnv("MCP_AUTH_TOKEN", ""),
		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		RenewalRunAt:       getEnv("RENEWAL_RUN_AT", "00:05"),
		RenewalTimezone:    getEnv("RENEWAL_TIMEZONE", "Local"),
		RenewalConcurrency: getIntEnv("RENEWAL_CONCURRENCY", 8),
		RenewalGraceDays:   getIntEnv("RENEWAL_GRACE_DAYS", 7),

		ChargeSuccessRate:       getDecimalEnv("CHARGE_SUCCESS_RATE", decimal.RequireFromString("0.95")),
		BreakerFailureThreshold: getIntEnv("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerOpenTimeout:      getDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:    getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, _, err := c.RunAt(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ChargeSuccessRate.LessThan(decimal.Zero) || c.ChargeSuccessRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid configuration: CHARGE_SUCCESS_RATE must be within [0, 1], got %s", c.ChargeSuccessRate)
	}
	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("invalid configuration: JWT_SECRET is required in production")
		}
		if c.EncryptionKey == "" {
			return fmt.Errorf("invalid configuration: BILLORA_ENCRYPTION_KEY is required in production")
		}
	}
	return nil
}

// RunAt parses RenewalRunAt as HH:MM.
func (c *Config) RunAt() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.RenewalRunAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid configuration: RENEWAL_RUN_AT %q is not HH:MM", c.RenewalRunAt)
	}
	return t.Hour(), t.Minute(), nil
}

// Location resolves RenewalTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.RenewalTimezone == "" || c.RenewalTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.RenewalTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: RENEWAL_TIMEZONE: %w", err)
	}
	return loc, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
