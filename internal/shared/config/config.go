package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Seat holds and idempotency
	Booking BookingConfig

	// Webhook and token secrets
	Secrets SecretsConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Default operator seeding
	Operator OperatorConfig

	// Kafka (booking lifecycle events)
	Kafka KafkaConfig

	// JWT for operator/admin surfaces
	JWT JWTConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis (lock store) configuration
type RedisConfig struct {
	URL      string
	Username string
	Password string
	DB       int

	// Cooldown after a transport failure before the lock service
	// talks to Redis again.
	CircuitOpen time.Duration

	// TTL for one-time webhook replay nonces.
	NonceTTL time.Duration
}

// BookingConfig holds hold/idempotency timing configuration
type BookingConfig struct {
	// How long a HOLD keeps its seats before expiring.
	HoldDuration time.Duration

	// How long a `started` idempotency row blocks duplicates before a
	// retry may take it over.
	IdempotencyStartedTTL time.Duration

	// TTL for the per-booking cancellation lock.
	CancelLockTTL time.Duration

	// Settlement commission, basis points. Recorded on payment audits.
	CommissionRateBPS int

	// Reconciliation sweep intervals.
	ExpirySweepInterval time.Duration
	OrphanSweepInterval time.Duration
}

// SecretsConfig holds HMAC keys for the intake surfaces
type SecretsConfig struct {
	PaymentWebhook  string
	WhatsAppWebhook string
	BookingToken    string
}

// RateLimitConfig holds per-IP per-minute caps
type RateLimitConfig struct {
	Enabled         bool
	WindowDuration  time.Duration
	WebhookRequests int
	CancelRequests  int
	DefaultRequests int
	HealthRequests  int
	WhitelistedIPs  []string
}

// OperatorConfig seeds the default operator on startup
type OperatorConfig struct {
	Phone string
	Name  string
}

// KafkaConfig holds booking event producer configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// JWTConfig holds JWT configuration for operator bearer tokens
type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "transitly_db"),
			User:     getEnv("DB_USER", "transitly_user"),
			Password: getEnv("DB_PASSWORD", "transitly_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Username:    getEnv("REDIS_USERNAME", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getIntEnv("REDIS_DB", 0),
			CircuitOpen: getMillisEnv("REDIS_CIRCUIT_OPEN_MS", 30*time.Second),
			NonceTTL:    getDurationEnv("REPLAY_NONCE_TTL", 10*time.Minute),
		},

		Booking: BookingConfig{
			HoldDuration:          getMinutesEnv("HOLD_DURATION_MINUTES", 10*time.Minute),
			IdempotencyStartedTTL: getSecondsEnv("IDEMPOTENCY_STARTED_TTL_SECONDS", 300*time.Second),
			CancelLockTTL:         getSecondsEnv("CANCEL_LOCK_TTL_SECONDS", 20*time.Second),
			CommissionRateBPS:     getIntEnv("COMMISSION_RATE_BPS", 0),
			ExpirySweepInterval:   getMinutesEnv("EXPIRY_SWEEP_MINUTES", 5*time.Minute),
			OrphanSweepInterval:   getMinutesEnv("ORPHAN_SWEEP_MINUTES", 15*time.Minute),
		},

		Secrets: SecretsConfig{
			PaymentWebhook:  getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			WhatsAppWebhook: getEnv("WHATSAPP_WEBHOOK_SECRET", ""),
			BookingToken:    getEnv("BOOKING_TOKEN_SECRET", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:         getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:  getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			WebhookRequests: getIntEnv("RATE_LIMIT_WEBHOOKS", 120),
			CancelRequests:  getIntEnv("RATE_LIMIT_CANCEL", 20),
			DefaultRequests: getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			HealthRequests:  getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:  getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		Operator: OperatorConfig{
			Phone: getEnv("OPERATOR_PHONE", ""),
			Name:  getEnv("OPERATOR_NAME", ""),
		},

		Kafka: KafkaConfig{
			Enabled: getBoolEnv("KAFKA_ENABLED", false),
			Brokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_BOOKING_EVENTS_TOPIC", "booking-events"),
		},

		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", "change-me-in-production"),
			ExpiresIn: getDurationEnv("JWT_EXPIRES_IN", 24*time.Hour),
		},

		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getSecondsEnv reads an integer number of seconds
func getSecondsEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getMinutesEnv reads an integer number of minutes
func getMinutesEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return fallback
}

// getMillisEnv reads an integer number of milliseconds
func getMillisEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}
