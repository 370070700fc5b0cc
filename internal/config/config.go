package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	Outbox    OutboxConfig
	Pipeline  PipelineConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL.
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration, backing the provider secret cache.
type RedisConfig struct {
	URL      string
	Password string
}

// ProvidersConfig holds the per-provider webhook secret rotation lists
// (comma-separated, oldest-last) used as the SecretProvider fallback source
// when the Redis cache is cold.
type ProvidersConfig struct {
	PaystackSecrets     []string
	StripeSecrets       []string
	FlutterwaveSecrets  []string
	SecretCacheTTL      time.Duration
}

// OutboxConfig tunes internal/infrastructure/outboxjob.Sweeper.
type OutboxConfig struct {
	Interval    time.Duration
	BatchSize   int
	BaseBackoff time.Duration
	MaxRetries  int
}

// PipelineConfig tunes internal/pipeline.Processor.
type PipelineConfig struct {
	StageTimeout time.Duration
	// RedactKeys are payload key names (case-insensitive substring match)
	// the persist-claim stage strips before storing a webhook log. Headers
	// are redacted by the stage's own fixed list, not by these keys.
	RedactKeys []string
	// AutoCreateTransactions enables the state-engine stage to create a
	// PENDING Transaction for an unmatched initial payment event instead of
	// classifying it UNMATCHED.
	AutoCreateTransactions bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "payhook"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Providers: ProvidersConfig{
			PaystackSecrets:    getEnvAsList("PAYSTACK_WEBHOOK_SECRETS"),
			StripeSecrets:      getEnvAsList("STRIPE_WEBHOOK_SECRETS"),
			FlutterwaveSecrets: getEnvAsList("FLUTTERWAVE_WEBHOOK_SECRETS"),
			SecretCacheTTL:     getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
		},
		Outbox: OutboxConfig{
			Interval:    getEnvAsDuration("OUTBOX_SWEEP_INTERVAL", 30*time.Second),
			BatchSize:   getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			BaseBackoff: getEnvAsDuration("OUTBOX_BASE_BACKOFF", time.Second),
			MaxRetries:  getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
		},
		Pipeline: PipelineConfig{
			StageTimeout:           getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", 30*time.Second),
			RedactKeys:             getEnvAsListDefault("PIPELINE_REDACT_KEYS", []string{"password", "secret", "token", "authorization", "card", "cvv", "pin", "account_number", "bank"}),
			AutoCreateTransactions: getEnvAsBool("PIPELINE_AUTO_CREATE_TRANSACTIONS", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated env var, dropping empty entries. The
// order is preserved so a provider's VerifyAnySecret rotation check tries
// the newest secret first, as configured.
func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsListDefault is getEnvAsList with a fallback for when the env var
// is unset entirely.
func getEnvAsListDefault(key string, defaultValue []string) []string {
	if os.Getenv(key) == "" {
		return defaultValue
	}
	return getEnvAsList(key)
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
