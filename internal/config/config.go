// Package config centralises configuration parsing for the schedule service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values for the schedule service.
type Config struct {
	HTTPAddress    string
	MetricsAddress string // Optional dedicated listener for /metrics; empty serves it on HTTPAddress.
	// PostgresURL selects the store. Empty runs against in-memory repositories.
	PostgresURL          string
	KafkaBrokers         []string
	OutboxEnabled        bool
	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	NotificationInterval time.Duration
	JWTSecret            string
	JWTIssuer            string
	CORSOrigins          []string
	LogLevel             string
	ConsumerGroupID      string
	ConsumerTopics       []string
	DLQPollInterval      time.Duration // Interval between DLQ polling iterations.
	DLQMaxRetries        int           // Maximum number of DLQ retry attempts before quarantine.
	DLQBaseDelay         time.Duration // Base delay used for exponential backoff.
}

// Load reads a .env file when present, then environment variables into Config,
// applying sensible defaults for local dev.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddress:          getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress:       getEnv("METRICS_ADDRESS", ""),
		PostgresURL:          getEnv("POSTGRES_URL", ""),
		OutboxEnabled:        getBoolEnv("OUTBOX_ENABLED", true),
		OutboxPollInterval:   getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:      getIntEnv("OUTBOX_BATCH_SIZE", 25),
		NotificationInterval: getDurationEnv("NOTIFICATION_INTERVAL", time.Minute),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:            getEnv("JWT_ISSUER", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ConsumerGroupID:      getEnv("CONSUMER_GROUP_ID", "schedule-event-log"),
		DLQPollInterval:      getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:        getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:         getDurationEnv("DLQ_BASE_DELAY", time.Minute),
	}

	cfg.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092"))
	cfg.CORSOrigins = splitAndTrim(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	cfg.ConsumerTopics = splitAndTrim(getEnv("CONSUMER_TOPICS", "schedule_events,notification_events"))
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
