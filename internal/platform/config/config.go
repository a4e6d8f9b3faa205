package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr string

	// Storage. Postgres wins when both are set; an empty pair falls back to
	// the in-memory stores.
	PostgresURL string
	RedisURL    string

	// Telemetry export. Kafka is used when brokers are set, otherwise spans
	// go to the structured logger.
	KafkaBrokers []string
	KafkaTopic   string

	TelemetryBufferCapacity int
	TelemetryBatchSize      int
	TelemetryFlushInterval  time.Duration

	// Bounded wait for in-flight duplicate requests.
	IdempotencyWait time.Duration
	IdempotencyPoll time.Duration

	// Optional YAML file widening the masking field vocabulary.
	MaskingRulesPath string
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:         envOr("ESHOP_ADDR", ":8080"),
		PostgresURL:  os.Getenv("ESHOP_POSTGRES_URL"),
		RedisURL:     os.Getenv("ESHOP_REDIS_URL"),
		KafkaBrokers: splitList(os.Getenv("ESHOP_KAFKA_BROKERS")),
		KafkaTopic:   envOr("ESHOP_KAFKA_TOPIC", "eshop.spans"),

		TelemetryBufferCapacity: envInt("ESHOP_TELEMETRY_BUFFER", 2048),
		TelemetryBatchSize:      envInt("ESHOP_TELEMETRY_BATCH", 64),
		TelemetryFlushInterval:  envDuration("ESHOP_TELEMETRY_FLUSH_INTERVAL", 2*time.Second),

		IdempotencyWait: envDuration("ESHOP_IDEMPOTENCY_WAIT", 2*time.Second),
		IdempotencyPoll: envDuration("ESHOP_IDEMPOTENCY_POLL", 50*time.Millisecond),

		MaskingRulesPath: os.Getenv("ESHOP_MASKING_RULES"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
