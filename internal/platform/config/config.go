package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. Empty collaborator settings
// disable the corresponding adapter, so dev mode runs with no external
// services at all.
type Config struct {
	Addr string

	// DatabaseURL points at the durable Postgres store; empty selects the
	// in-memory store.
	DatabaseURL string

	// RedisURL enables the statistics snapshot cache.
	RedisURL    string
	SnapshotTTL time.Duration

	// Kafka settings for the record-inserted event stream. No brokers means
	// the live feed is disabled and this instance only sees its own inserts.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string
}

// FromEnv builds a Config from environment variables so main stays lean.
// Unparseable optional values fall back to their defaults with a warning.
func FromEnv(logger *slog.Logger) Config {
	cfg := Config{
		Addr:        getenv("AVALIA_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		SnapshotTTL: 5 * time.Minute,
		KafkaTopic:  getenv("KAFKA_TOPIC", "feedback.inserted"),
		KafkaGroup:  getenv("KAFKA_GROUP", "avalia-server"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if ttl := os.Getenv("SNAPSHOT_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.SnapshotTTL = d
		} else {
			logger.Warn("ignoring unparseable SNAPSHOT_TTL, using default",
				"value", ttl, "default", cfg.SnapshotTTL, "error", err)
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
