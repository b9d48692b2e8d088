package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	cfg := FromEnv(logger)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.SnapshotTTL)
	assert.Equal(t, "feedback.inserted", cfg.KafkaTopic)
	assert.Equal(t, "avalia-server", cfg.KafkaGroup)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AVALIA_ADDR", ":9090")
	t.Setenv("SNAPSHOT_TTL", "30s")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg := FromEnv(slog.New(slog.DiscardHandler))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.SnapshotTTL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func TestFromEnvWarnsOnBadSnapshotTTL(t *testing.T) {
	t.Setenv("SNAPSHOT_TTL", "5 minutes")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg := FromEnv(logger)

	assert.Equal(t, 5*time.Minute, cfg.SnapshotTTL)
	assert.Contains(t, buf.String(), "SNAPSHOT_TTL")
	assert.Contains(t, buf.String(), "5 minutes")
}
