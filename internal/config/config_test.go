package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTIFICATION_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("OUTBOX_ENABLED", "")

	cfg := Load()
	require.Equal(t, time.Minute, cfg.NotificationInterval)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.OutboxEnabled)
	require.Equal(t, []string{"schedule_events", "notification_events"}, cfg.ConsumerTopics)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NOTIFICATION_INTERVAL", "15s")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("OUTBOX_ENABLED", "false")
	t.Setenv("DLQ_MAX_RETRIES", "9")
	t.Setenv("OUTBOX_POLL_INTERVAL", "not-a-duration")

	cfg := Load()
	require.Equal(t, 15*time.Second, cfg.NotificationInterval)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.False(t, cfg.OutboxEnabled)
	require.Equal(t, 9, cfg.DLQMaxRetries)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
}
