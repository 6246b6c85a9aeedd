package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8, cfg.Calendar.StartHour)
	assert.Equal(t, 19, cfg.Calendar.EndHour)
	assert.Equal(t, 768, cfg.Calendar.WeekViewMinWidth)
	assert.Equal(t, "week", cfg.Calendar.DefaultView)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.False(t, cfg.Events.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "https://backend.example.com/api/")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("CALENDAR_START_HOUR", "7")
	t.Setenv("CALENDAR_END_HOUR", "21")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("SESSION_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example.com/api", cfg.Gateway.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 7, cfg.Calendar.StartHour)
	assert.Equal(t, 21, cfg.Calendar.EndHour)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
}

func TestLoadRejectsInvertedHours(t *testing.T) {
	t.Setenv("CALENDAR_START_HOUR", "20")
	t.Setenv("CALENDAR_END_HOUR", "8")

	_, err := Load()
	require.Error(t, err)
}

func TestCalendarLocationFallback(t *testing.T) {
	assert.Equal(t, time.Local, CalendarConfig{Timezone: "Nowhere/Atlantis"}.Location())
	assert.Equal(t, time.UTC, CalendarConfig{Timezone: "UTC"}.Location())
}
