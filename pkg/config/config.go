package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Gateway  GatewayConfig
	Calendar CalendarConfig
	Sessions SessionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Audit    AuditConfig
	Events   EventsConfig
	Tracing  TracingConfig
}

// GatewayConfig points at the marketplace REST backend that owns appointments.
type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
	// Token is a static bearer credential used by the CLI.
	Token string
}

// CalendarConfig shapes the grid and the responsive week-view threshold.
type CalendarConfig struct {
	StartHour        int
	EndHour          int
	WeekViewMinWidth int
	Timezone         string
	DefaultView      string
}

// Location resolves the configured zone, falling back to Local.
func (c CalendarConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SessionConfig governs per-user scheduling sessions held by the API.
type SessionConfig struct {
	TTL             time.Duration
	ViewStateCache  bool
	ViewStateTTL    time.Duration
	CleanupInterval time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuditConfig toggles the audit trail of committed appointment changes.
type AuditConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// EventsConfig configures status-change event publishing.
type EventsConfig struct {
	Brokers     []string
	StatusTopic string
}

// Enabled reports whether any broker is configured.
func (c EventsConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	SampleRatio  float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Gateway = GatewayConfig{
		BaseURL: strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("GATEWAY_TIMEOUT"), 10*time.Second),
		Token:   v.GetString("GATEWAY_TOKEN"),
	}

	cfg.Calendar = CalendarConfig{
		StartHour:        v.GetInt("CALENDAR_START_HOUR"),
		EndHour:          v.GetInt("CALENDAR_END_HOUR"),
		WeekViewMinWidth: v.GetInt("CALENDAR_WEEK_MIN_WIDTH"),
		Timezone:         v.GetString("CALENDAR_TIMEZONE"),
		DefaultView:      v.GetString("CALENDAR_DEFAULT_VIEW"),
	}

	cfg.Sessions = SessionConfig{
		TTL:             parseDuration(v.GetString("SESSION_TTL"), 30*time.Minute),
		ViewStateCache:  v.GetBool("ENABLE_VIEW_STATE_CACHE"),
		ViewStateTTL:    parseDuration(v.GetString("VIEW_STATE_TTL"), 7*24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("SESSION_CLEANUP_INTERVAL"), 5*time.Minute),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET"), Issuer: v.GetString("JWT_ISSUER")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Audit = AuditConfig{
		Enabled:    v.GetBool("ENABLE_AUDIT"),
		Workers:    v.GetInt("AUDIT_WORKERS"),
		Retries:    v.GetInt("AUDIT_RETRIES"),
		RetryDelay: parseDuration(v.GetString("AUDIT_RETRY_DELAY"), time.Second),
	}

	cfg.Events = EventsConfig{
		Brokers:     splitAndTrim(v.GetString("KAFKA_BROKERS")),
		StatusTopic: v.GetString("KAFKA_STATUS_TOPIC"),
	}

	cfg.Tracing = TracingConfig{
		Enabled:      v.GetBool("OTEL_ENABLED"),
		ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SampleRatio:  v.GetFloat64("OTEL_SAMPLING_RATIO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the scheduling core cannot work with.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return errors.New("GATEWAY_BASE_URL is required")
	}
	if c.Calendar.StartHour < 0 || c.Calendar.EndHour > 23 || c.Calendar.StartHour > c.Calendar.EndHour {
		return fmt.Errorf("invalid calendar hours %d..%d", c.Calendar.StartHour, c.Calendar.EndHour)
	}
	switch c.Calendar.DefaultView {
	case "day", "week":
	default:
		return fmt.Errorf("invalid CALENDAR_DEFAULT_VIEW %q", c.Calendar.DefaultView)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0,1]")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("GATEWAY_BASE_URL", "http://localhost:8000/api")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("GATEWAY_TOKEN", "")

	v.SetDefault("CALENDAR_START_HOUR", 8)
	v.SetDefault("CALENDAR_END_HOUR", 19)
	v.SetDefault("CALENDAR_WEEK_MIN_WIDTH", 768)
	v.SetDefault("CALENDAR_TIMEZONE", "")
	v.SetDefault("CALENDAR_DEFAULT_VIEW", "week")

	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("SESSION_CLEANUP_INTERVAL", "5m")
	v.SetDefault("ENABLE_VIEW_STATE_CACHE", false)
	v.SetDefault("VIEW_STATE_TTL", "168h")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "psy_schedule")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "1s")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_STATUS_TOPIC", "appointments.status_changed")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "psy-schedule-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
