package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Archive drivers
const (
	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveBolt     = "bolt"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	JWTSecret string

	Window            time.Duration
	SimulationEnabled bool
	SimulationSeed    int64
	TrafficSchedule   string
	RingSchedule      string
	MetricsSchedule   string

	ArchiveDriver string
	DBConn        string
	BoltPath      string
	CardTokenKey  string

	SARURL string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	AlertEmail   string
}

// NewConfig loads configuration from environment variables, optionally
// layered over the file named by SECURELINK_CONFIG
func NewConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("JWT_SECRET", "secret")
	v.SetDefault("WINDOW_MS", 60000)
	v.SetDefault("SIMULATION_ENABLED", true)
	v.SetDefault("SIMULATION_SEED", 0)
	v.SetDefault("TRAFFIC_SCHEDULE", "@every 1s")
	v.SetDefault("RING_SCHEDULE", "@every 30s")
	v.SetDefault("METRICS_SCHEDULE", "@every 10s")
	v.SetDefault("ARCHIVE_DRIVER", ArchiveNone)
	v.SetDefault("DB_CONN", "host=localhost port=5436 user=test password=test dbname=securelink sslmode=disable")
	v.SetDefault("BOLT_PATH", "rings.db")
	v.SetDefault("CARD_TOKEN_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6")
	v.SetDefault("SAR_URL", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SENDER_EMAIL", "alerts@securelink.local")
	v.SetDefault("ALERT_EMAIL", "")

	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if path := os.Getenv("SECURELINK_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:              v.GetString("PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		Window:            time.Duration(v.GetInt64("WINDOW_MS")) * time.Millisecond,
		SimulationEnabled: v.GetBool("SIMULATION_ENABLED"),
		SimulationSeed:    v.GetInt64("SIMULATION_SEED"),
		TrafficSchedule:   v.GetString("TRAFFIC_SCHEDULE"),
		RingSchedule:      v.GetString("RING_SCHEDULE"),
		MetricsSchedule:   v.GetString("METRICS_SCHEDULE"),
		ArchiveDriver:     strings.ToLower(v.GetString("ARCHIVE_DRIVER")),
		DBConn:            v.GetString("DB_CONN"),
		BoltPath:          v.GetString("BOLT_PATH"),
		CardTokenKey:      v.GetString("CARD_TOKEN_KEY"),
		SARURL:            v.GetString("SAR_URL"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetString("SMTP_PORT"),
		SMTPUsername:      v.GetString("SMTP_USERNAME"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
		SenderEmail:       v.GetString("SENDER_EMAIL"),
		AlertEmail:        v.GetString("ALERT_EMAIL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Window <= 0 {
		return fmt.Errorf("WINDOW_MS must be positive")
	}
	if len(c.CardTokenKey) > 64 {
		return fmt.Errorf("CARD_TOKEN_KEY must be at most 64 bytes")
	}
	switch c.ArchiveDriver {
	case ArchiveNone:
	case ArchivePostgres:
		if c.DBConn == "" {
			return fmt.Errorf("DB_CONN is required for the postgres archive")
		}
	case ArchiveBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt archive")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.ArchiveDriver)
	}
	return nil
}

// AlertsEnabled reports whether ring alert e-mails can be sent
func (c *Config) AlertsEnabled() bool {
	return c.SMTPHost != "" && c.AlertEmail != ""
}
