package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir string   `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret     string   `mapstructure:"JWT_SECRET"`
	TokenTTLHours int      `mapstructure:"TOKEN_TTL_HOURS"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS      float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int     `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit         string  `mapstructure:"BODY_LIMIT"`
	RequestTimeoutSec int     `mapstructure:"REQUEST_TIMEOUT_SEC"`
	MetricsEnabled    bool    `mapstructure:"METRICS_ENABLED"`

	// Email alert boundary. When SMTPHost or AlertTemplateID is empty the
	// alerter treats dispatch as "skipped", not as an error.
	SMTPHost        string `mapstructure:"SMTP_HOST"`
	SMTPPort        int    `mapstructure:"SMTP_PORT"`
	SMTPUsername    string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword    string `mapstructure:"SMTP_PASSWORD"`
	AlertFrom       string `mapstructure:"ALERT_FROM"`
	AlertTemplateID string `mapstructure:"ALERT_TEMPLATE_ID"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("TOKEN_TTL_HOURS", 24)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT_SEC", 30)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("ALERT_TEMPLATE_ID", "missed-medication-alert")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL_HOURS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("REQUEST_TIMEOUT_SEC")
	v.BindEnv("METRICS_ENABLED")
	v.BindEnv("SMTP_HOST")
	v.BindEnv("SMTP_PORT")
	v.BindEnv("SMTP_USERNAME")
	v.BindEnv("SMTP_PASSWORD")
	v.BindEnv("ALERT_FROM")
	v.BindEnv("ALERT_TEMPLATE_ID")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// EmailConfigured reports whether the alert email boundary has enough
// configuration to attempt dispatch. An unconfigured boundary is a recognized
// state: sweeps still run and report missed doses, alerts are skipped.
func (c *Config) EmailConfigured() bool {
	return c.SMTPHost != "" && c.AlertFrom != "" && c.AlertTemplateID != ""
}

// Validate checks that the configuration is safe to run. Identity and store
// configuration are fatal when absent; email configuration is not.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is %q", c.Env)
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive, got %d", c.TokenTTLHours)
	}
	if c.SMTPHost != "" && c.AlertFrom == "" {
		return fmt.Errorf("ALERT_FROM is required when SMTP_HOST is set")
	}
	return nil
}
