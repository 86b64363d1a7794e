package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for growth-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, tokens) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional reminder dedup cache)
	Redis RedisConfig `yaml:"redis"`

	// Reminder scheduler configuration
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Outbound notification channels
	SMTP   SMTPConfig   `yaml:"smtp"`
	Twilio TwilioConfig `yaml:"twilio"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// SigningSecret is the HMAC secret shared with the token issuer.
	SigningSecret string `yaml:"-" env:"AUTH_SIGNING_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"growth"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"growth_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds Redis connection configuration.
// An empty host disables the dedup cache entirely.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// SchedulerConfig holds reminder scheduler settings.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`

	// IntervalMinutes is how often the reminder sweep runs. The sweep's
	// dispatch window is this wide, so bookings are never skipped between
	// runs; shrinking the window below the interval would drop bookings.
	IntervalMinutes int `yaml:"interval_minutes" env:"SCHEDULER_INTERVAL_MINUTES" env-default:"5"`
}

// Interval returns the sweep interval as a duration, defaulting to 5 minutes.
func (c *SchedulerConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// SMTPConfig holds outbound email configuration.
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:""`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME" env-default:""`
	Password string `yaml:"-" env:"SMTP_PASSWORD"` // Secret - not in YAML
	From     string `yaml:"from" env:"SMTP_FROM" env-default:""`
}

// TwilioConfig holds Twilio SMS credentials.
type TwilioConfig struct {
	AccountSID string `yaml:"-" env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `yaml:"-" env:"TWILIO_AUTH_TOKEN"`
	FromNumber string `yaml:"from_number" env:"TWILIO_FROM_NUMBER" env-default:""`
	BaseURL    string `yaml:"base_url" env:"TWILIO_BASE_URL" env-default:"https://api.twilio.com/2010-04-01"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.EnableVerification && c.Auth.SigningSecret == "" {
		return fmt.Errorf("AUTH_SIGNING_SECRET is required when auth verification is enabled")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string. The host is
// rewritten to host.docker.internal when running containerized against a
// database on the host machine.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the Redis host:port with Docker host resolution applied.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}
