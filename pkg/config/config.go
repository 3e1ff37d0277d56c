package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names an optional YAML file applied before environment
// overrides.
const EnvConfigFile = "WARDEN_CONFIG_FILE"

// EnvDotenvFile names a dotenv file loaded before anything else. Without it
// a .env in the working directory is loaded when present. Variables already
// set in the environment win over the file.
const EnvDotenvFile = "WARDEN_ENV_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Features      FeatureConfig       `yaml:"features"`
	Invites       InviteConfig        `yaml:"invites"`
	Mail          MailConfig          `yaml:"mail"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	ReplicaURLs     []string      `yaml:"replica_urls"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// RedisConfig holds the organization ability cache settings. An empty URL
// disables the cache.
type RedisConfig struct {
	URL        string        `yaml:"url"`
	PoolSize   int           `yaml:"pool_size"`
	AbilityTTL time.Duration `yaml:"ability_ttl"`
}

// FeatureConfig holds deployment flags
type FeatureConfig struct {
	SelfHosted              bool `yaml:"self_hosted"`
	TrustedDeviceEncryption bool `yaml:"trusted_device_encryption"`
}

// InviteConfig holds invitation token settings
type InviteConfig struct {
	TokenSecret   string        `yaml:"token_secret"`
	TokenLifetime time.Duration `yaml:"token_lifetime"`
}

// MailConfig holds outgoing mail settings. An empty SMTP host logs mail
// instead of sending it.
type MailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	From         string `yaml:"from"`
	WebVaultURL  string `yaml:"web_vault_url"`
}

// RateLimitConfig holds per-actor request limits
type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled"`
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
	// Distributed shares limits across instances through Redis. Ignored
	// without a Redis URL.
	Distributed bool `yaml:"distributed"`
}

// JobsConfig holds scheduled job settings
type JobsConfig struct {
	// AccessTokenPurgeSchedule is a standard five-field cron expression.
	// Empty disables the purge.
	AccessTokenPurgeSchedule string `yaml:"access_token_purge_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			AbilityTTL: time.Hour,
		},
		Invites: InviteConfig{
			TokenLifetime: 5 * 24 * time.Hour,
		},
		Mail: MailConfig{
			SMTPPort:    587,
			From:        "no-reply@warden.local",
			WebVaultURL: "http://localhost:8080",
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			PerSecond: 20,
			Burst:     40,
		},
		Jobs: JobsConfig{
			AccessTokenPurgeSchedule: "0 * * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "text",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "warden",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads defaults, the optional WARDEN_CONFIG_FILE overlay and
// then WARDEN_* environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	if err := loadDotenv(os.Getenv(EnvDotenvFile)); err != nil {
		return nil, err
	}

	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadDotenv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadFile overlays the YAML document at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("WARDEN_HOST", s.Host)
	s.Port = getEnv("WARDEN_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("WARDEN_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WARDEN_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("WARDEN_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	d := &c.Database
	d.URL = getEnv("WARDEN_DATABASE_URL", d.URL)
	d.ReplicaURLs = getEnvList("WARDEN_DATABASE_REPLICA_URLS", d.ReplicaURLs)
	d.MaxOpenConns = getEnvInt("WARDEN_DATABASE_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("WARDEN_DATABASE_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("WARDEN_DATABASE_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnectTimeout = getEnvDuration("WARDEN_DATABASE_CONNECT_TIMEOUT", d.ConnectTimeout)

	r := &c.Redis
	r.URL = getEnv("WARDEN_REDIS_URL", r.URL)
	r.PoolSize = getEnvInt("WARDEN_REDIS_POOL_SIZE", r.PoolSize)
	r.AbilityTTL = getEnvDuration("WARDEN_REDIS_ABILITY_TTL", r.AbilityTTL)

	f := &c.Features
	f.SelfHosted = getEnvBool("WARDEN_SELF_HOSTED", f.SelfHosted)
	f.TrustedDeviceEncryption = getEnvBool("WARDEN_TRUSTED_DEVICE_ENCRYPTION", f.TrustedDeviceEncryption)

	i := &c.Invites
	i.TokenSecret = getEnv("WARDEN_INVITE_TOKEN_SECRET", i.TokenSecret)
	i.TokenLifetime = getEnvDuration("WARDEN_INVITE_TOKEN_LIFETIME", i.TokenLifetime)

	m := &c.Mail
	m.SMTPHost = getEnv("WARDEN_SMTP_HOST", m.SMTPHost)
	m.SMTPPort = getEnvInt("WARDEN_SMTP_PORT", m.SMTPPort)
	m.SMTPUsername = getEnv("WARDEN_SMTP_USERNAME", m.SMTPUsername)
	m.SMTPPassword = getEnv("WARDEN_SMTP_PASSWORD", m.SMTPPassword)
	m.From = getEnv("WARDEN_MAIL_FROM", m.From)
	m.WebVaultURL = getEnv("WARDEN_WEB_VAULT_URL", m.WebVaultURL)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("WARDEN_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.PerSecond = getEnvFloat("WARDEN_RATE_LIMIT_PER_SECOND", rl.PerSecond)
	rl.Burst = getEnvInt("WARDEN_RATE_LIMIT_BURST", rl.Burst)
	rl.Distributed = getEnvBool("WARDEN_RATE_LIMIT_DISTRIBUTED", rl.Distributed)

	c.Jobs.AccessTokenPurgeSchedule = getEnv("WARDEN_ACCESS_TOKEN_PURGE_SCHEDULE", c.Jobs.AccessTokenPurgeSchedule)

	o := &c.Observability
	o.LogLevel = getEnv("WARDEN_LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv("WARDEN_LOG_FORMAT", o.LogFormat)
	o.MetricsEnabled = getEnvBool("WARDEN_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("WARDEN_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("WARDEN_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("WARDEN_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("WARDEN_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("WARDEN_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("WARDEN_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// minInviteSecretLength is the HS256 key size floor.
const minInviteSecretLength = 32

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Database.URL == "" {
		return errors.New("database URL is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return errors.New("database max open connections must be at least 1")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return errors.New("database max idle connections cannot exceed max open connections")
	}

	if len(c.Invites.TokenSecret) < minInviteSecretLength {
		return fmt.Errorf("invite token secret must be at least %d bytes", minInviteSecretLength)
	}
	if c.Invites.TokenLifetime <= 0 {
		return errors.New("invite token lifetime must be positive")
	}

	if c.Mail.SMTPHost != "" && (c.Mail.SMTPPort < 1 || c.Mail.From == "") {
		return errors.New("mail requires a port and from address when an SMTP host is set")
	}

	if c.RateLimit.Enabled && (c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst < 1) {
		return errors.New("rate limit requires a positive rate and burst when enabled")
	}

	if schedule := c.Jobs.AccessTokenPurgeSchedule; schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("invalid access token purge schedule %q: %w", schedule, err)
		}
	}

	switch strings.ToLower(c.Observability.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default.
// Blank entries are dropped.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
