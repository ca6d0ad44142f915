// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation error returned from Load. Callers treat it as fatal.
var ErrInvalid = errors.New("config")

// minKeyLength is the minimum length of the MFA encryption and salt keys in production.
const minKeyLength = 32

// Development fallbacks used when APP_ENV is not production and the MFA keys are unset.
const (
	devEncryptionKey = "dev-only-mfa-encryption-key-change-me"
	devSaltKey       = "dev-only-mfa-salt-key-change-me-please"
)

// Config holds application configuration loaded from the environment.
// It is loaded once at startup and must not be mutated afterwards.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. When empty the server runs on in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTPrivateKey is the PEM-encoded private key or path; only cmd/seed signs tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path used to validate bearer tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// MFAIssuer is the issuer shown by authenticator apps.
	MFAIssuer string `mapstructure:"MFA_ISSUER"`
	// MFAEncryptionKey is the deployment-wide master key for TOTP secrets at rest.
	MFAEncryptionKey string `mapstructure:"MFA_ENCRYPTION_KEY"`
	// MFASaltKey seeds the per-user scrypt salt. Kept separate from any signing key.
	MFASaltKey string `mapstructure:"MFA_SALT_KEY"`
	// BackupCodeCount is the number of backup codes generated per enrollment.
	BackupCodeCount int `mapstructure:"MFA_BACKUP_CODE_COUNT"`
	// RateLimitMax is the number of verification attempts allowed per window and action.
	RateLimitMax int `mapstructure:"MFA_RATE_LIMIT_MAX"`
	// RateLimitWindow is the fixed window length (e.g. "5m").
	RateLimitWindow string `mapstructure:"MFA_RATE_LIMIT_WINDOW"`
	// TempSessionTTL is the lifetime of an MFA session created mid-login (e.g. "10m").
	TempSessionTTL string `mapstructure:"MFA_TEMP_SESSION_TTL"`
	// SessionTTL is the lifetime of a verified MFA session (e.g. "60m").
	SessionTTL string `mapstructure:"MFA_SESSION_TTL"`
	// DefaultTrustTTLDays is the trusted-device lifetime in days (1–365).
	DefaultTrustTTLDays int `mapstructure:"DEFAULT_TRUST_TTL_DAYS"`

	// RateLimitBackend selects the attempt counter: memory, redis or postgres.
	// Empty picks postgres when DatabaseURL is set, memory otherwise.
	RateLimitBackend string `mapstructure:"RATE_LIMIT_BACKEND"`
	// RedisURL is the redis:// URL for the redis rate limit backend.
	RedisURL string `mapstructure:"REDIS_URL"`

	// Security events (optional). When Kafka brokers are set, events are also published to Kafka.
	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsTopic is the Kafka topic for security events.
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the security event worker (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// ServiceVersion is reported as service.version on traces, metrics and logs.
	ServiceVersion string `mapstructure:"SERVICE_VERSION"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error wrapping ErrInvalid
// if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "coaching-auth")
	v.SetDefault("JWT_AUDIENCE", "coaching-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("MFA_ISSUER", "Coaching Platform")
	v.SetDefault("MFA_ENCRYPTION_KEY", "")
	v.SetDefault("MFA_SALT_KEY", "")
	v.SetDefault("MFA_BACKUP_CODE_COUNT", 8)
	v.SetDefault("MFA_RATE_LIMIT_MAX", 5)
	v.SetDefault("MFA_RATE_LIMIT_WINDOW", "5m")
	v.SetDefault("MFA_TEMP_SESSION_TTL", "10m")
	v.SetDefault("MFA_SESSION_TTL", "60m")
	v.SetDefault("DEFAULT_TRUST_TTL_DAYS", 30)
	v.SetDefault("RATE_LIMIT_BACKEND", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_KAFKA_TOPIC", "mfa-security-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "mfa-security-events-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "coaching-mfa")
	v.SetDefault("SERVICE_VERSION", "dev")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GRPCAddr == "" {
		return invalid("GRPC_ADDR must be set")
	}

	if c.IsProduction() {
		if len(c.MFAEncryptionKey) < minKeyLength {
			return invalid("MFA_ENCRYPTION_KEY must be at least %d characters when APP_ENV=production", minKeyLength)
		}
		if len(c.MFASaltKey) < minKeyLength {
			return invalid("MFA_SALT_KEY must be at least %d characters when APP_ENV=production", minKeyLength)
		}
		if c.MFAEncryptionKey == c.MFASaltKey {
			return invalid("MFA_SALT_KEY must differ from MFA_ENCRYPTION_KEY")
		}
	} else {
		if c.MFAEncryptionKey == "" {
			c.MFAEncryptionKey = devEncryptionKey
		}
		if c.MFASaltKey == "" {
			c.MFASaltKey = devSaltKey
		}
	}

	if c.BackupCodeCount == 0 {
		c.BackupCodeCount = 8
	}
	if c.BackupCodeCount < 1 || c.BackupCodeCount > 32 {
		return invalid("MFA_BACKUP_CODE_COUNT must be between 1 and 32")
	}
	if c.RateLimitMax < 1 {
		return invalid("MFA_RATE_LIMIT_MAX must be positive")
	}
	if c.DefaultTrustTTLDays < 1 || c.DefaultTrustTTLDays > 365 {
		return invalid("DEFAULT_TRUST_TTL_DAYS must be between 1 and 365")
	}

	switch c.RateLimitBackend {
	case "":
		if c.DatabaseURL != "" {
			c.RateLimitBackend = "postgres"
		} else {
			c.RateLimitBackend = "memory"
		}
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return invalid("RATE_LIMIT_BACKEND=postgres requires DATABASE_URL")
		}
	case "redis":
		if c.RedisURL == "" {
			return invalid("RATE_LIMIT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return invalid("RATE_LIMIT_BACKEND must be memory, redis or postgres, got %q", c.RateLimitBackend)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RateWindow parses RateLimitWindow. Returns 5m if unset or invalid.
func (c *Config) RateWindow() time.Duration {
	return parseDuration(c.RateLimitWindow, 5*time.Minute)
}

// TempSessionLifetime parses TempSessionTTL. Returns 10m if unset or invalid.
func (c *Config) TempSessionLifetime() time.Duration {
	return parseDuration(c.TempSessionTTL, 10*time.Minute)
}

// SessionLifetime parses SessionTTL. Returns 60m if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	return parseDuration(c.SessionTTL, 60*time.Minute)
}

// TrustTTL returns DefaultTrustTTLDays as a duration.
func (c *Config) TrustTTL() time.Duration {
	return time.Duration(c.DefaultTrustTTLDays) * 24 * time.Hour
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
