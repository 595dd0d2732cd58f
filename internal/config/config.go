// Package config defines the process configuration for the wellness alert
// and gamification services. Configuration is loaded once at startup and is
// immutable afterwards.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"wellness/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Push provider names accepted by PUSH_PROVIDER.
const (
	PushProviderExpo = "expo"
	PushProviderSQS  = "sqs"
	PushProviderLog  = "log"
)

// Config is the top-level configuration. Components receive only the
// sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"wellness-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	AWS           AWSConfig
	Alerts        AlertsConfig
	Push          PushConfig
	Gamification  GamificationConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"20s"`
}

// DatabaseConfig holds the Postgres connection string and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig is optional. When URL is empty the dispatcher run lock falls
// back to Postgres and the XP rate limiter keeps its windows in memory.
type RedisConfig struct {
	URL SecretString `envconfig:"REDIS_URL" validate:"omitempty,url"`
}

// Enabled reports whether a Redis URL was configured.
func (c RedisConfig) Enabled() bool {
	return !c.URL.IsZero()
}

// AWSConfig holds AWS region and resource identifiers.
type AWSConfig struct {
	Region       string `envconfig:"AWS_REGION" default:"us-east-1"`
	PushQueueURL string `envconfig:"PUSH_QUEUE_URL" validate:"omitempty,url"`

	// LocalStack support. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// AlertsConfig tunes the scheduled alert dispatcher.
type AlertsConfig struct {
	BatchSize  int           `envconfig:"ALERT_BATCH_SIZE" default:"50" validate:"min=1,max=500"`
	ClaimTTL   time.Duration `envconfig:"ALERT_CLAIM_TTL" default:"10m"`
	RunLockTTL time.Duration `envconfig:"ALERT_RUN_LOCK_TTL" default:"2m"`
	// Timezone in which quiet-hour HH:MM bounds are interpreted.
	Timezone string `envconfig:"ALERT_TIMEZONE" default:"UTC" validate:"timezone"`
}

// Location resolves Timezone. Callers can rely on validation having accepted it.
func (c AlertsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PushConfig selects and configures the push delivery adapter.
type PushConfig struct {
	Provider        string        `envconfig:"PUSH_PROVIDER" default:"log" validate:"oneof=expo sqs log"`
	ExpoURL         string        `envconfig:"EXPO_PUSH_URL" default:"https://exp.host/--/api/v2/push/send" validate:"url"`
	ExpoAccessToken SecretString  `envconfig:"EXPO_ACCESS_TOKEN"`
	Timeout         time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
}

// GamificationConfig tunes the XP endpoint.
type GamificationConfig struct {
	XPRateLimitPerMinute int `envconfig:"XP_RATE_LIMIT_PER_MINUTE" default:"60" validate:"min=1"`
}

// SecurityConfig holds shared secrets and CORS settings.
type SecurityConfig struct {
	CronSecret         SecretString `envconfig:"CRON_SECRET" validate:"required,min=16"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Wellness"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
