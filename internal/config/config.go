package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	RunMigrations      bool

	Gateway     string
	APIEndpoint string
	WebhookURL  string
	ThanksURL   string
	ProviderID  string

	GatewayTimeout         time.Duration
	CircuitMinRequests     int
	CircuitFailureRate     float64
	CircuitOpenFor         time.Duration
	WebhookMaxBodyBytes    int64
	SubmitRateLimitBackend string
	SubmitRateLimitMax     int
	SubmitRateLimitWindow  time.Duration
	IdempotencyTTL         time.Duration
	LockTTL                time.Duration
	LockRetryBackoff       time.Duration

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	TracingEnabled   bool
	OTLPEndpoint     string
	TracingSampling  float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RunMigrations:      parseBool(k.String("RUN_MIGRATIONS"), true),

		Gateway:     strings.ToLower(valueOrDefault(k.String("KINGCARD_GATEWAY"), "scard")),
		APIEndpoint: strings.TrimSpace(k.String("KINGCARD_API_ENDPOINT")),
		WebhookURL:  strings.TrimSpace(k.String("KINGCARD_WEBHOOK_URL")),
		ThanksURL:   valueOrDefault(k.String("KINGCARD_THANKS_URL"), "/api/v1/payments/kingcard/thanks"),
		ProviderID:  valueOrDefault(k.String("KINGCARD_PROVIDER_ID"), "kingcard"),

		GatewayTimeout:         parseDuration(k.String("GATEWAY_TIMEOUT"), "10s"),
		CircuitMinRequests:     parseInt(k.String("CIRCUIT_GATEWAY_MIN_REQ"), 10),
		CircuitFailureRate:     parseFloat(k.String("CIRCUIT_GATEWAY_FAILURE_RATE"), 0.5),
		CircuitOpenFor:         parseDuration(k.String("CIRCUIT_GATEWAY_OPEN_FOR"), "30s"),
		WebhookMaxBodyBytes:    int64(parseInt(k.String("WEBHOOK_MAX_BODY_BYTES"), 64<<10)),
		SubmitRateLimitBackend: strings.ToLower(valueOrDefault(k.String("SUBMIT_RATE_LIMIT_BACKEND"), "sliding")),
		SubmitRateLimitMax:     parseInt(k.String("SUBMIT_RATE_LIMIT_MAX"), 5),
		SubmitRateLimitWindow:  parseDuration(k.String("SUBMIT_RATE_LIMIT_WINDOW"), "1m"),
		IdempotencyTTL:         parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		LockTTL:                parseDuration(k.String("LOCK_TTL"), "15s"),
		LockRetryBackoff:       parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "kingcard"),
		MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.WebhookURL == "" {
		return nil, errors.New("KINGCARD_WEBHOOK_URL is required")
	}
	switch cfg.SubmitRateLimitBackend {
	case "sliding", "ulule", "off":
	default:
		return nil, fmt.Errorf("SUBMIT_RATE_LIMIT_BACKEND %q is not supported", cfg.SubmitRateLimitBackend)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs against live gateway credentials.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
