// Package config loads the map gateway configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the complete gateway configuration.
type Config struct {
	Server    ServerConfig
	Backends  BackendConfig
	Auth      AuthConfig
	Map       MapConfig
	Telemetry TelemetryConfig
	PubSub    PubSubConfig
	Logging   LoggingConfig

	// DatabaseEnabled switches session snapshots and feature flags to PostgreSQL.
	DatabaseEnabled bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        string
	Environment string

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// BackendConfig holds the base URLs of the MetaMapa services.
// Only the core gateway and GraphQL endpoint are consumed by the map flow;
// the remaining services are carried for the admin tooling that shares this config.
type BackendConfig struct {
	CoreURL       string
	GraphQLURL    string
	StatisticsURL string
	SourceURLs    []string
	Timeout       time.Duration
}

// AuthConfig holds bearer token validation settings.
type AuthConfig struct {
	SigningKey string
	Issuer     string
	Audience   string

	// DevMode exposes POST /v1/auth/dev, which mints tokens without the core backend.
	DevMode bool
}

// MapConfig holds map session behaviour.
type MapConfig struct {
	FetchTimeout   time.Duration
	SessionIdleTTL time.Duration
	SweepSchedule  string
	IconsFile      string

	// SavedViewRetention is how long a saved view outlives its last change.
	SavedViewRetention time.Duration
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	// SampleRatio is the fraction of root traces recorded.
	SampleRatio float64
}

// PubSubConfig holds incident change notification settings.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Enabled reports whether incident change notifications are configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string
}

// Load reads the configuration. A .env file in the working directory is
// loaded first when present; real environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("APP_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
			RequireTLS:  getEnvBool("REQUIRE_TLS", false),
		},
		Backends: BackendConfig{
			CoreURL:       strings.TrimSuffix(getEnv("CORE_API_URL", "http://localhost:8081"), "/"),
			GraphQLURL:    getEnv("GRAPHQL_URL", "http://localhost:8081/graphql"),
			StatisticsURL: getEnv("STATS_API_URL", ""),
			SourceURLs:    getEnvList("SOURCE_API_URLS"),
			Timeout:       getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", ""),
			Issuer:     getEnv("JWT_ISSUER", "metamapa"),
			Audience:   getEnv("JWT_AUDIENCE", "metamapa-web"),
			DevMode:    getEnvBool("AUTH_DEV_MODE", false),
		},
		Map: MapConfig{
			FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
			SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepSchedule:  getEnv("SESSION_SWEEP_SCHEDULE", "@every 5m"),
			IconsFile:      getEnv("CATEGORY_ICONS_FILE", ""),

			SavedViewRetention: getEnvDuration("SAVED_VIEW_RETENTION", 7*24*time.Hour),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		PubSub: PubSubConfig{
			ProjectID:    getEnv("PUBSUB_PROJECT_ID", ""),
			Subscription: getEnv("PUBSUB_HECHOS_SUBSCRIPTION", ""),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		DatabaseEnabled: getEnvBool("DB_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	for name, raw := range map[string]string{
		"CORE_API_URL": c.Backends.CoreURL,
		"GRAPHQL_URL":  c.Backends.GraphQLURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be between 0 and 1")
	}

	if c.Map.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Map.SessionIdleTTL < time.Minute {
		return fmt.Errorf("session idle ttl must be at least 1 minute")
	}

	if c.Server.Environment == "production" && c.Auth.SigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required in production")
	}
	if c.Server.Environment == "production" && c.Auth.DevMode {
		return fmt.Errorf("AUTH_DEV_MODE must not be enabled in production")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
