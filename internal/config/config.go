package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment string
	HTTPPort    string
	DataDir     string
	LogPath     string

	JWTSecret       string
	AdminSessionTTL time.Duration

	DockerHost string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	AlertURL string

	FeedRefreshInterval time.Duration
	EventAggInterval    time.Duration
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:         getEnv("SENTRYWALL_ENV", "development"),
		HTTPPort:            getEnv("SENTRYWALL_HTTP_PORT", "8080"),
		DataDir:             getEnv("SENTRYWALL_DATA_DIR", "data"),
		LogPath:             getEnv("SENTRYWALL_LOG_PATH", filepath.Join("data", "sentrywall.log")),
		JWTSecret:           getEnv("SENTRYWALL_JWT_SECRET", "dev-only-insecure-secret"),
		AdminSessionTTL:     getEnvDuration("SENTRYWALL_SESSION_TTL", 24*time.Hour),
		DockerHost:          getEnv("DOCKER_HOST", "unix:///var/run/docker.sock"),
		InfluxURL:           getEnv("SENTRYWALL_INFLUX_URL", ""),
		InfluxToken:         getEnv("SENTRYWALL_INFLUX_TOKEN", ""),
		InfluxOrg:           getEnv("SENTRYWALL_INFLUX_ORG", ""),
		InfluxBucket:        getEnv("SENTRYWALL_INFLUX_BUCKET", "sentrywall-events"),
		AlertURL:            getEnv("SENTRYWALL_ALERT_URL", ""),
		FeedRefreshInterval: getEnvDuration("SENTRYWALL_FEED_REFRESH_INTERVAL", 15*time.Minute),
		EventAggInterval:    getEnvDuration("SENTRYWALL_EVENT_AGG_INTERVAL", 15*time.Minute),
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure log directory: %w", err)
	}

	return cfg, nil
}

// EventSinkConfigured reports whether the InfluxDB event sink backend has
// enough configuration to dial out; absent it the event worker has no
// backend and only logs each event.
func (c Config) EventSinkConfigured() bool {
	return c.InfluxURL != "" && c.InfluxToken != ""
}

// AlertConfigured reports whether a shoutrrr notification URL was supplied.
func (c Config) AlertConfigured() bool {
	return c.AlertURL != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
