package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Session       SessionConfig
	Catalog       CatalogConfig
	Observability ObservabilityConfig
	Analysis      AnalysisConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
}

type AuthConfig struct {
	CredentialFile string
	CookieSecret   string
	CookieName     string
}

type SessionConfig struct {
	IdleTimeout   time.Duration
	JanitorPeriod time.Duration
}

type CatalogConfig struct {
	ImageLookupEnabled bool
	ImageLookupRPS     float64
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type AnalysisConfig struct {
	InactivityDays int
	ToleranceMAD   float64
}

// Load reads configuration from environment variables, after loading a .env
// file when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
		},
		Auth: AuthConfig{
			CredentialFile: getEnv("AUTH_CREDENTIAL_FILE", "users_db.csv"),
			CookieSecret:   getEnv("AUTH_COOKIE_SECRET", ""),
			CookieName:     getEnv("AUTH_COOKIE_NAME", "clubsight_session"),
		},
		Session: SessionConfig{
			IdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
			JanitorPeriod: getEnvAsDuration("SESSION_JANITOR_PERIOD", 15*time.Minute),
		},
		Catalog: CatalogConfig{
			ImageLookupEnabled: getEnvAsBool("CATALOG_IMAGE_LOOKUP_ENABLED", false),
			ImageLookupRPS:     getEnvAsFloat("CATALOG_IMAGE_LOOKUP_RPS", 1),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Analysis: AnalysisConfig{
			InactivityDays: getEnvAsInt("ANALYSIS_INACTIVITY_DAYS", 30),
			ToleranceMAD:   getEnvAsFloat("ANALYSIS_TOLERANCE_MAD", 1),
		},
	}

	if cfg.Auth.CookieSecret == "" {
		return nil, errors.New("AUTH_COOKIE_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
