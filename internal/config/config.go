// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Cache backend identifiers.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the full service configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port string

	// Environment is the deployment environment name.
	Environment string

	// PlacesPath locates the location source file.
	PlacesPath string

	// CacheBackend selects the cache store: sqlite, postgres or memory.
	CacheBackend string

	// CachePath is the SQLite database file (sqlite backend only).
	CachePath string

	// CacheTTL is the freshness window for cached payloads.
	CacheTTL time.Duration

	// CacheRetention is the age past which entries are pruned.
	CacheRetention time.Duration

	// DefaultTimezone applies when a request omits tz.
	DefaultTimezone string

	// DefaultCountry applies when a request omits country.
	DefaultCountry string

	// DefaultModel applies when a request omits model.
	DefaultModel string

	// ForecastURL overrides the forecast endpoint when set.
	ForecastURL string

	// GeocodeURL overrides the geocoding endpoint when set.
	GeocodeURL string

	// FetchTimeout bounds each upstream call.
	FetchTimeout time.Duration

	// OTLPEndpoint is the OpenTelemetry collector address.
	OTLPEndpoint string

	// TelemetryEnabled turns OTLP export on.
	TelemetryEnabled bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	// Ignore a missing .env; it is a local development convenience.
	_ = godotenv.Load()

	return Config{
		Port:             getEnvOrDefault("APP_PORT", "8080"),
		Environment:      getEnvOrDefault("APP_ENV", "development"),
		PlacesPath:       getEnvOrDefault("PLACES_FILE", "places.txt"),
		CacheBackend:     getEnvOrDefault("CACHE_BACKEND", BackendSQLite),
		CachePath:        getEnvOrDefault("CACHE_PATH", "rainmatrix.db"),
		CacheTTL:         getDurationOrDefault("CACHE_TTL", time.Hour),
		CacheRetention:   getDurationOrDefault("CACHE_RETENTION", 48*time.Hour),
		DefaultTimezone:  getEnvOrDefault("DEFAULT_TZ", "Asia/Manila"),
		DefaultCountry:   getEnvOrDefault("DEFAULT_COUNTRY", "PH"),
		DefaultModel:     getEnvOrDefault("DEFAULT_MODEL", "ecmwf_ifs"),
		ForecastURL:      os.Getenv("FORECAST_URL"),
		GeocodeURL:       os.Getenv("GEOCODE_URL"),
		FetchTimeout:     getDurationOrDefault("FETCH_TIMEOUT", 20*time.Second),
		OTLPEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled: os.Getenv("OTEL_ENABLED") == "true",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
