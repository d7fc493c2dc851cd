// Package main provides the entrypoint for the rain matrix API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rainmatrix/rainmatrix/internal/api"
	"github.com/rainmatrix/rainmatrix/internal/api/middleware"
	"github.com/rainmatrix/rainmatrix/internal/cache"
	"github.com/rainmatrix/rainmatrix/internal/config"
	"github.com/rainmatrix/rainmatrix/internal/database"
	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/forecast/openmeteo"
	"github.com/rainmatrix/rainmatrix/internal/grid"
	"github.com/rainmatrix/rainmatrix/internal/provider/resilience"
	"github.com/rainmatrix/rainmatrix/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "rainmatrix-api"

	cfg := config.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting rain matrix API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := middleware.NewProviderMetrics("grid")
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// Initialize the response cache backend
	store, err := newCacheStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("failed to initialize cache")
	}
	defer store.Close()
	log.Info().Str("backend", cfg.CacheBackend).Msg("response cache initialized")

	// Upstream client: single-shot with a circuit breaker
	httpClient := resilience.NewClient(resilience.ClientConfig{
		Name:    openmeteo.ProviderName,
		Timeout: cfg.FetchTimeout,
	})

	provider := openmeteo.NewClient(openmeteo.ClientConfig{
		ForecastURL: cfg.ForecastURL,
		GeocodeURL:  cfg.GeocodeURL,
		HTTPClient:  httpClient,
		Logger:      log,
	})

	forecastService := forecast.NewService(forecast.ServiceConfig{
		Provider:     provider,
		Logger:       log,
		FetchTimeout: cfg.FetchTimeout,
	})
	log.Info().Msg("forecast service initialized")

	gridService := grid.NewService(grid.ServiceConfig{
		PlacesPath: cfg.PlacesPath,
		Cache:      store,
		Forecast:   forecastService,
		Logger:     log,
		Defaults: grid.Defaults{
			Timezone: cfg.DefaultTimezone,
			Country:  cfg.DefaultCountry,
			Model:    cfg.DefaultModel,
		},
		Retention: cfg.CacheRetention,
	})
	log.Info().Str("places", cfg.PlacesPath).Msg("grid service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		ProviderMetrics: providerMetrics,
		GridService:     gridService,
		ForecastService: forecastService,
		Cache:           store,
		PlacesPath:      cfg.PlacesPath,
		BreakerState:    httpClient.State,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// newCacheStore builds the configured cache backend.
func newCacheStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (cache.Repository, error) {
	switch cfg.CacheBackend {
	case config.BackendPostgres:
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
		return cache.NewPostgresStore(ctx, cache.PostgresConfig{Pool: pool, TTL: cfg.CacheTTL})
	case config.BackendMemory:
		log.Warn().Msg("using in-memory cache; entries do not survive restarts")
		return cache.NewMemoryStore(cache.MemoryConfig{TTL: cfg.CacheTTL}), nil
	default:
		return cache.NewSQLiteStore(cache.SQLiteConfig{Path: cfg.CachePath, TTL: cfg.CacheTTL})
	}
}
