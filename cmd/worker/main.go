// Package main provides the entrypoint for the cache warm worker. It
// periodically computes the matrix for every date in the accepted window so
// interactive requests are served from the cache.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rainmatrix/rainmatrix/internal/cache"
	"github.com/rainmatrix/rainmatrix/internal/config"
	"github.com/rainmatrix/rainmatrix/internal/database"
	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/forecast/openmeteo"
	"github.com/rainmatrix/rainmatrix/internal/grid"
	"github.com/rainmatrix/rainmatrix/internal/provider/resilience"
	"github.com/rainmatrix/rainmatrix/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg := config.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "rainmatrix-worker").
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting cache warm worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newCacheStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("failed to initialize cache")
	}
	defer store.Close()

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

	gridService := grid.NewService(grid.ServiceConfig{
		PlacesPath: cfg.PlacesPath,
		Cache:      store,
		Forecast: forecast.NewService(forecast.ServiceConfig{
			Provider:     provider,
			Logger:       log,
			FetchTimeout: cfg.FetchTimeout,
		}),
		Logger: log,
		Defaults: grid.Defaults{
			Timezone: cfg.DefaultTimezone,
			Country:  cfg.DefaultCountry,
			Model:    cfg.DefaultModel,
		},
		Retention: cfg.CacheRetention,
	})

	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.WarmConfig{Timezone: cfg.DefaultTimezone},
		Logger: log,
		Grid:   gridService,
	})

	interval := warmInterval()

	// Optional Pub/Sub trigger, for scheduler-driven warm runs.
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: os.Getenv("PUBSUB_SUBSCRIPTION"),
			WarmJob:          job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Health endpoint for the container platform, plus job metrics.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "version": Version})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(job.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	go func() {
		log.Info().Dur("interval", interval).Msg("warm loop started")

		// Warm once at startup, then on the interval.
		if _, err := job.Run(ctx); err != nil {
			log.Error().Err(err).Msg("warm run failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := job.Run(ctx); err != nil {
					log.Error().Err(err).Msg("warm run failed")
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// warmInterval reads WARM_INTERVAL, defaulting to 30 minutes. The cache TTL
// is an hour, so two runs per TTL keeps entries fresh.
func warmInterval() time.Duration {
	value := os.Getenv("WARM_INTERVAL")
	if value == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// newCacheStore builds the configured cache backend.
func newCacheStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (cache.Repository, error) {
	switch cfg.CacheBackend {
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return nil, err
		}
		return cache.NewPostgresStore(ctx, cache.PostgresConfig{Pool: pool, TTL: cfg.CacheTTL})
	case config.BackendMemory:
		log.Warn().Msg("using in-memory cache; the API cannot see warmed entries")
		return cache.NewMemoryStore(cache.MemoryConfig{TTL: cfg.CacheTTL}), nil
	default:
		return cache.NewSQLiteStore(cache.SQLiteConfig{Path: cfg.CachePath, TTL: cfg.CacheTTL})
	}
}
