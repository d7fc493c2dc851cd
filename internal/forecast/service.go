package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Provider is the upstream forecast/geocoding boundary.
type Provider interface {
	// HourlyForecast fetches one location's hourly series, covering at
	// least the full requested horizon.
	HourlyForecast(ctx context.Context, loc Location, timezone, model string) ([]HourlySample, error)

	// Geocode resolves a free-text place name to a location.
	Geocode(ctx context.Context, query, countryHint string) (Location, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the forecast service.
type ServiceConfig struct {
	// Provider is the upstream forecast source.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// FetchTimeout bounds each per-location call (default: 20 seconds).
	// There is no cancellation beyond it; the timeout is the only bound
	// on worst-case latency.
	FetchTimeout time.Duration
}

// Service fans per-location fetches out concurrently and aggregates the
// results. A single location failure fails the whole aggregate — partial
// results never leak to the matrix.
type Service struct {
	provider     Provider
	logger       zerolog.Logger
	fetchTimeout time.Duration
}

// NewService creates a new forecast service.
func NewService(cfg ServiceConfig) *Service {
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 20 * time.Second
	}
	return &Service{
		provider:     cfg.Provider,
		logger:       cfg.Logger,
		fetchTimeout: fetchTimeout,
	}
}

// FetchAll fetches the hourly series for every location concurrently, one
// task per location, each with its own timeout. Either every location
// contributes or the first failure aborts the aggregate.
func (s *Service) FetchAll(ctx context.Context, locations []Location, timezone, model string) (map[string][]HourlySample, error) {
	results := make([][]HourlySample, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range locations {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, s.fetchTimeout)
			defer cancel()

			start := time.Now()
			samples, err := s.provider.HourlyForecast(callCtx, loc, timezone, model)
			if err != nil {
				s.logger.Error().Err(err).
					Str("label", loc.Label).
					Str("provider", s.provider.Name()).
					Msg("forecast fetch failed")
				return fmt.Errorf("fetch %s: %w", loc.Label, err)
			}

			s.logger.Debug().
				Str("label", loc.Label).
				Int("samples", len(samples)).
				Dur("duration", time.Since(start)).
				Msg("forecast fetched")

			results[i] = samples
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	samplesByLabel := make(map[string][]HourlySample, len(locations))
	for i, loc := range locations {
		samplesByLabel[loc.Label] = results[i]
	}
	return samplesByLabel, nil
}

// Resolve geocodes a free-text place name through the provider.
func (s *Service) Resolve(ctx context.Context, query, countryHint string) (Location, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	loc, err := s.provider.Geocode(callCtx, query, countryHint)
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}
