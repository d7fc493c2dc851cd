// Package grid coordinates a matrix request end to end: date window
// validation, location loading, cache lookup, forecast fan-out, matrix
// assembly, and payload serialization.
package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rainmatrix/rainmatrix/internal/cache"
	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/matrix"
	"github.com/rainmatrix/rainmatrix/internal/places"
)

const (
	// dateLayout is the wire format for query and target dates.
	dateLayout = "2006-01-02"

	// DefaultWindowDays is how far past today a target date may reach.
	DefaultWindowDays = 4
)

// ErrBadDate is returned for a target date that does not parse.
var ErrBadDate = errors.New("unparseable target date")

// DateWindowError reports a parseable target date outside the accepted
// window.
type DateWindowError struct {
	Min string
	Max string
	Got string
}

func (e *DateWindowError) Error() string {
	return fmt.Sprintf("target date %s outside window [%s, %s]", e.Got, e.Min, e.Max)
}

// Request is one matrix query. Empty fields take the configured defaults.
type Request struct {
	Date     string
	Timezone string
	Country  string
	Model    string

	// NoCache bypasses the cache read. The fresh result is still stored.
	NoCache bool
}

// Result carries the serialized payload and whether it came from the cache.
type Result struct {
	Payload    []byte
	TargetDate string
	CacheHit   bool
}

// Defaults fills unset request fields.
type Defaults struct {
	Timezone string
	Country  string
	Model    string
}

// ServiceConfig holds configuration for the coordinator.
type ServiceConfig struct {
	// PlacesPath locates the location source file, re-read per request.
	PlacesPath string

	// Cache is the response store. Its failures degrade the request to a
	// direct computation, they never fail it.
	Cache cache.Repository

	// Forecast performs the per-location fan-out.
	Forecast *forecast.Service

	// Logger for coordinator operations.
	Logger zerolog.Logger

	// Defaults for timezone, country and model.
	Defaults Defaults

	// Retention passed to opportunistic pruning (default: 48h).
	Retention time.Duration

	// WindowDays bounds target dates to [today, today+WindowDays]
	// (default: 4).
	WindowDays int

	// Now is the clock, injectable for tests (default: time.Now).
	Now func() time.Time
}

// Service is the request coordinator.
type Service struct {
	placesPath string
	cache      cache.Repository
	forecast   *forecast.Service
	logger     zerolog.Logger
	defaults   Defaults
	retention  time.Duration
	windowDays int
	now        func() time.Time
}

// NewService creates a coordinator from cfg, filling in defaults.
func NewService(cfg ServiceConfig) *Service {
	retention := cfg.Retention
	if retention == 0 {
		retention = cache.DefaultRetention
	}
	windowDays := cfg.WindowDays
	if windowDays == 0 {
		windowDays = DefaultWindowDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		placesPath: cfg.PlacesPath,
		cache:      cfg.Cache,
		forecast:   cfg.Forecast,
		logger:     cfg.Logger,
		defaults:   cfg.Defaults,
		retention:  retention,
		windowDays: windowDays,
		now:        now,
	}
}

// Matrix resolves one matrix request: validates the target date against the
// accepted window, serves from the cache when possible, and otherwise
// fetches, builds, stores and returns a fresh payload.
func (s *Service) Matrix(ctx context.Context, req Request) (*Result, error) {
	tz := req.Timezone
	if tz == "" {
		tz = s.defaults.Timezone
	}
	country := req.Country
	if country == "" {
		country = s.defaults.Country
	}
	model := req.Model
	if model == "" {
		model = s.defaults.Model
	}

	zone, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", matrix.ErrBadTimezone, tz)
	}

	now := s.now().In(zone)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, zone)
	queryDate := today.Format(dateLayout)

	targetDate := req.Date
	if targetDate == "" {
		targetDate = queryDate
	}
	target, err := time.ParseInLocation(dateLayout, targetDate, zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadDate, targetDate)
	}

	max := today.AddDate(0, 0, s.windowDays)
	if target.Before(today) || target.After(max) {
		return nil, &DateWindowError{
			Min: queryDate,
			Max: max.Format(dateLayout),
			Got: targetDate,
		}
	}

	locations, placesSig, err := places.Load(s.placesPath)
	if err != nil {
		return nil, err
	}

	key := cache.Key{
		QueryDate:  queryDate,
		TargetDate: targetDate,
		Timezone:   tz,
		Country:    country,
		Model:      model,
		PlacesSig:  placesSig,
	}

	if err := s.cache.Prune(ctx, s.retention); err != nil {
		s.logger.Warn().Err(err).Msg("cache prune failed")
	}

	if !req.NoCache {
		payload, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("cache read failed, computing directly")
		} else if ok {
			s.logger.Debug().Str("key", key.String()).Msg("cache hit")
			return &Result{Payload: payload, TargetDate: targetDate, CacheHit: true}, nil
		}
	}

	samples, err := s.forecast.FetchAll(ctx, locations, tz, model)
	if err != nil {
		return nil, err
	}

	m, err := matrix.Build(locations, samples, targetDate, tz)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(render(m, s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	if err := s.cache.Put(ctx, key, payload); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("cache write failed")
	}

	return &Result{Payload: payload, TargetDate: targetDate, CacheHit: false}, nil
}
