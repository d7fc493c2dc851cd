// Package worker provides background cache maintenance jobs.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rainmatrix/rainmatrix/internal/grid"
)

// WarmConfig holds configuration for the cache warm job.
type WarmConfig struct {
	// Timezone anchors the date window. Should match the API's default
	// timezone so the warmed cache keys line up with request keys.
	Timezone string

	// WindowDays is how far past today to warm.
	// Default: grid.DefaultWindowDays
	WindowDays int

	// Concurrency is the number of concurrent warm operations.
	// Default: 2
	Concurrency int

	// Timeout is the timeout for warming a single date.
	// Default: 60 seconds
	Timeout time.Duration
}

// DefaultWarmConfig returns the default warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		WindowDays:  grid.DefaultWindowDays,
		Concurrency: 2,
		Timeout:     60 * time.Second,
	}
}

// WarmMetrics tracks warm job statistics.
type WarmMetrics struct {
	mu sync.RWMutex

	TotalRuns   int64
	WarmedDates int64
	FailedDates int64
	CacheHits   int64
	CacheMisses int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config WarmConfig
	Logger zerolog.Logger
	Grid   *grid.Service

	// Now is the clock, injectable for tests (default: time.Now).
	Now func() time.Time
}

// WarmJob computes the matrix for every date in the accepted window so that
// interactive requests are served from the cache. Dates already fresh in the
// cache count as hits and cost nothing upstream.
type WarmJob struct {
	config  WarmConfig
	logger  zerolog.Logger
	grid    *grid.Service
	now     func() time.Time
	metrics *WarmMetrics
}

// NewWarmJob creates a new warm job processor.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	config := cfg.Config
	defaults := DefaultWarmConfig()
	if config.WindowDays == 0 {
		config.WindowDays = defaults.WindowDays
	}
	if config.Concurrency == 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &WarmJob{
		config:  config,
		logger:  cfg.Logger,
		grid:    cfg.Grid,
		now:     now,
		metrics: &WarmMetrics{},
	}
}

// WarmResult contains the result of one warm run.
type WarmResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalDates  int
	Warmed      int
	Failed      int
	CacheHits   int
	CacheMisses int
	Errors      []WarmError
}

// WarmError represents a failure to warm a single date.
type WarmError struct {
	Date  string
	Error string
}

// Run warms every date in the window once.
func (j *WarmJob) Run(ctx context.Context) (*WarmResult, error) {
	dates, err := j.windowDates()
	if err != nil {
		return nil, err
	}

	startTime := j.now()
	result := &WarmResult{
		StartTime:  startTime,
		TotalDates: len(dates),
	}

	j.logger.Info().
		Int("total_dates", result.TotalDates).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warm job")

	datesChan := make(chan string, len(dates))
	resultsChan := make(chan dateResult, len(dates))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, datesChan, resultsChan)
		}()
	}

	for _, d := range dates {
		datesChan <- d
	}
	close(datesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for dr := range resultsChan {
		if dr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, WarmError{Date: dr.date, Error: dr.err.Error()})
			continue
		}
		result.Warmed++
		if dr.cacheHit {
			result.CacheHits++
		} else {
			result.CacheMisses++
		}
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("warmed", result.Warmed).
		Int("failed", result.Failed).
		Int("cache_hits", result.CacheHits).
		Int("cache_misses", result.CacheMisses).
		Msg("cache warm job completed")

	return result, nil
}

type dateResult struct {
	date     string
	cacheHit bool
	err      error
}

func (j *WarmJob) warmWorker(ctx context.Context, dates <-chan string, results chan<- dateResult) {
	for date := range dates {
		select {
		case <-ctx.Done():
			results <- dateResult{date: date, err: ctx.Err()}
		default:
			results <- j.warmDate(ctx, date)
		}
	}
}

func (j *WarmJob) warmDate(ctx context.Context, date string) dateResult {
	dateCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.grid.Matrix(dateCtx, grid.Request{Date: date, Timezone: j.config.Timezone})
	if err != nil {
		return dateResult{date: date, err: err}
	}
	return dateResult{date: date, cacheHit: res.CacheHit}
}

// windowDates returns today through today+WindowDays in the configured zone.
func (j *WarmJob) windowDates() ([]string, error) {
	zone := time.Local
	if j.config.Timezone != "" {
		var err error
		zone, err = time.LoadLocation(j.config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", j.config.Timezone, err)
		}
	}

	now := j.now().In(zone)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, zone)

	dates := make([]string, 0, j.config.WindowDays+1)
	for i := 0; i <= j.config.WindowDays; i++ {
		dates = append(dates, today.AddDate(0, 0, i).Format("2006-01-02"))
	}
	return dates, nil
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.WarmedDates += int64(result.Warmed)
	j.metrics.FailedDates += int64(result.Failed)
	j.metrics.CacheHits += int64(result.CacheHits)
	j.metrics.CacheMisses += int64(result.CacheMisses)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		WarmedDates:     j.metrics.WarmedDates,
		FailedDates:     j.metrics.FailedDates,
		CacheHits:       j.metrics.CacheHits,
		CacheMisses:     j.metrics.CacheMisses,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for ops endpoints.
func (j *WarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"warmed_dates":      m.WarmedDates,
		"failed_dates":      m.FailedDates,
		"cache_hits":        m.CacheHits,
		"cache_misses":      m.CacheMisses,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
	}
}
