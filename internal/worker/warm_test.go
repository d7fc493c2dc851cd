package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainmatrix/rainmatrix/internal/cache"
	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/grid"
	"github.com/rainmatrix/rainmatrix/internal/worker"
)

// stubProvider serves a fixed series for every location and counts fetches.
type stubProvider struct {
	fetches atomic.Int32
	err     error
}

func (p *stubProvider) HourlyForecast(_ context.Context, _ forecast.Location, timezone, _ string) ([]forecast.HourlySample, error) {
	p.fetches.Add(1)
	if p.err != nil {
		return nil, p.err
	}

	zone, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return []forecast.HourlySample{
		{Time: time.Date(2025, 6, 10, 9, 0, 0, 0, zone), PrecipitationMM: 0.4, ProbabilityPct: 35, CloudCoverPct: 70},
	}, nil
}

func (p *stubProvider) Geocode(context.Context, string, string) (forecast.Location, error) {
	return forecast.Location{}, forecast.ErrNoMatch
}

func (p *stubProvider) Name() string { return "stub" }

func fixedNow() time.Time {
	return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
}

func newWarmJob(t *testing.T, provider forecast.Provider, store cache.Repository) *worker.WarmJob {
	t.Helper()

	placesPath := filepath.Join(t.TempDir(), "places.txt")
	require.NoError(t, os.WriteFile(placesPath, []byte("AIVR, 13.174, 121.278\n"), 0o600))

	gridService := grid.NewService(grid.ServiceConfig{
		PlacesPath: placesPath,
		Cache:      store,
		Forecast:   forecast.NewService(forecast.ServiceConfig{Provider: provider, Logger: zerolog.Nop()}),
		Logger:     zerolog.Nop(),
		Defaults:   grid.Defaults{Timezone: "Asia/Manila", Country: "PH", Model: "ecmwf_ifs"},
		Now:        fixedNow,
	})

	return worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.WarmConfig{Timezone: "Asia/Manila"},
		Logger: zerolog.Nop(),
		Grid:   gridService,
		Now:    fixedNow,
	})
}

func TestWarmJob_Run_WarmsEveryDateInWindow(t *testing.T) {
	provider := &stubProvider{}
	store := cache.NewMemoryStore(cache.MemoryConfig{Now: fixedNow})
	job := newWarmJob(t, provider, store)

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalDates, "today through today+4")
	assert.Equal(t, 5, result.Warmed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 5, result.CacheMisses)
	assert.Equal(t, 5, store.Len(), "one cached payload per date")
}

func TestWarmJob_Run_SecondRunHitsCache(t *testing.T) {
	provider := &stubProvider{}
	store := cache.NewMemoryStore(cache.MemoryConfig{Now: fixedNow})
	job := newWarmJob(t, provider, store)

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	fetchesAfterFirst := provider.fetches.Load()

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.CacheHits)
	assert.Zero(t, result.CacheMisses)
	assert.Equal(t, fetchesAfterFirst, provider.fetches.Load(), "warm run against a fresh cache must not refetch")
}

func TestWarmJob_Run_RecordsFailures(t *testing.T) {
	provider := &stubProvider{err: &forecast.UpstreamError{Provider: "stub", Status: 502}}
	store := cache.NewMemoryStore(cache.MemoryConfig{Now: fixedNow})
	job := newWarmJob(t, provider, store)

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Failed)
	assert.Zero(t, result.Warmed)
	require.Len(t, result.Errors, 5)
	assert.NotEmpty(t, result.Errors[0].Date)
}

func TestWarmJob_Run_BadTimezone(t *testing.T) {
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.WarmConfig{Timezone: "Mars/Olympus"},
		Logger: zerolog.Nop(),
		Now:    fixedNow,
	})

	_, err := job.Run(context.Background())
	require.Error(t, err)
}

func TestWarmJob_Metrics(t *testing.T) {
	provider := &stubProvider{}
	store := cache.NewMemoryStore(cache.MemoryConfig{Now: fixedNow})
	job := newWarmJob(t, provider, store)

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.NoError(t, err)

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(10), m.WarmedDates)
	assert.Equal(t, int64(5), m.CacheHits)
	assert.Equal(t, int64(5), m.CacheMisses)
	assert.Equal(t, fixedNow(), m.LastRunAt)

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_runs"])
	assert.Equal(t, int64(10), snapshot["warmed_dates"])
}
