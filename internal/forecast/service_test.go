package forecast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainmatrix/rainmatrix/internal/forecast"
)

type mockProvider struct {
	mu       sync.Mutex
	calls    []string
	samples  map[string][]forecast.HourlySample
	failures map[string]error
	geocoded forecast.Location
	delay    time.Duration
}

func (m *mockProvider) HourlyForecast(ctx context.Context, loc forecast.Location, timezone, model string) ([]forecast.HourlySample, error) {
	m.mu.Lock()
	m.calls = append(m.calls, loc.Label)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := m.failures[loc.Label]; ok {
		return nil, err
	}
	return m.samples[loc.Label], nil
}

func (m *mockProvider) Geocode(ctx context.Context, query, countryHint string) (forecast.Location, error) {
	if m.geocoded.Label == "" {
		return forecast.Location{}, forecast.ErrNoMatch
	}
	return m.geocoded, nil
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func sampleAt(hour int) forecast.HourlySample {
	return forecast.HourlySample{
		Time:            time.Date(2025, 6, 10, hour, 0, 0, 0, time.UTC),
		PrecipitationMM: 0.5,
	}
}

func TestService_FetchAll(t *testing.T) {
	locations := []forecast.Location{
		{Label: "AIVR", Lat: 13.174, Lon: 121.278},
		{Label: "Calapan", Lat: 13.411, Lon: 121.180},
		{Label: "Batangas", Lat: 13.757, Lon: 121.060},
	}

	provider := &mockProvider{
		samples: map[string][]forecast.HourlySample{
			"AIVR":     {sampleAt(7)},
			"Calapan":  {sampleAt(8), sampleAt(9)},
			"Batangas": {sampleAt(10)},
		},
	}

	svc := forecast.NewService(forecast.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
	})

	got, err := svc.FetchAll(context.Background(), locations, "Asia/Manila", "ecmwf_ifs")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Len(t, got["AIVR"], 1)
	assert.Len(t, got["Calapan"], 2)
	assert.Len(t, got["Batangas"], 1)
	assert.Equal(t, 3, provider.callCount(), "one fetch per location")
}

func TestService_FetchAll_SingleFailureFailsAll(t *testing.T) {
	locations := []forecast.Location{
		{Label: "AIVR"},
		{Label: "Calapan"},
	}

	upstream := &forecast.UpstreamError{Provider: "mock", Status: 502}
	provider := &mockProvider{
		samples:  map[string][]forecast.HourlySample{"AIVR": {sampleAt(7)}},
		failures: map[string]error{"Calapan": upstream},
	}

	svc := forecast.NewService(forecast.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
	})

	got, err := svc.FetchAll(context.Background(), locations, "Asia/Manila", "")
	require.Error(t, err)
	assert.Nil(t, got, "partial results must not leak")

	var upstreamErr *forecast.UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)
	assert.Contains(t, err.Error(), "Calapan")
}

func TestService_FetchAll_EmptyLocations(t *testing.T) {
	provider := &mockProvider{}

	svc := forecast.NewService(forecast.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
	})

	got, err := svc.FetchAll(context.Background(), nil, "Asia/Manila", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, provider.callCount())
}

func TestService_FetchAll_TimeoutApplies(t *testing.T) {
	provider := &mockProvider{
		samples: map[string][]forecast.HourlySample{"AIVR": {sampleAt(7)}},
		delay:   200 * time.Millisecond,
	}

	svc := forecast.NewService(forecast.ServiceConfig{
		Provider:     provider,
		Logger:       zerolog.Nop(),
		FetchTimeout: 10 * time.Millisecond,
	})

	_, err := svc.FetchAll(context.Background(), []forecast.Location{{Label: "AIVR"}}, "Asia/Manila", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Resolve(t *testing.T) {
	provider := &mockProvider{
		geocoded: forecast.Location{Label: "Calapan", Lat: 13.411, Lon: 121.180},
	}

	svc := forecast.NewService(forecast.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
	})

	loc, err := svc.Resolve(context.Background(), "Calapan, Oriental Mindoro", "PH")
	require.NoError(t, err)
	assert.Equal(t, "Calapan", loc.Label)
}

func TestService_Resolve_NoMatch(t *testing.T) {
	svc := forecast.NewService(forecast.ServiceConfig{
		Provider: &mockProvider{},
		Logger:   zerolog.Nop(),
	})

	_, err := svc.Resolve(context.Background(), "Nowhere", "")
	assert.ErrorIs(t, err, forecast.ErrNoMatch)
}

func TestService_FetchAll_ContextCancellation(t *testing.T) {
	provider := &mockProvider{
		samples: map[string][]forecast.HourlySample{"AIVR": {sampleAt(7)}},
		delay:   time.Second,
	}

	svc := forecast.NewService(forecast.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.FetchAll(ctx, []forecast.Location{{Label: "AIVR"}}, "Asia/Manila", "")
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not observe cancellation")
	}
}
