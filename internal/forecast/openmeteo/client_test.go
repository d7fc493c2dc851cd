package openmeteo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/forecast/openmeteo"
)

func forecastServer(t *testing.T, hourly map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "precipitation,precipitation_probability,cloudcover", r.URL.Query().Get("hourly"))
		assert.Equal(t, "7", r.URL.Query().Get("forecast_days"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"hourly": hourly})
	}))
}

func TestClient_HourlyForecast(t *testing.T) {
	server := forecastServer(t, map[string]interface{}{
		"time":                      []string{"2025-06-10T00:00", "2025-06-10T01:00"},
		"precipitation":             []float64{0.0, 1.2},
		"precipitation_probability": []interface{}{40, nil},
		"cloudcover":                []float64{20, 85},
	})
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{ForecastURL: server.URL})

	samples, err := client.HourlyForecast(context.Background(),
		forecast.Location{Label: "AIVR", Lat: 13.174, Lon: 121.278}, "Asia/Manila", "ecmwf_ifs")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, 0.0, samples[0].PrecipitationMM)
	assert.Equal(t, 40, samples[0].ProbabilityPct)
	assert.Equal(t, 20.0, samples[0].CloudCoverPct)
	assert.Equal(t, "2025-06-10T00:00:00+08:00", samples[0].Time.Format("2006-01-02T15:04:05Z07:00"))

	// Null probability elements coerce to zero.
	assert.Equal(t, 1.2, samples[1].PrecipitationMM)
	assert.Equal(t, 0, samples[1].ProbabilityPct)
}

func TestClient_HourlyForecast_MissingProbabilityArrayDefaultsToZero(t *testing.T) {
	server := forecastServer(t, map[string]interface{}{
		"time":          []string{"2025-06-10T00:00"},
		"precipitation": []float64{2.5},
		"cloudcover":    []float64{90},
	})
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{ForecastURL: server.URL})

	samples, err := client.HourlyForecast(context.Background(),
		forecast.Location{Label: "AIVR", Lat: 13, Lon: 121}, "Asia/Manila", "")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 0, samples[0].ProbabilityPct)
}

func TestClient_HourlyForecast_LengthMismatchIsShapeError(t *testing.T) {
	server := forecastServer(t, map[string]interface{}{
		"time":          []string{"2025-06-10T00:00", "2025-06-10T01:00"},
		"precipitation": []float64{0.0},
		"cloudcover":    []float64{20, 85},
	})
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{ForecastURL: server.URL})

	_, err := client.HourlyForecast(context.Background(),
		forecast.Location{Label: "AIVR", Lat: 13, Lon: 121}, "Asia/Manila", "")
	require.Error(t, err)

	var shapeErr *forecast.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "precipitation", shapeErr.Field)
	assert.Equal(t, 2, shapeErr.Want)
	assert.Equal(t, 1, shapeErr.Got)
}

func TestClient_HourlyForecast_UpstreamStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{ForecastURL: server.URL})

	_, err := client.HourlyForecast(context.Background(),
		forecast.Location{Label: "AIVR", Lat: 13, Lon: 121}, "Asia/Manila", "")
	require.Error(t, err)

	var upstreamErr *forecast.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.Status)
}

func TestClient_Geocode_HighestPopulationWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Calapan", r.URL.Query().Get("name"))
		assert.Equal(t, "PH", r.URL.Query().Get("country_code"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"name": "Calapan", "latitude": 1.0, "longitude": 2.0, "population": 1000},
				{"name": "Calapan", "latitude": 13.411, "longitude": 121.180, "population": 145000},
				{"name": "Calapan", "latitude": 3.0, "longitude": 4.0},
			},
		})
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{GeocodeURL: server.URL})

	loc, err := client.Geocode(context.Background(), "Calapan, Oriental Mindoro", "ph")
	require.NoError(t, err)

	assert.Equal(t, "Calapan", loc.Label)
	assert.Equal(t, 13.411, loc.Lat)
	assert.Equal(t, 121.180, loc.Lon)
}

func TestClient_Geocode_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{GeocodeURL: server.URL})

	_, err := client.Geocode(context.Background(), "Nowhere", "")
	assert.ErrorIs(t, err, forecast.ErrNoMatch)
}
