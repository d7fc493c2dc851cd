// Package openmeteo implements the forecast and geocoding provider against
// the Open-Meteo APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider in errors and logs.
	ProviderName = "open-meteo"

	// DefaultForecastURL is the Open-Meteo hourly forecast endpoint.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	// DefaultGeocodeURL is the Open-Meteo geocoding search endpoint.
	DefaultGeocodeURL = "https://geocoding-api.open-meteo.com/v1/search"

	// forecastDays is the horizon requested from the provider.
	forecastDays = 7
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// ForecastURL overrides the forecast endpoint (tests).
	ForecastURL string

	// GeocodeURL overrides the geocoding endpoint (tests).
	GeocodeURL string

	// HTTPClient is the resilient transport. If nil, a single-shot client
	// with defaults is used.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	forecastURL string
	geocodeURL  string
	httpClient  *resilience.Client
	logger      zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	forecastURL := cfg.ForecastURL
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}
	geocodeURL := cfg.GeocodeURL
	if geocodeURL == "" {
		geocodeURL = DefaultGeocodeURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{Name: ProviderName})
	}

	return &Client{
		forecastURL: forecastURL,
		geocodeURL:  geocodeURL,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// HourlyForecast fetches the hourly forecast for a location, covering the
// full requested horizon. Timestamps are returned in the given timezone.
func (c *Client) HourlyForecast(ctx context.Context, loc forecast.Location, timezone, model string) ([]forecast.HourlySample, error) {
	zone, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.6f", loc.Lat))
	params.Set("longitude", fmt.Sprintf("%.6f", loc.Lon))
	params.Set("hourly", "precipitation,precipitation_probability,cloudcover")
	params.Set("timezone", timezone)
	params.Set("forecast_days", fmt.Sprintf("%d", forecastDays))
	if model != "" {
		params.Set("models", model)
	}

	var payload hourlyResponse
	if err := c.getJSON(ctx, c.forecastURL+"?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	return toSamples(&payload.Hourly, zone)
}

// Geocode resolves a free-text place name to a location. Among all provider
// candidates the one with the highest population wins; ties keep the first
// seen. The part of the query before the first comma is used as the search
// name and as the location label.
func (c *Client) Geocode(ctx context.Context, query, countryHint string) (forecast.Location, error) {
	name := strings.TrimSpace(strings.SplitN(query, ",", 2)[0])

	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "10")
	params.Set("language", "en")
	params.Set("format", "json")
	if countryHint != "" {
		params.Set("country_code", strings.ToUpper(countryHint))
	}

	var payload geocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL+"?"+params.Encode(), &payload); err != nil {
		return forecast.Location{}, err
	}

	if len(payload.Results) == 0 {
		return forecast.Location{}, forecast.ErrNoMatch
	}

	best := payload.Results[0]
	for _, r := range payload.Results[1:] {
		if floatOrZero(r.Population) > floatOrZero(best.Population) {
			best = r
		}
	}

	return forecast.Location{Label: name, Lat: best.Latitude, Lon: best.Longitude}, nil
}

// getJSON executes a GET and decodes the body, mapping transport and status
// failures to UpstreamError.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &forecast.UpstreamError{Provider: ProviderName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &forecast.UpstreamError{Provider: ProviderName, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &forecast.UpstreamError{Provider: ProviderName, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// toSamples converts the provider's parallel arrays into domain samples.
// A wholly absent probability array defaults to zero for every hour; any
// other length mismatch is a hard shape failure.
func toSamples(h *hourlyArrays, zone *time.Location) ([]forecast.HourlySample, error) {
	n := len(h.Time)

	if len(h.Precipitation) != n {
		return nil, &forecast.ShapeError{Field: "precipitation", Want: n, Got: len(h.Precipitation)}
	}
	if len(h.CloudCover) != n {
		return nil, &forecast.ShapeError{Field: "cloudcover", Want: n, Got: len(h.CloudCover)}
	}
	if h.Probability != nil && len(h.Probability) != n {
		return nil, &forecast.ShapeError{Field: "precipitation_probability", Want: n, Got: len(h.Probability)}
	}

	samples := make([]forecast.HourlySample, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.ParseInLocation("2006-01-02T15:04", h.Time[i], zone)
		if err != nil {
			return nil, &forecast.UpstreamError{Provider: ProviderName, Err: fmt.Errorf("parse hourly time %q: %w", h.Time[i], err)}
		}

		var pop int
		if h.Probability != nil {
			pop = int(math.Round(floatOrZero(h.Probability[i])))
		}

		samples = append(samples, forecast.HourlySample{
			Time:            ts,
			PrecipitationMM: floatOrZero(h.Precipitation[i]),
			ProbabilityPct:  pop,
			CloudCoverPct:   floatOrZero(h.CloudCover[i]),
		})
	}
	return samples, nil
}

// floatOrZero is the lenient numeric coercion policy: provider nulls read
// as zero rather than failing the request.
func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Open-Meteo API response structures.

type hourlyResponse struct {
	Hourly hourlyArrays `json:"hourly"`
}

type hourlyArrays struct {
	Time          []string   `json:"time"`
	Precipitation []*float64 `json:"precipitation"`
	Probability   []*float64 `json:"precipitation_probability"`
	CloudCover    []*float64 `json:"cloudcover"`
}

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Name       string   `json:"name"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Population *float64 `json:"population"`
}
