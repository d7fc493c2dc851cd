// Package forecast defines the domain model for per-location hourly
// forecasts and the provider contract for fetching them.
package forecast

import (
	"errors"
	"fmt"
	"time"
)

// Location is a labeled coordinate pair. Label is the identity of the
// location within a request and must be unique.
type Location struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// HourlySample is one hour of forecast data for a location.
type HourlySample struct {
	// Time carries the provider's local timestamp with offset.
	Time time.Time

	// PrecipitationMM is the forecast precipitation for the hour, >= 0.
	PrecipitationMM float64

	// ProbabilityPct is the probability of precipitation, 0..100.
	// Missing provider values default to 0.
	ProbabilityPct int

	// CloudCoverPct is total cloud cover, 0..100.
	CloudCoverPct float64
}

// ErrNoMatch is returned by geocoding when the provider has no candidates
// for the query.
var ErrNoMatch = errors.New("no geocoding match")

// UpstreamError indicates a failed provider call: network failure or a
// non-success HTTP status.
type UpstreamError struct {
	Provider string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ShapeError indicates a malformed provider response: the hourly parallel
// arrays do not line up. Kept distinct from UpstreamError for diagnostics.
type ShapeError struct {
	Field string
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("hourly array %q has %d elements, want %d", e.Field, e.Got, e.Want)
}
