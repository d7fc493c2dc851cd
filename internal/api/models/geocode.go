package models

// GeocodeResult is the response body for a geocoding lookup.
type GeocodeResult struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}
