package matrix

import (
	"fmt"
	"math"
)

// Precipitation color scale endpoints. Cell backgrounds blend from the base
// color at 0 mm toward the alert color, which is reached exactly at
// ScaleMaxMM and held for anything heavier.
const (
	// ScaleMaxMM is the precipitation amount at which the alert color is
	// fully saturated.
	ScaleMaxMM = 7.0
)

var (
	// BaseColor is the cell background for dry hours (sky blue).
	BaseColor = RGB{R: 0x87, G: 0xCE, B: 0xEB}

	// AlertColor is the cell background for heavy precipitation (violet).
	AlertColor = RGB{R: 0x8A, G: 0x2B, B: 0xE2}
)

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as an uppercase #RRGGBB string.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler so colors serialize as hex
// strings in JSON payloads.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// clamp01 restricts t to the unit interval.
func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// smoothstep remaps an interpolation fraction with the cubic t²(3−2t),
// giving the gradient zero slope at both endpoints.
func smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3.0 - 2.0*t)
}

// lerpColor blends c0 toward c1 by the smoothstep-eased fraction t.
func lerpColor(c0, c1 RGB, t float64) RGB {
	t = smoothstep(t)
	return RGB{
		R: uint8(math.Round(float64(c0.R) + (float64(c1.R)-float64(c0.R))*t)),
		G: uint8(math.Round(float64(c0.G) + (float64(c1.G)-float64(c0.G))*t)),
		B: uint8(math.Round(float64(c0.B) + (float64(c1.B)-float64(c0.B))*t)),
	}
}

// PrecipColor maps a precipitation amount in mm to a cell background color.
// Amounts at or above ScaleMaxMM clamp exactly to AlertColor.
func PrecipColor(mm float64) RGB {
	if mm < 0 {
		mm = 0
	}
	if mm >= ScaleMaxMM {
		return AlertColor
	}
	return lerpColor(BaseColor, AlertColor, mm/ScaleMaxMM)
}

// timeStop is one anchor of the time-of-day gradient.
type timeStop struct {
	hour  float64
	color RGB
}

// Time column palette, midnight to midnight.
var timeStops = []timeStop{
	{0.0, RGB{0x77, 0x6E, 0x99}},
	{4.5, RGB{0xB5, 0x72, 0x8E}},
	{6.5, RGB{0xDA, 0x7F, 0x7D}},
	{8.5, RGB{0xEB, 0xB5, 0x8A}},
	{11.0, RGB{0xF4, 0xD7, 0x97}},
	{13.0, RGB{0xFF, 0xF2, 0xBD}},
	{15.5, RGB{0xF4, 0xD7, 0x97}},
	{18.0, RGB{0xEB, 0xB5, 0x8A}},
	{19.5, RGB{0xDA, 0x7F, 0x7D}},
	{21.5, RGB{0xB5, 0x72, 0x8E}},
	{24.0, RGB{0x77, 0x6E, 0x99}},
}

// TimeOfDayColor maps a fractional hour (hour + minute/60) to the time-axis
// label color via piecewise-linear interpolation across the palette stops,
// each segment eased with smoothstep. Input exactly on a stop returns that
// stop's color; anything outside the stop range falls back to the last stop.
func TimeOfDayColor(h float64) RGB {
	for i := 0; i < len(timeStops)-1; i++ {
		s0, s1 := timeStops[i], timeStops[i+1]
		if s0.hour <= h && h <= s1.hour {
			if h == s0.hour {
				return s0.color
			}
			t := (h - s0.hour) / (s1.hour - s0.hour)
			return lerpColor(s0.color, s1.color, t)
		}
	}
	return timeStops[len(timeStops)-1].color
}
