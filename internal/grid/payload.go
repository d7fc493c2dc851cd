package grid

import (
	"time"

	"github.com/rainmatrix/rainmatrix/internal/matrix"
)

// CellView is the rendered form of one grid cell.
type CellView struct {
	Icon            string  `json:"icon"`
	Glyph           string  `json:"glyph"`
	Precipitation   string  `json:"precipitation"`
	PrecipitationMM float64 `json:"precipitationMm"`
	PrecipColor     string  `json:"precipColor"`
	ProbabilityPct  int     `json:"probabilityPct"`
	Tier            string  `json:"tier"`
	TierColor       string  `json:"tierColor"`
}

// HourRow is one time-index row: the hour label, its time-of-day color, and
// one cell per location in request order.
type HourRow struct {
	Hour  string     `json:"hour"`
	Color string     `json:"color"`
	Cells []CellView `json:"cells"`
}

// Payload is the serialized matrix response. This is the exact byte shape
// stored in the cache.
type Payload struct {
	TargetDate  string    `json:"targetDate"`
	Timezone    string    `json:"timezone"`
	Locations   []string  `json:"locations"`
	Rows        []HourRow `json:"rows"`
	GeneratedAt string    `json:"generatedAt"`
}

// render flattens a matrix into the response payload.
func render(m *matrix.Matrix, generatedAt time.Time) Payload {
	labels := make([]string, len(m.Locations))
	for i, l := range m.Locations {
		labels[i] = l.Label
	}

	rows := make([]HourRow, 0, len(m.TimeIndex))
	for _, hour := range m.TimeIndex {
		fractional := float64(hour.Hour()) + float64(hour.Minute())/60.0

		cells := make([]CellView, 0, len(m.Locations))
		for _, l := range m.Locations {
			c := m.Cell(l.Label, hour)
			cells = append(cells, CellView{
				Icon:            string(c.Icon),
				Glyph:           c.Icon.Glyph(),
				Precipitation:   c.PrecipDisplay(),
				PrecipitationMM: c.PrecipitationMM,
				PrecipColor:     c.PrecipColor.Hex(),
				ProbabilityPct:  c.ProbabilityPct,
				Tier:            string(c.ProbabilityTier),
				TierColor:       c.ProbabilityTier.Color().Hex(),
			})
		}

		rows = append(rows, HourRow{
			Hour:  matrix.HourKey(hour),
			Color: matrix.TimeOfDayColor(fractional).Hex(),
			Cells: cells,
		})
	}

	return Payload{
		TargetDate:  m.TargetDate,
		Timezone:    m.Timezone,
		Locations:   labels,
		Rows:        rows,
		GeneratedAt: generatedAt.Format(time.RFC3339),
	}
}
