// Package matrix builds the date/hour × location forecast grid and derives
// the visual attributes (icon, precipitation color, probability tier) for
// each cell.
package matrix

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rainmatrix/rainmatrix/internal/forecast"
)

var (
	// ErrNoLocations is returned when Build is called with an empty
	// location list.
	ErrNoLocations = errors.New("no locations to build matrix for")

	// ErrBadTimezone is returned when the requested timezone identifier
	// cannot be resolved.
	ErrBadTimezone = errors.New("unresolvable timezone")
)

// Cell is one derived grid entry. Immutable once computed.
type Cell struct {
	Icon            Icon    `json:"icon"`
	PrecipitationMM float64 `json:"precipitationMm"`
	ProbabilityPct  int     `json:"probabilityPct"`
	PrecipColor     RGB     `json:"precipColor"`
	ProbabilityTier Tier    `json:"probabilityTier"`
}

// NoDataCell is the sentinel rendered for a (location, hour) pair with no
// sample. Distinct from a genuine zero-precipitation reading only by icon.
func NoDataCell() Cell {
	return Cell{
		Icon:            IconNoData,
		PrecipitationMM: 0,
		ProbabilityPct:  0,
		PrecipColor:     PrecipColor(0),
		ProbabilityTier: TierNone,
	}
}

// PrecipDisplay formats a precipitation amount for a cell label: "-" for a
// dry hour, one decimal otherwise.
func (c Cell) PrecipDisplay() string {
	if c.PrecipitationMM <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", c.PrecipitationMM)
}

// Matrix is the assembled grid for one target date.
type Matrix struct {
	TargetDate string
	Timezone   string

	// TimeIndex is the sorted, deduplicated union of hour-truncated
	// timestamps observed across all locations for the target date.
	TimeIndex []time.Time

	// Locations preserves the request ordering.
	Locations []forecast.Location

	// Cells maps location label → hour key → cell. Pairs absent from the
	// inner map have no data for that hour.
	Cells map[string]map[string]Cell
}

// HourKey formats a timestamp as the grid's hour key.
func HourKey(t time.Time) string {
	return t.Format("15:04")
}

// Cell returns the cell for a label and hour, or the no-data sentinel when
// the pair has no sample.
func (m *Matrix) Cell(label string, hour time.Time) Cell {
	if row, ok := m.Cells[label]; ok {
		if c, ok := row[HourKey(hour)]; ok {
			return c
		}
	}
	return NoDataCell()
}

// NewCell derives a cell from raw sample values and the local hour of day.
func NewCell(precipMM float64, popPct int, cloudPct float64, hour int) Cell {
	return Cell{
		Icon:            ClassifyIcon(precipMM, cloudPct, hour),
		PrecipitationMM: precipMM,
		ProbabilityPct:  popPct,
		PrecipColor:     PrecipColor(precipMM),
		ProbabilityTier: TierFor(popPct),
	}
}

// Build assembles the matrix for targetDate (YYYY-MM-DD) in the given
// timezone. Samples are keyed by location label; each sequence is assumed
// time-sorted. Coverage gaps are not errors — missing (location, hour)
// pairs are simply absent from Cells.
func Build(locations []forecast.Location, samples map[string][]forecast.HourlySample, targetDate, timezone string) (*Matrix, error) {
	if len(locations) == 0 {
		return nil, ErrNoLocations
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadTimezone, timezone)
	}
	if _, err := time.ParseInLocation("2006-01-02", targetDate, loc); err != nil {
		return nil, fmt.Errorf("parse target date %q: %w", targetDate, err)
	}

	m := &Matrix{
		TargetDate: targetDate,
		Timezone:   timezone,
		Locations:  locations,
		Cells:      make(map[string]map[string]Cell, len(locations)),
	}

	seen := make(map[string]time.Time)

	for _, l := range locations {
		cells := make(map[string]Cell)

		for _, s := range samples[l.Label] {
			local := s.Time.In(loc)
			if local.Format("2006-01-02") != targetDate {
				continue
			}

			hour := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
			key := HourKey(hour)
			if _, ok := seen[key]; !ok {
				seen[key] = hour
			}

			cells[key] = NewCell(s.PrecipitationMM, s.ProbabilityPct, s.CloudCoverPct, local.Hour())
		}

		m.Cells[l.Label] = cells
	}

	m.TimeIndex = make([]time.Time, 0, len(seen))
	for _, t := range seen {
		m.TimeIndex = append(m.TimeIndex, t)
	}
	sort.Slice(m.TimeIndex, func(i, j int) bool { return m.TimeIndex[i].Before(m.TimeIndex[j]) })

	return m, nil
}
