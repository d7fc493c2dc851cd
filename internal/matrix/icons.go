package matrix

// Icon classification thresholds. Precipitation wins over cloud cover; the
// cloud buckets only apply to dry hours.
const (
	dayStartHour = 6
	dayEndHour   = 18

	clearMaxPct  = 25.0
	partlyMaxPct = 60.0

	lightRainMaxMM    = 2.5
	moderateRainMaxMM = 7.5
)

// Icon identifies the weather glyph for a cell.
type Icon string

const (
	IconClearDay       Icon = "clear_day"
	IconClearNight     Icon = "clear_night"
	IconPartlyDay      Icon = "partly_day"
	IconPartlyNight    Icon = "partly_night"
	IconCloudy         Icon = "cloudy"
	IconLightRainDay   Icon = "light_rain_day"
	IconLightRainNight Icon = "light_rain_night"
	IconRain           Icon = "rain"
	IconStorm          Icon = "storm"

	// IconNoData marks a (location, hour) pair with no sample.
	IconNoData Icon = "no_data"
)

var iconGlyphs = map[Icon]string{
	IconClearDay:       "☀️",
	IconClearNight:     "🌙",
	IconPartlyDay:      "🌤️",
	IconPartlyNight:    "🌙☁️",
	IconCloudy:         "☁️",
	IconLightRainDay:   "🌦️",
	IconLightRainNight: "🌧️",
	IconRain:           "🌧️",
	IconStorm:          "⛈️",
	IconNoData:         "—",
}

// Glyph returns the display glyph for the icon.
func (i Icon) Glyph() string {
	if g, ok := iconGlyphs[i]; ok {
		return g
	}
	return iconGlyphs[IconNoData]
}

// isDayHour reports whether a local hour falls in the daytime band [6, 18).
func isDayHour(hour int) bool {
	return hour >= dayStartHour && hour < dayEndHour
}

// ClassifyIcon selects the icon for an hour from precipitation (mm), cloud
// cover (%) and the local hour of day. The decision tree is fixed:
// any precipitation picks a rain icon by intensity, otherwise cloud cover
// picks clear / partly / cloudy, with day and night variants where they
// exist.
func ClassifyIcon(precipMM, cloudPct float64, hour int) Icon {
	day := isDayHour(hour)

	if precipMM > 0 {
		switch {
		case precipMM <= lightRainMaxMM:
			if day {
				return IconLightRainDay
			}
			return IconLightRainNight
		case precipMM <= moderateRainMaxMM:
			return IconRain
		default:
			return IconStorm
		}
	}

	switch {
	case cloudPct <= clearMaxPct:
		if day {
			return IconClearDay
		}
		return IconClearNight
	case cloudPct <= partlyMaxPct:
		if day {
			return IconPartlyDay
		}
		return IconPartlyNight
	default:
		return IconCloudy
	}
}
