package matrix

// Tier buckets a rain probability into a display badge.
type Tier string

const (
	TierNone     Tier = "none"
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
)

// Badge colors per tier.
var tierColors = map[Tier]RGB{
	TierNone:     {0xFF, 0xFF, 0xFF},
	TierLow:      {0xD1, 0xE7, 0xDD},
	TierModerate: {0xFF, 0xF3, 0xCD},
	TierHigh:     {0xF8, 0xD7, 0xDA},
}

// Color returns the fixed badge color for the tier.
func (t Tier) Color() RGB {
	if c, ok := tierColors[t]; ok {
		return c
	}
	return tierColors[TierNone]
}

// TierFor buckets a probability-of-precipitation percentage.
// Boundaries: 30 and 50 are "low", 51 and 80 are "moderate", 81 is "high".
func TierFor(popPct int) Tier {
	switch {
	case popPct > 80:
		return TierHigh
	case popPct > 50:
		return TierModerate
	case popPct >= 30:
		return TierLow
	default:
		return TierNone
	}
}
