package predictor

import "planogram/internal/planogram"

// Confidence tiers. The score says how much of a layout's occupied slots are
// backed by real history, not how good the layout is.
const (
	ConfidenceHigh    = 0.85
	ConfidenceMedium  = 0.65
	ConfidenceLow     = 0.45
	ConfidenceNeutral = 0.5
)

// ConfidenceScore weighs each occupied slot by the depth of its product's
// history: 1.0 for 30+ days, 0.5 for 7+, else 0. The weighted ratio maps to a
// tier. An empty layout has nothing to grade and scores neutral.
func ConfidenceScore(snap planogram.HistorySnapshot, layout planogram.Layout) float64 {
	occupied := 0
	weights := 0.0
	for _, slot := range layout.Occupied() {
		occupied++
		switch days := snap.Days(slot.ProductID); {
		case days >= 30:
			weights += 1.0
		case days >= 7:
			weights += 0.5
		}
	}
	if occupied == 0 {
		return ConfidenceNeutral
	}
	switch ratio := weights / float64(occupied); {
	case ratio >= 0.8:
		return ConfidenceHigh
	case ratio >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func intervalMargin(confidence float64) float64 {
	switch {
	case confidence >= ConfidenceHigh:
		return 0.10
	case confidence >= ConfidenceMedium:
		return 0.20
	default:
		return 0.30
	}
}
