package index

import "math"

// Per-metric normalization bounds. Each raw value is rescaled linearly
// so that floor maps to 0 and ceiling maps to 100, clamped to [0,100].
var normalizationBounds = map[Key]struct{ Floor, Ceiling float64 }{
	KeyMag7Divergence:     {0, 15},    // percentage points of weight vs earnings share
	KeySP500Concentration: {15, 40},   // percent of index in top 5
	KeyCAPERatio:          {15, 45},   // dot-com peak was ~45
	KeyVCFunding:          {0, 200},   // YoY growth percent
	KeyAISpending:         {0, 100},   // YoY growth percent
	KeyGPUSpending:        {0, 200},   // YoY growth percent
	KeyCircularFinancing:  {20, 80},   // percent of AI investment that is circular
	KeyDebtRatios:         {0.5, 2.5}, // debt-to-equity ratio
	KeyFedIndicator:       {0, 2.5},   // Richmond Fed indicator scale
	KeySearchInterest:     {0, 100},   // already a 0-100 interest score
}

// normalize rescales a raw value onto the metric's 0-100 scale.
func normalize(key Key, raw float64) float64 {
	b, ok := normalizationBounds[key]
	if !ok || b.Ceiling == b.Floor {
		return 0
	}
	v := (raw - b.Floor) / (b.Ceiling - b.Floor) * 100
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
