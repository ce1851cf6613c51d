package index

import (
	"time"
)

// Key identifies one of the ten bubble indicators.
type Key string

const (
	KeyMag7Divergence     Key = "magnificent7Divergence"
	KeySP500Concentration Key = "sp500Concentration"
	KeyCAPERatio          Key = "capeRatio"
	KeyVCFunding          Key = "vcFunding"
	KeySearchInterest     Key = "searchInterest"
	KeyAISpending         Key = "aiSpending"
	KeyGPUSpending        Key = "gpuSpending"
	KeyCircularFinancing  Key = "circularFinancing"
	KeyDebtRatios         Key = "debtRatios"
	KeyFedIndicator       Key = "fedIndicator"
)

// Keys lists all indicators in display order.
var Keys = []Key{
	KeyMag7Divergence,
	KeySP500Concentration,
	KeyCAPERatio,
	KeyCircularFinancing,
	KeyDebtRatios,
	KeyGPUSpending,
	KeyAISpending,
	KeyVCFunding,
	KeyFedIndicator,
	KeySearchInterest,
}

// displayNames maps indicator keys to human-readable names.
var displayNames = map[Key]string{
	KeyMag7Divergence:     "Magnificent 7 Divergence",
	KeySP500Concentration: "S&P 500 Concentration",
	KeyCAPERatio:          "Shiller CAPE Ratio",
	KeyCircularFinancing:  "Circular Financing Flow",
	KeyDebtRatios:         "Debt-to-Equity Ratios",
	KeyGPUSpending:        "GPU Infrastructure Spending",
	KeyAISpending:         "Corporate AI Spending",
	KeyVCFunding:          "Venture Capital Funding",
	KeyFedIndicator:       "Richmond Fed Indicator",
	KeySearchInterest:     "Google Search Interest",
}

// DisplayName returns the human-readable name for a metric key.
func DisplayName(key Key) string {
	if name, ok := displayNames[key]; ok {
		return name
	}
	return string(key)
}

// Metric is one indicator reading from a single aggregation run.
// Immutable once constructed.
type Metric struct {
	Raw         *float64           `json:"raw"`
	Normalized  float64            `json:"normalized"`
	Unit        string             `json:"unit"`
	Source      string             `json:"source"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Error       string             `json:"error,omitempty"`
	Excluded    bool               `json:"excluded,omitempty"`
	Detail      map[string]float64 `json:"detail,omitempty"`
}

// Snapshot is the complete set of ten metrics from one aggregation run.
// Invariant: Data contains exactly the keys in Keys; a failed fetch is
// represented by a fallback or excluded metric, never a missing key.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Data      map[Key]Metric `json:"data"`
}

// FailedKeys returns the keys whose fetch failed this run.
func (s *Snapshot) FailedKeys() []Key {
	var failed []Key
	for _, key := range Keys {
		if m, ok := s.Data[key]; ok && m.Error != "" {
			failed = append(failed, key)
		}
	}
	return failed
}

// Trend describes the index movement versus the previous day.
type Trend struct {
	Direction string  `json:"direction"` // up, down, neutral
	Change    float64 `json:"change"`
	Period    string  `json:"period"`
}

// NeutralTrend is the trend used when no prior snapshot exists.
func NeutralTrend() Trend {
	return Trend{Direction: "neutral", Change: 0, Period: "24h"}
}

// TrendBetween computes the day-over-day trend from the previous score.
func TrendBetween(previous, current float64) Trend {
	change := round2(current - previous)
	switch {
	case change > 0:
		return Trend{Direction: "up", Change: change, Period: "24h"}
	case change < 0:
		return Trend{Direction: "down", Change: -change, Period: "24h"}
	default:
		return Trend{Direction: "neutral", Change: 0, Period: "24h"}
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
