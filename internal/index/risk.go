package index

import "fmt"

// RiskLevel is the 4-tier classification of the index score.
type RiskLevel string

// RiskColor is the RAG color mapped from the risk level.
type RiskColor string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskExtreme  RiskLevel = "EXTREME"

	ColorGreen  RiskColor = "GREEN"
	ColorAmber  RiskColor = "AMBER"
	ColorOrange RiskColor = "ORANGE"
	ColorRed    RiskColor = "RED"
)

// RiskBucket is one row of the canonical threshold table.
type RiskBucket struct {
	Min   float64 // inclusive lower bound
	Level RiskLevel
	Color RiskColor
}

// RiskBuckets is the single canonical threshold table. Every layer
// (calculator, API handlers, email templates) classifies through it;
// nothing re-derives its own bucket edges.
var RiskBuckets = []RiskBucket{
	{Min: 81, Level: RiskExtreme, Color: ColorRed},
	{Min: 61, Level: RiskHigh, Color: ColorOrange},
	{Min: 41, Level: RiskModerate, Color: ColorAmber},
	{Min: 0, Level: RiskLow, Color: ColorGreen},
}

// Classify maps a score onto the canonical risk buckets.
func Classify(score float64) (RiskLevel, RiskColor) {
	for _, b := range RiskBuckets {
		if score >= b.Min {
			return b.Level, b.Color
		}
	}
	// Scores below 0 are clamped into the lowest bucket
	return RiskLow, ColorGreen
}

// Hex returns the color value used by email templates.
func (c RiskColor) Hex() string {
	switch c {
	case ColorRed:
		return "#DC2626"
	case ColorOrange:
		return "#EA580C"
	case ColorAmber:
		return "#D97706"
	default:
		return "#16A34A"
	}
}

// Describe returns the human-readable risk summary for a score.
func Describe(score float64, level RiskLevel) string {
	switch level {
	case RiskExtreme:
		return fmt.Sprintf("AI Bubble Index at %.2f/100 signals EXTREME risk. Multiple indicators show severe overvaluation, concentrated market structure, and unsustainable financing patterns. Consider defensive positioning.", score)
	case RiskHigh:
		return fmt.Sprintf("AI Bubble Index at %.2f/100 signals HIGH risk. Valuations are stretched, market concentration is elevated, and circular financing is accelerating. Monitor closely for correction signals.", score)
	case RiskModerate:
		return fmt.Sprintf("AI Bubble Index at %.2f/100 signals MODERATE risk. Some valuation concerns and market concentration exist, but fundamentals remain relatively supportive. Maintain balanced approach.", score)
	default:
		return fmt.Sprintf("AI Bubble Index at %.2f/100 signals LOW risk. Market metrics are within historical norms, valuations are reasonable, and financing patterns appear sustainable. Favorable environment for AI investments.", score)
	}
}
