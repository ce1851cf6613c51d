package index

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Weights assigns each indicator its share of the composite score.
// The table must sum to exactly 100; ValidateWeights enforces this at
// startup so Calculate never has to.
var Weights = map[Key]float64{
	KeyMag7Divergence:     15, // highest weight, direct valuation mismatch
	KeySP500Concentration: 12, // market concentration risk
	KeyCAPERatio:          13, // overall market valuation
	KeyCircularFinancing:  14, // core bubble mechanism
	KeyDebtRatios:         10, // financial stability risk
	KeyGPUSpending:        9,  // infrastructure investment pace
	KeyAISpending:         8,  // corporate commitment level
	KeyVCFunding:          8,  // startup ecosystem froth
	KeyFedIndicator:       7,  // institutional warning
	KeySearchInterest:     4,  // public sentiment, lagging
}

// ValidateWeights checks the weight table sums to 100. Call it once at
// process start; a failure is a programmer error, not a runtime condition.
func ValidateWeights() error {
	return validateWeights(Weights)
}

func validateWeights(weights map[Key]float64) error {
	var total float64
	for _, w := range weights {
		total += w
	}
	if math.Abs(total-100) > 0.01 {
		return fmt.Errorf("metric weights must sum to 100, got %g", total)
	}
	return nil
}

// Contribution is one metric's share of the composite score.
type Contribution struct {
	Value        float64  `json:"value"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
	Raw          *float64 `json:"raw"`
}

// Result is the computed AI Bubble Index for one snapshot.
type Result struct {
	Score           float64              `json:"score"`
	RiskLevel       RiskLevel            `json:"riskLevel"`
	RiskColor       RiskColor            `json:"riskColor"`
	RiskDescription string               `json:"riskDescription"`
	Trend           Trend                `json:"trend"`
	Breakdown       map[Key]Contribution `json:"breakdown"`
	Timestamp       time.Time            `json:"timestamp"`
}

// Calculate computes the weighted composite score for a snapshot.
// Pure function of its input: no I/O, no clock beyond the result stamp.
//
// Metrics missing from the snapshot count as neutral (50). Metrics
// marked excluded (failure policy "exclude") are skipped and the
// remaining weights are renormalized so the score still spans 0-100.
func Calculate(s *Snapshot) *Result {
	var weightedSum, activeWeight float64
	breakdown := make(map[Key]Contribution, len(Weights))

	for key, weight := range Weights {
		metric, ok := s.Data[key]
		if ok && metric.Excluded {
			continue
		}

		value := 50.0
		var raw *float64
		if ok {
			value = metric.Normalized
			raw = metric.Raw
		}

		contribution := value * weight / 100
		weightedSum += contribution
		activeWeight += weight

		breakdown[key] = Contribution{
			Value:        value,
			Weight:       weight,
			Contribution: contribution,
			Raw:          raw,
		}
	}

	score := 50.0
	if activeWeight > 0 {
		// Renormalize when excluded metrics removed part of the weight
		score = round2(weightedSum * 100 / activeWeight)
	}

	level, color := Classify(score)

	return &Result{
		Score:           score,
		RiskLevel:       level,
		RiskColor:       color,
		RiskDescription: Describe(score, level),
		Trend:           NeutralTrend(),
		Breakdown:       breakdown,
		Timestamp:       time.Now().UTC(),
	}
}

// RiskFactor is one entry of the top-contributors list used in emails.
type RiskFactor struct {
	Key          Key     `json:"key"`
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// TopRiskFactors returns the n metrics with the highest normalized values.
func TopRiskFactors(r *Result, n int) []RiskFactor {
	factors := make([]RiskFactor, 0, len(r.Breakdown))
	for key, c := range r.Breakdown {
		factors = append(factors, RiskFactor{
			Key:          key,
			Name:         DisplayName(key),
			Value:        c.Value,
			Contribution: c.Contribution,
		})
	}

	sort.Slice(factors, func(i, j int) bool {
		if factors[i].Value != factors[j].Value {
			return factors[i].Value > factors[j].Value
		}
		return factors[i].Key < factors[j].Key
	})

	if n > len(factors) {
		n = len(factors)
	}
	return factors[:n]
}
