package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWithAll(normalized float64) *Snapshot {
	s := &Snapshot{
		Timestamp: time.Now().UTC(),
		Data:      make(map[Key]Metric, len(Keys)),
	}
	for _, key := range Keys {
		s.Data[key] = Metric{
			Raw:         floatPtr(normalized),
			Normalized:  normalized,
			Source:      "test",
			LastUpdated: time.Now().UTC(),
		}
	}
	return s
}

func TestValidateWeights(t *testing.T) {
	require.NoError(t, ValidateWeights())

	total := 0.0
	for _, w := range Weights {
		total += w
	}
	assert.InDelta(t, 100.0, total, 0.01)
	assert.Len(t, Weights, len(Keys))
}

func TestValidateWeightsRejectsBadTotal(t *testing.T) {
	bad := map[Key]float64{
		KeyMag7Divergence: 50,
		KeyCAPERatio:      49,
	}
	assert.Error(t, validateWeights(bad))
}

func TestCalculateUniformValues(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantScore float64
		wantLevel RiskLevel
		wantColor RiskColor
	}{
		{"all zero", 0, 0, RiskLow, ColorGreen},
		{"all fifty", 50, 50, RiskModerate, ColorAmber},
		{"all seventy", 70, 70, RiskHigh, ColorOrange},
		{"all hundred", 100, 100, RiskExtreme, ColorRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Calculate(snapshotWithAll(tt.value))

			assert.InDelta(t, tt.wantScore, result.Score, 0.01)
			assert.Equal(t, tt.wantLevel, result.RiskLevel)
			assert.Equal(t, tt.wantColor, result.RiskColor)
			assert.Len(t, result.Breakdown, len(Keys))
		})
	}
}

func TestCalculateRiskBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{40.99, RiskLow},
		{41, RiskModerate},
		{60.99, RiskModerate},
		{61, RiskHigh},
		{80.99, RiskHigh},
		{81, RiskExtreme},
		{100, RiskExtreme},
	}

	for _, tt := range tests {
		level, _ := Classify(tt.score)
		assert.Equal(t, tt.want, level, "score %.2f", tt.score)
	}
}

func TestCalculateBreakdownContributions(t *testing.T) {
	result := Calculate(snapshotWithAll(80))

	// Each contribution is value * weight / 100 and they sum to the score
	sum := 0.0
	for key, c := range result.Breakdown {
		assert.InDelta(t, 80*Weights[key]/100, c.Contribution, 0.01)
		sum += c.Contribution
	}
	assert.InDelta(t, result.Score, sum, 0.05)
}

func TestCalculateMissingMetricDefaultsToNeutral(t *testing.T) {
	s := snapshotWithAll(100)
	delete(s.Data, KeySearchInterest)

	result := Calculate(s)

	// The missing metric counts as 50, pulling the score below 100.
	want := (100*(100-Weights[KeySearchInterest]) + 50*Weights[KeySearchInterest]) / 100
	assert.InDelta(t, want, result.Score, 0.01)
	assert.InDelta(t, 50, result.Breakdown[KeySearchInterest].Value, 0.01)
}

func TestCalculateExcludedMetricRenormalizes(t *testing.T) {
	s := snapshotWithAll(100)
	s.Data[KeySearchInterest] = Metric{
		Excluded: true,
		Error:    "source down",
	}

	result := Calculate(s)

	// Remaining metrics all read 100, so the renormalized score stays 100.
	assert.InDelta(t, 100, result.Score, 0.01)
	_, present := result.Breakdown[KeySearchInterest]
	assert.False(t, present, "excluded metric should not appear in breakdown")
}

func TestCalculateAllExcluded(t *testing.T) {
	s := snapshotWithAll(100)
	for _, key := range Keys {
		s.Data[key] = Metric{Excluded: true}
	}

	result := Calculate(s)
	assert.InDelta(t, 50, result.Score, 0.01)
}

func TestTopRiskFactors(t *testing.T) {
	s := snapshotWithAll(40)
	s.Data[KeyCAPERatio] = Metric{Normalized: 95}
	s.Data[KeyGPUSpending] = Metric{Normalized: 90}
	s.Data[KeyFedIndicator] = Metric{Normalized: 85}

	result := Calculate(s)
	top := TopRiskFactors(result, 3)

	require.Len(t, top, 3)
	assert.Equal(t, KeyCAPERatio, top[0].Key)
	assert.Equal(t, KeyGPUSpending, top[1].Key)
	assert.Equal(t, KeyFedIndicator, top[2].Key)
	assert.Equal(t, DisplayName(KeyCAPERatio), top[0].Name)
}

func TestTopRiskFactorsClampsN(t *testing.T) {
	result := Calculate(snapshotWithAll(50))
	top := TopRiskFactors(result, 50)
	assert.Len(t, top, len(Keys))
}

func TestDescribeMatchesLevel(t *testing.T) {
	for _, score := range []float64{10, 50, 70, 90} {
		level, _ := Classify(score)
		desc := Describe(score, level)
		assert.NotEmpty(t, desc)
	}
}
