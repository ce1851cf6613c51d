package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrendBetween(t *testing.T) {
	tests := []struct {
		name          string
		previous      float64
		current       float64
		wantDirection string
		wantChange    float64
	}{
		{"up", 50, 57.3, "up", 7.3},
		{"down", 72.5, 68, "down", 4.5},
		{"unchanged", 64.2, 64.2, "neutral", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := TrendBetween(tt.previous, tt.current)

			assert.Equal(t, tt.wantDirection, trend.Direction)
			assert.InDelta(t, tt.wantChange, trend.Change, 0.001)
			assert.Equal(t, "24h", trend.Period)
		})
	}
}

func TestFailedKeys(t *testing.T) {
	s := snapshotWithAll(50)
	assert.Empty(t, s.FailedKeys())

	s.Data[KeyCAPERatio] = Metric{Normalized: 50, Error: "timeout"}
	s.Data[KeyVCFunding] = Metric{Excluded: true, Error: "timeout"}

	failed := s.FailedKeys()
	assert.Len(t, failed, 2)
	assert.Contains(t, failed, KeyCAPERatio)
	assert.Contains(t, failed, KeyVCFunding)
}

func TestDisplayNameKnowsEveryKey(t *testing.T) {
	for _, key := range Keys {
		assert.NotEmpty(t, DisplayName(key))
		assert.NotEqual(t, string(key), DisplayName(key))
	}
}
