package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeClampsBothEnds(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		raw  float64
		want float64
	}{
		{"cape below floor", KeyCAPERatio, 10, 0},
		{"cape at floor", KeyCAPERatio, 15, 0},
		{"cape midpoint", KeyCAPERatio, 30, 50},
		{"cape at ceiling", KeyCAPERatio, 45, 100},
		{"cape above ceiling", KeyCAPERatio, 60, 100},
		{"divergence zero floor", KeyMag7Divergence, 0, 0},
		{"divergence midpoint", KeyMag7Divergence, 7.5, 50},
		{"concentration below floor", KeySP500Concentration, 10, 0},
		{"debt midpoint", KeyDebtRatios, 1.5, 50},
		{"search interest passthrough", KeySearchInterest, 87, 87},
		{"fed above ceiling", KeyFedIndicator, 3.0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, normalize(tt.key, tt.raw), 0.01)
		})
	}
}

func TestNormalizeCoversAllKeys(t *testing.T) {
	for _, key := range Keys {
		_, ok := normalizationBounds[key]
		assert.True(t, ok, "missing bounds for %s", key)
	}
}

func TestRiskColorHex(t *testing.T) {
	assert.Equal(t, "#DC2626", ColorRed.Hex())
	assert.Equal(t, "#EA580C", ColorOrange.Hex())
	assert.Equal(t, "#D97706", ColorAmber.Hex())
	assert.Equal(t, "#16A34A", ColorGreen.Hex())
}
