package newsletter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibubble/analytics/backend/internal/index"
)

func testResult(t *testing.T, normalized float64) *index.Result {
	t.Helper()

	snap := &index.Snapshot{
		Timestamp: time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC),
		Data:      make(map[index.Key]index.Metric),
	}
	for _, key := range index.Keys {
		snap.Data[key] = index.Metric{Normalized: normalized}
	}
	return index.Calculate(snap)
}

func TestRenderDaily(t *testing.T) {
	result := testResult(t, 70)
	data := BuildDailyEmailData(result, "https://aibubble.example/unsubscribe")

	html, text, err := RenderDaily(data)
	require.NoError(t, err)

	assert.Contains(t, html, "70.0")
	assert.Contains(t, html, "HIGH RISK")
	assert.Contains(t, html, "#EA580C")
	assert.Contains(t, html, "https://aibubble.example/unsubscribe")
	assert.Contains(t, html, "Top Risk Factors")
	// Every metric shows up in the table
	for _, key := range index.Keys {
		assert.Contains(t, html, index.DisplayName(key))
	}

	assert.Contains(t, text, "70.0")
	assert.Contains(t, text, "HIGH RISK")
	assert.Contains(t, text, "https://aibubble.example/unsubscribe")
	assert.NotContains(t, text, "<html>")
}

func TestBuildDailyEmailData(t *testing.T) {
	result := testResult(t, 85)
	data := BuildDailyEmailData(result, "https://aibubble.example/unsubscribe")

	assert.Equal(t, "August 30, 2026", data.Date)
	assert.Equal(t, "EXTREME", data.RiskLevel)
	assert.Equal(t, "#DC2626", data.RiskHex)
	assert.Len(t, data.TopFactors, 3)
	assert.Len(t, data.Metrics, len(index.Keys))

	// Metrics come sorted by contribution, highest first
	for i := 1; i < len(data.Metrics); i++ {
		assert.GreaterOrEqual(t, data.Metrics[i-1].Contribution, data.Metrics[i].Contribution)
	}
}

func TestDailySubject(t *testing.T) {
	subject := DailySubject(72.4, index.RiskHigh)
	assert.Equal(t, "AI Bubble Index: 72/100 (HIGH) - Daily Briefing", subject)
}

func TestRenderConfirmation(t *testing.T) {
	html, text, err := RenderConfirmation("https://api.aibubble.example/api/newsletter/confirm?token=abc123")
	require.NoError(t, err)

	assert.Contains(t, html, "token=abc123")
	assert.Contains(t, text, "token=abc123")
	assert.Contains(t, html, "Confirm")
}

func TestRenderWelcome(t *testing.T) {
	html, text, err := RenderWelcome("https://aibubble.example/unsubscribe")
	require.NoError(t, err)

	assert.Contains(t, html, "https://aibubble.example/unsubscribe")
	assert.Contains(t, text, "https://aibubble.example/unsubscribe")
}
