package snapshot

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibubble/analytics/backend/internal/index"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := &config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}}
	db, err := database.New(cfg)
	require.NoError(t, err, "database connection failed")
	t.Cleanup(db.Close)
	return db
}

func sampleDaily(date time.Time, score float64) *Daily {
	snap := &index.Snapshot{
		Timestamp: date,
		Data:      make(map[index.Key]index.Metric),
	}
	for _, key := range index.Keys {
		snap.Data[key] = index.Metric{Normalized: score}
	}
	return FromResult(date, index.Calculate(snap), snap.Data)
}

func TestUpsertAndGetByDate(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	date := time.Date(2001, 3, 15, 0, 0, 0, 0, time.UTC)
	daily := sampleDaily(date, 70)
	require.NoError(t, repo.Upsert(ctx, daily))

	got, err := repo.GetByDate(ctx, date)
	require.NoError(t, err)
	assert.InDelta(t, daily.Score, got.Score, 0.001)
	assert.Equal(t, daily.RiskLevel, got.RiskLevel)
	assert.Len(t, got.Metrics, len(index.Keys))
	assert.Len(t, got.Breakdown, len(index.Keys))

	// Re-running the same day replaces the row
	updated := sampleDaily(date, 90)
	require.NoError(t, repo.Upsert(ctx, updated))

	got, err = repo.GetByDate(ctx, date)
	require.NoError(t, err)
	assert.InDelta(t, 90, got.Score, 0.001)
}

func TestGetPrevious(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	d1 := time.Date(2001, 4, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2001, 4, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2001, 4, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, sampleDaily(d1, 40)))
	require.NoError(t, repo.Upsert(ctx, sampleDaily(d2, 50)))

	prev, err := repo.GetPrevious(ctx, d3)
	require.NoError(t, err)
	assert.Equal(t, d2.Format("2006-01-02"), prev.Date.Format("2006-01-02"))

	prev, err = repo.GetPrevious(ctx, d2)
	require.NoError(t, err)
	assert.Equal(t, d1.Format("2006-01-02"), prev.Date.Format("2006-01-02"))

	_, err = repo.GetPrevious(ctx, d1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRange(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	base := time.Date(2001, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Upsert(ctx, sampleDaily(base.AddDate(0, 0, i), float64(40+i))))
	}

	got, err := repo.GetRange(ctx, base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Before(got[1].Date), "range is oldest first")
}

func TestLogJobError(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.LogJobError(ctx, "daily_newsletter", assert.AnError))
}
