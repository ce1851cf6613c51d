package newsletter

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func newTestSubscriber(email string) *Subscriber {
	return &Subscriber{
		ID:           uuid.New(),
		Email:        email,
		Status:       StatusPending,
		Frequency:    FrequencyDaily,
		ConfirmToken: uuid.NewString(),
		Metadata:     Meta{IP: "203.0.113.7", UserAgent: "test-browser/1.0"},
		CreatedAt:    time.Now().UTC(),
	}
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	email := fmt.Sprintf("it-%s@example.com", uuid.NewString()[:8])
	sub := newTestSubscriber(email)
	require.NoError(t, repo.Create(ctx, sub))

	got, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, sub.Metadata, got.Metadata)

	byToken, err := repo.GetByToken(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byToken.ID)

	now := time.Now().UTC()
	got.Status = StatusActive
	got.ConfirmToken = ""
	got.ConfirmedAt = &now
	require.NoError(t, repo.Update(ctx, got))

	// Confirmed subscribers are no longer reachable by token
	_, err = repo.GetByToken(ctx, sub.ConfirmToken)
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := repo.ListActive(ctx, FrequencyDaily)
	require.NoError(t, err)
	found := false
	for _, s := range active {
		if s.Email == email {
			found = true
		}
	}
	assert.True(t, found, "confirmed subscriber should appear in active list")
}

func TestRepositoryNotFound(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	missing := newTestSubscriber("ghost-" + uuid.NewString()[:8] + "@example.com")
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrNotFound)
}

func TestRepositoryLogEmails(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	sub := newTestSubscriber(fmt.Sprintf("log-%s@example.com", uuid.NewString()[:8]))
	require.NoError(t, repo.Create(ctx, sub))

	logs := []EmailLog{
		{SubscriberID: sub.ID, EmailType: EmailTypeConfirmation, Status: "sent", SentAt: time.Now().UTC()},
		{SubscriberID: sub.ID, EmailType: EmailTypeDaily, Status: "failed", Error: "provider timeout", SentAt: time.Now().UTC()},
	}
	require.NoError(t, repo.LogEmails(ctx, logs))
}
