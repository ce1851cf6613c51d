package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibubble/analytics/backend/internal/external/newsapi"
	"github.com/aibubble/analytics/backend/internal/external/sendgrid"
	"github.com/aibubble/analytics/backend/internal/index"
	"github.com/aibubble/analytics/backend/internal/newsletter"
	"github.com/aibubble/analytics/backend/internal/scheduler"
	"github.com/aibubble/analytics/backend/internal/scheduler/jobs"
	"github.com/aibubble/analytics/backend/internal/snapshot"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/logger"
	"github.com/aibubble/analytics/backend/pkg/redis"
)

// fakeSnapshots serves canned snapshot rows
type fakeSnapshots struct {
	latest *snapshot.Daily
	rng    []snapshot.Daily
}

func (f *fakeSnapshots) GetLatest(ctx context.Context) (*snapshot.Daily, error) {
	if f.latest == nil {
		return nil, snapshot.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeSnapshots) GetRange(ctx context.Context, start, end time.Time) ([]snapshot.Daily, error) {
	return f.rng, nil
}

// fakeStore is an in-memory newsletter.Store
type fakeStore struct {
	byEmail map[string]*newsletter.Subscriber
	logs    []newsletter.EmailLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{byEmail: make(map[string]*newsletter.Subscriber)}
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (*newsletter.Subscriber, error) {
	sub, ok := f.byEmail[email]
	if !ok {
		return nil, newsletter.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeStore) GetByToken(ctx context.Context, token string) (*newsletter.Subscriber, error) {
	for _, sub := range f.byEmail {
		if sub.ConfirmToken == token && sub.Status == newsletter.StatusPending {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, newsletter.ErrNotFound
}

func (f *fakeStore) Create(ctx context.Context, sub *newsletter.Subscriber) error {
	copied := *sub
	f.byEmail[sub.Email] = &copied
	return nil
}

func (f *fakeStore) Update(ctx context.Context, sub *newsletter.Subscriber) error {
	for email, existing := range f.byEmail {
		if existing.ID == sub.ID {
			copied := *sub
			f.byEmail[email] = &copied
			return nil
		}
	}
	return newsletter.ErrNotFound
}

func (f *fakeStore) ListActive(ctx context.Context, freq newsletter.Frequency) ([]newsletter.Subscriber, error) {
	return nil, nil
}

func (f *fakeStore) LogEmails(ctx context.Context, logs []newsletter.EmailLog) error {
	f.logs = append(f.logs, logs...)
	return nil
}

type nopMailer struct{}

func (nopMailer) Send(ctx context.Context, msg sendgrid.Message) error { return nil }
func (nopMailer) SendBatch(ctx context.Context, subject, htmlBody, textBody string, recipients []sendgrid.Recipient) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:         "development",
		FrontendURL: "https://aibubble.example",
		APIBaseURL:  "https://api.aibubble.example",
		CronSecret:  "cron-secret",
		AdminSecret: "admin-secret",
		Metrics: config.MetricsConfig{
			FailurePolicy: config.PolicyDilute,
			FetchTimeout:  5 * time.Second,
			CacheTTL:      time.Minute,
		},
	}
}

// fakeNews serves canned sentiment and headlines
type fakeNews struct {
	sentiment *newsapi.Sentiment
	articles  []newsapi.Article
	err       error
}

func (f *fakeNews) GetAIBubbleSentiment(ctx context.Context) (*newsapi.Sentiment, error) {
	return f.sentiment, f.err
}

func (f *fakeNews) GetAINews(ctx context.Context, pageSize int) ([]newsapi.Article, error) {
	return f.articles, f.err
}

func newMetricsHandler(t *testing.T, snapshots SnapshotReader) *MetricsHandler {
	t.Helper()
	return newMetricsHandlerWithNews(t, snapshots, nil)
}

func newMetricsHandlerWithNews(t *testing.T, snapshots SnapshotReader, news NewsSource) *MetricsHandler {
	t.Helper()

	cfg := testConfig()
	agg := index.NewAggregator(cfg.Metrics, nil, nil, nil, logger.NewNop())
	cache := redis.NewCache(redis.NewDisabled(), "test")
	return NewMetricsHandler(agg, snapshots, news, cache, cfg, logger.NewNop())
}

func TestGetBubbleIndexFromSnapshot(t *testing.T) {
	date := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	h := newMetricsHandler(t, &fakeSnapshots{latest: &snapshot.Daily{
		Date:           date,
		Score:          72.4,
		RiskLevel:      index.RiskHigh,
		RiskColor:      index.ColorOrange,
		TrendDirection: "up",
		TrendChange:    3.1,
	}})

	rec := httptest.NewRecorder()
	h.GetBubbleIndex(rec, httptest.NewRequest("GET", "/api/metrics/bubble-index", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp BubbleIndexResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.InDelta(t, 72.4, resp.Score, 0.001)
	assert.Equal(t, index.RiskHigh, resp.RiskLevel)
	assert.Equal(t, "up", resp.Trend.Direction)
	assert.Equal(t, "snapshot", resp.Source)
	assert.NotEmpty(t, resp.RiskDescription)
}

func TestGetBubbleIndexFallsBackToLive(t *testing.T) {
	h := newMetricsHandler(t, &fakeSnapshots{})

	rec := httptest.NewRecorder()
	h.GetBubbleIndex(rec, httptest.NewRequest("GET", "/api/metrics/bubble-index", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp BubbleIndexResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "live", resp.Source)
	assert.Greater(t, resp.Score, 0.0)
	assert.Len(t, resp.Breakdown, 10)
}

func TestGetAllMetricsLive(t *testing.T) {
	h := newMetricsHandler(t, &fakeSnapshots{})

	rec := httptest.NewRecorder()
	h.GetAllMetrics(rec, httptest.NewRequest("GET", "/api/metrics/all", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AllMetricsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Metrics, 10)
}

func TestGetHistoryValidatesDays(t *testing.T) {
	h := newMetricsHandler(t, &fakeSnapshots{})

	for _, query := range []string{"days=0", "days=366", "days=abc"} {
		rec := httptest.NewRecorder()
		h.GetHistory(rec, httptest.NewRequest("GET", "/api/metrics/history?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
	}
}

func TestGetHistory(t *testing.T) {
	h := newMetricsHandler(t, &fakeSnapshots{rng: []snapshot.Daily{
		{Date: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), Score: 68.2, RiskLevel: index.RiskHigh},
		{Date: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), Score: 72.4, RiskLevel: index.RiskHigh},
	}})

	rec := httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest("GET", "/api/metrics/history?days=7", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		History []HistoryPoint `json:"history"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.History, 2)
	assert.Equal(t, "2026-08-28", resp.History[0].Date)
	assert.InDelta(t, 68.2, resp.History[0].Score, 0.001)
}

func TestGetSentiment(t *testing.T) {
	h := newMetricsHandlerWithNews(t, &fakeSnapshots{}, &fakeNews{
		sentiment: &newsapi.Sentiment{Score: -24, ArticleCount: 50, NegativeCount: 18, PositiveCount: 6},
		articles:  []newsapi.Article{{Title: "AI bubble fears grow", Source: "Example Wire"}},
	})

	rec := httptest.NewRecorder()
	h.GetSentiment(rec, httptest.NewRequest("GET", "/api/metrics/sentiment", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SentimentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Sentiment)
	assert.InDelta(t, -24, resp.Sentiment.Score, 0.001)
	require.Len(t, resp.Headlines, 1)
	assert.Equal(t, "AI bubble fears grow", resp.Headlines[0].Title)
}

func TestGetSentimentNotConfigured(t *testing.T) {
	h := newMetricsHandler(t, &fakeSnapshots{})

	rec := httptest.NewRecorder()
	h.GetSentiment(rec, httptest.NewRequest("GET", "/api/metrics/sentiment", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func newNewsletterHandler(t *testing.T) (*NewsletterHandler, *fakeStore) {
	t.Helper()

	cfg := testConfig()
	store := newFakeStore()
	svc := newsletter.NewService(cfg, store, nopMailer{}, logger.NewNop())
	return NewNewsletterHandler(svc, cfg, logger.NewNop()), store
}

func TestSubscribeEndpoint(t *testing.T) {
	h, store := newNewsletterHandler(t)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"email": "Reader@Example.com"}`)
	h.Subscribe(rec, httptest.NewRequest("POST", "/api/newsletter/subscribe", body))

	assert.Equal(t, http.StatusCreated, rec.Code)

	// Addresses are normalized to lower case
	sub, err := store.GetByEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, newsletter.StatusPending, sub.Status)
}

func TestSubscribeEndpointCapturesMetadata(t *testing.T) {
	h, store := newNewsletterHandler(t)

	req := httptest.NewRequest("POST", "/api/newsletter/subscribe",
		strings.NewReader(`{"email": "reader@example.com"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "test-browser/1.0")
	req.Header.Set("Referer", "https://aibubble.example/landing")

	rec := httptest.NewRecorder()
	h.Subscribe(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	sub, err := store.GetByEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", sub.Metadata.IP)
	assert.Equal(t, "test-browser/1.0", sub.Metadata.UserAgent)
	assert.Equal(t, "https://aibubble.example/landing", sub.Metadata.Referrer)
}

func TestSubscribeEndpointInvalidEmail(t *testing.T) {
	h, _ := newNewsletterHandler(t)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"email": "not-an-email"}`)
	h.Subscribe(rec, httptest.NewRequest("POST", "/api/newsletter/subscribe", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribeEndpointConflict(t *testing.T) {
	h, store := newNewsletterHandler(t)

	rec := httptest.NewRecorder()
	h.Subscribe(rec, httptest.NewRequest("POST", "/api/newsletter/subscribe",
		strings.NewReader(`{"email": "reader@example.com"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Activate, then subscribe again
	sub, err := store.GetByEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)
	sub.Status = newsletter.StatusActive
	require.NoError(t, store.Update(context.Background(), sub))

	rec = httptest.NewRecorder()
	h.Subscribe(rec, httptest.NewRequest("POST", "/api/newsletter/subscribe",
		strings.NewReader(`{"email": "reader@example.com"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubscribeEndpointResendsForPending(t *testing.T) {
	h, _ := newNewsletterHandler(t)

	rec := httptest.NewRecorder()
	h.Subscribe(rec, httptest.NewRequest("POST", "/api/newsletter/subscribe",
		strings.NewReader(`{"email": "reader@example.com"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.Subscribe(rec, httptest.NewRequest("POST", "/api/newsletter/subscribe",
		strings.NewReader(`{"email": "reader@example.com"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmEndpointRedirects(t *testing.T) {
	h, store := newNewsletterHandler(t)

	rec := httptest.NewRecorder()
	h.Subscribe(rec, httptest.NewRequest("POST", "/api/newsletter/subscribe",
		strings.NewReader(`{"email": "reader@example.com"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	sub, err := store.GetByEmail(context.Background(), "reader@example.com")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest("GET", "/api/newsletter/confirm?token="+sub.ConfirmToken, nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "confirmed=true")
	assert.Contains(t, location, "reader%40example.com")
}

func TestConfirmEndpointInvalidToken(t *testing.T) {
	h, _ := newNewsletterHandler(t)

	rec := httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest("GET", "/api/newsletter/confirm?token=bogus", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "confirmed=false")
}

func TestUnsubscribeEndpointIdempotent(t *testing.T) {
	h, _ := newNewsletterHandler(t)

	rec := httptest.NewRecorder()
	h.Unsubscribe(rec, httptest.NewRequest("POST", "/api/newsletter/unsubscribe",
		strings.NewReader(`{"email": "ghost@example.com"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCronEndpointRequiresSecret(t *testing.T) {
	cfg := testConfig()
	sched := scheduler.New(logger.NewNop())
	h := NewCronHandler(sched, &jobs.DailyNewsletterJob{}, cfg, logger.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/cron/daily-newsletter", nil)
	h.RunDailyNewsletter(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/cron/daily-newsletter", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	h.RunDailyNewsletter(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTestNewsletterGatedInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	sched := scheduler.New(logger.NewNop())
	h := NewCronHandler(sched, &jobs.DailyNewsletterJob{}, cfg, logger.NewNop())

	rec := httptest.NewRecorder()
	h.RunTestNewsletter(rec, httptest.NewRequest("POST", "/api/cron/test-newsletter", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.RunTestNewsletter(rec, httptest.NewRequest("POST", "/api/cron/test-newsletter?admin_secret=wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronStatusEndpoint(t *testing.T) {
	cfg := testConfig()
	sched := scheduler.New(logger.NewNop())
	h := NewCronHandler(sched, &jobs.DailyNewsletterJob{}, cfg, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest("GET", "/api/cron/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}
