package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aibubble/analytics/backend/internal/external/newsapi"
	"github.com/aibubble/analytics/backend/internal/index"
	"github.com/aibubble/analytics/backend/internal/snapshot"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/logger"
	"github.com/aibubble/analytics/backend/pkg/redis"
)

// SnapshotReader is the slice of snapshot persistence the metric
// endpoints read from
type SnapshotReader interface {
	GetLatest(ctx context.Context) (*snapshot.Daily, error)
	GetRange(ctx context.Context, start, end time.Time) ([]snapshot.Daily, error)
}

// NewsSource provides market sentiment derived from news coverage.
// Nil when NewsAPI is not configured.
type NewsSource interface {
	GetAIBubbleSentiment(ctx context.Context) (*newsapi.Sentiment, error)
	GetAINews(ctx context.Context, pageSize int) ([]newsapi.Article, error)
}

// MetricsHandler serves the index and metric endpoints
type MetricsHandler struct {
	aggregator *index.Aggregator
	snapshots  SnapshotReader
	news       NewsSource
	cache      *redis.Cache
	cacheTTL   time.Duration
	logger     *logger.Logger
}

// NewMetricsHandler creates a metrics handler
func NewMetricsHandler(
	agg *index.Aggregator,
	snapshots SnapshotReader,
	news NewsSource,
	cache *redis.Cache,
	cfg *config.Config,
	log *logger.Logger,
) *MetricsHandler {
	return &MetricsHandler{
		aggregator: agg,
		snapshots:  snapshots,
		news:       news,
		cache:      cache,
		cacheTTL:   cfg.Metrics.CacheTTL,
		logger:     log,
	}
}

// BubbleIndexResponse is the payload of GET /api/metrics/bubble-index
type BubbleIndexResponse struct {
	Score           float64                          `json:"score"`
	RiskLevel       index.RiskLevel                  `json:"riskLevel"`
	RiskColor       index.RiskColor                  `json:"riskColor"`
	RiskDescription string                           `json:"riskDescription"`
	Trend           index.Trend                      `json:"trend"`
	Breakdown       map[index.Key]index.Contribution `json:"breakdown"`
	AsOf            time.Time                        `json:"asOf"`
	Source          string                           `json:"source"` // snapshot or live
}

// GetBubbleIndex returns today's index score
// GET /api/metrics/bubble-index
func (h *MetricsHandler) GetBubbleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached BubbleIndexResponse
	if hit, err := h.cache.Get(ctx, redis.KeyBubbleIndex, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	var resp BubbleIndexResponse

	daily, err := h.snapshots.GetLatest(ctx)
	switch err {
	case nil:
		resp = BubbleIndexResponse{
			Score:           daily.Score,
			RiskLevel:       daily.RiskLevel,
			RiskColor:       daily.RiskColor,
			RiskDescription: index.Describe(daily.Score, daily.RiskLevel),
			Trend: index.Trend{
				Direction: daily.TrendDirection,
				Change:    daily.TrendChange,
				Period:    "24h",
			},
			Breakdown: daily.Breakdown,
			AsOf:      daily.Date,
			Source:    "snapshot",
		}

	case snapshot.ErrNotFound:
		// No pipeline run yet, calculate live
		result, liveErr := h.calculateLive(r)
		if liveErr != nil {
			h.logger.WithError(liveErr).Error("Failed to calculate live index")
			respondError(w, http.StatusInternalServerError, "Failed to calculate index")
			return
		}
		resp = BubbleIndexResponse{
			Score:           result.Score,
			RiskLevel:       result.RiskLevel,
			RiskColor:       result.RiskColor,
			RiskDescription: result.RiskDescription,
			Trend:           result.Trend,
			Breakdown:       result.Breakdown,
			AsOf:            result.Timestamp,
			Source:          "live",
		}

	default:
		h.logger.WithError(err).Error("Failed to load latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve index")
		return
	}

	if err := h.cache.Set(ctx, redis.KeyBubbleIndex, resp, h.cacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache bubble index")
	}
	respondJSON(w, http.StatusOK, resp)
}

// AllMetricsResponse is the payload of GET /api/metrics/all
type AllMetricsResponse struct {
	Metrics map[index.Key]index.Metric `json:"metrics"`
	AsOf    time.Time                  `json:"asOf"`
	Source  string                     `json:"source"`
}

// GetAllMetrics returns every underlying metric reading
// GET /api/metrics/all
func (h *MetricsHandler) GetAllMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached AllMetricsResponse
	if hit, err := h.cache.Get(ctx, redis.KeyAllMetrics, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	var resp AllMetricsResponse

	daily, err := h.snapshots.GetLatest(ctx)
	switch err {
	case nil:
		resp = AllMetricsResponse{Metrics: daily.Metrics, AsOf: daily.Date, Source: "snapshot"}

	case snapshot.ErrNotFound:
		snap, liveErr := h.aggregator.FetchAll(ctx)
		if liveErr != nil {
			h.logger.WithError(liveErr).Error("Failed to fetch metrics")
			respondError(w, http.StatusInternalServerError, "Failed to fetch metrics")
			return
		}
		resp = AllMetricsResponse{Metrics: snap.Data, AsOf: snap.Timestamp, Source: "live"}

	default:
		h.logger.WithError(err).Error("Failed to load latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	if err := h.cache.Set(ctx, redis.KeyAllMetrics, resp, h.cacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache metrics")
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetMagnificent7 returns per-company concentration stats
// GET /api/metrics/magnificent7
func (h *MetricsHandler) GetMagnificent7(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached []index.CompanyStat
	if hit, err := h.cache.Get(ctx, redis.KeyMagnificent7, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"companies": cached})
		return
	}

	stats, err := h.aggregator.Magnificent7(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch magnificent 7 quotes")
		respondError(w, http.StatusBadGateway, "Failed to fetch company quotes")
		return
	}

	if err := h.cache.Set(ctx, redis.KeyMagnificent7, stats, h.cacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache magnificent 7")
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"companies": stats})
}

// HistoryPoint is one day of the index, trimmed for charting
type HistoryPoint struct {
	Date      string          `json:"date"`
	Score     float64         `json:"score"`
	RiskLevel index.RiskLevel `json:"riskLevel"`
}

// GetHistory returns up to 365 days of persisted scores
// GET /api/metrics/history?days=30
func (h *MetricsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	cacheKey := redis.HistoryKey(start.Format("2006-01-02"), end.Format("2006-01-02"))
	var cached []HistoryPoint
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"history": cached})
		return
	}

	dailies, err := h.snapshots.GetRange(ctx, start, end)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load snapshot history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	points := make([]HistoryPoint, 0, len(dailies))
	for _, d := range dailies {
		points = append(points, HistoryPoint{
			Date:      d.Date.Format("2006-01-02"),
			Score:     d.Score,
			RiskLevel: d.RiskLevel,
		})
	}

	if err := h.cache.Set(ctx, cacheKey, points, h.cacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache history")
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": points})
}

// SentimentResponse is the payload of GET /api/metrics/sentiment
type SentimentResponse struct {
	Sentiment *newsapi.Sentiment `json:"sentiment"`
	Headlines []newsapi.Article  `json:"headlines"`
	AsOf      time.Time          `json:"asOf"`
}

// GetSentiment returns keyword sentiment over recent AI bubble coverage
// GET /api/metrics/sentiment
func (h *MetricsHandler) GetSentiment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.news == nil {
		respondError(w, http.StatusServiceUnavailable, "News sentiment is not configured")
		return
	}

	var cached SentimentResponse
	if hit, err := h.cache.Get(ctx, redis.KeySentiment, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	sentiment, err := h.news.GetAIBubbleSentiment(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch news sentiment")
		respondError(w, http.StatusBadGateway, "Failed to fetch news sentiment")
		return
	}

	// Headlines are optional; a failure here does not fail the endpoint
	headlines, err := h.news.GetAINews(ctx, 5)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to fetch headlines")
		headlines = nil
	}

	resp := SentimentResponse{
		Sentiment: sentiment,
		Headlines: headlines,
		AsOf:      time.Now().UTC(),
	}
	if err := h.cache.Set(ctx, redis.KeySentiment, resp, h.cacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache sentiment")
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *MetricsHandler) calculateLive(r *http.Request) (*index.Result, error) {
	snap, err := h.aggregator.FetchAll(r.Context())
	if err != nil {
		return nil, err
	}
	return index.Calculate(snap), nil
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
