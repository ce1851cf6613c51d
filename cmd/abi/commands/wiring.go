package commands

import (
	"fmt"

	"github.com/aibubble/analytics/backend/internal/external/alphavantage"
	"github.com/aibubble/analytics/backend/internal/external/finnhub"
	"github.com/aibubble/analytics/backend/internal/external/multpl"
	"github.com/aibubble/analytics/backend/internal/external/newsapi"
	"github.com/aibubble/analytics/backend/internal/external/sendgrid"
	"github.com/aibubble/analytics/backend/internal/external/serpapi"
	"github.com/aibubble/analytics/backend/internal/index"
	"github.com/aibubble/analytics/backend/internal/newsletter"
	"github.com/aibubble/analytics/backend/internal/scheduler"
	"github.com/aibubble/analytics/backend/internal/scheduler/jobs"
	"github.com/aibubble/analytics/backend/internal/snapshot"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/database"
	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
	"github.com/aibubble/analytics/backend/pkg/redis"
)

// app holds the fully wired object graph
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client
	cache *redis.Cache

	aggregator  *index.Aggregator
	news        *newsapi.Client
	snapshots   *snapshot.Repository
	subscribers *newsletter.Repository
	service     *newsletter.Service
	mailer      *sendgrid.Client
	scheduler   *scheduler.Scheduler
	dailyJob    *jobs.DailyNewsletterJob
}

// newApp loads config and wires every component. Metric sources with
// no API key configured stay nil, which means curated static readings.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	if err := index.ValidateWeights(); err != nil {
		return nil, fmt.Errorf("metric weights: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Connected to database")

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "abi")

	httpClient := httputil.New(log)

	var quotes index.QuoteSource
	switch {
	case cfg.Finnhub.APIKey != "":
		quotes = finnhub.NewClient(cfg.Finnhub, httpClient, log)
	case cfg.AlphaVantage.APIKey != "":
		quotes = index.NewAlphaVantageQuotes(alphavantage.NewClient(cfg.AlphaVantage, httpClient, log))
	}

	var trends index.TrendsSource
	if cfg.SerpAPI.APIKey != "" {
		trendsHTTP := httpClient
		if redisClient.Enabled() {
			limiter := redis.NewRateLimiter(redisClient, "abi")
			trendsHTTP = httputil.New(log).WithRateLimiter(limiter, redis.SerpAPIRateLimit)
		}
		trends = serpapi.NewClient(cfg.SerpAPI, trendsHTTP, log)
	}

	cape := multpl.NewClient(httpClient, log)

	var news *newsapi.Client
	if cfg.NewsAPI.APIKey != "" {
		news = newsapi.NewClient(cfg.NewsAPI, httpClient, log)
	}

	aggregator := index.NewAggregator(cfg.Metrics, quotes, trends, cape, log)

	snapshots := snapshot.NewRepository(db)
	subscribers := newsletter.NewRepository(db)
	mailer := sendgrid.NewClient(cfg.SendGrid, httputil.NewWithTimeout(log, cfg.Metrics.FetchTimeout), log)
	service := newsletter.NewService(cfg, subscribers, mailer, log)

	sched := scheduler.New(log)
	dailyJob := jobs.NewDailyNewsletterJob(aggregator, snapshots, subscribers, mailer, cfg, log)
	if err := sched.Register(dailyJob); err != nil {
		return nil, fmt.Errorf("register daily job: %w", err)
	}

	return &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		redis:       redisClient,
		cache:       cache,
		aggregator:  aggregator,
		news:        news,
		snapshots:   snapshots,
		subscribers: subscribers,
		service:     service,
		mailer:      mailer,
		scheduler:   sched,
		dailyJob:    dailyJob,
	}, nil
}

// Close releases database and redis connections
func (a *app) Close() {
	a.db.Close()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis client")
	}
}
