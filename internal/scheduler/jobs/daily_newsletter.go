package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aibubble/analytics/backend/internal/external/sendgrid"
	"github.com/aibubble/analytics/backend/internal/index"
	"github.com/aibubble/analytics/backend/internal/newsletter"
	"github.com/aibubble/analytics/backend/internal/snapshot"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// SnapshotStore is the slice of snapshot persistence the pipeline needs
type SnapshotStore interface {
	Upsert(ctx context.Context, d *snapshot.Daily) error
	GetPrevious(ctx context.Context, date time.Time) (*snapshot.Daily, error)
	LogJobError(ctx context.Context, jobName string, jobErr error) error
}

// RunStats summarizes one pipeline run
type RunStats struct {
	Score       float64 `json:"score"`
	RiskLevel   string  `json:"riskLevel"`
	Subscribers int     `json:"subscribers"`
	Sent        int     `json:"sent"`
	Failed      int     `json:"failed"`
	Batches     int     `json:"batches"`
}

// DailyNewsletterJob runs the full daily pipeline: fetch all metrics,
// calculate the index, persist the snapshot, and send the briefing to
// every active daily subscriber.
type DailyNewsletterJob struct {
	aggregator  *index.Aggregator
	snapshots   SnapshotStore
	store       newsletter.Store
	mailer      newsletter.Mailer
	logger      *logger.Logger
	frontendURL string

	batchSize       int
	interBatchDelay time.Duration

	// Guards lastStats: a scheduled run can race an HTTP trigger.
	mu        sync.Mutex
	lastStats *RunStats
}

// NewDailyNewsletterJob creates the daily pipeline job
func NewDailyNewsletterJob(
	agg *index.Aggregator,
	snapshots SnapshotStore,
	store newsletter.Store,
	mailer newsletter.Mailer,
	cfg *config.Config,
	log *logger.Logger,
) *DailyNewsletterJob {
	return &DailyNewsletterJob{
		aggregator:      agg,
		snapshots:       snapshots,
		store:           store,
		mailer:          mailer,
		logger:          log,
		frontendURL:     cfg.FrontendURL,
		batchSize:       cfg.Newsletter.BatchSize,
		interBatchDelay: cfg.Newsletter.InterBatchDelay,
	}
}

// Name returns the job name
func (j *DailyNewsletterJob) Name() string {
	return "daily_newsletter"
}

// Schedule returns the cron schedule (daily at 13:00 UTC, US pre-market)
func (j *DailyNewsletterJob) Schedule() string {
	return "0 13 * * *"
}

// LastStats returns the outcome of the most recent run, if any
func (j *DailyNewsletterJob) LastStats() *RunStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastStats
}

// Run executes the pipeline. Failures are recorded in job_errors
// before being returned.
func (j *DailyNewsletterJob) Run(ctx context.Context) error {
	stats, err := j.run(ctx)
	j.mu.Lock()
	j.lastStats = stats
	j.mu.Unlock()
	if err != nil {
		if logErr := j.snapshots.LogJobError(ctx, j.Name(), err); logErr != nil {
			j.logger.WithError(logErr).Warn("Failed to record job error")
		}
		return err
	}
	return nil
}

func (j *DailyNewsletterJob) run(ctx context.Context) (*RunStats, error) {
	j.logger.Info("Starting daily newsletter pipeline")

	// 1. Fetch all ten metrics
	snap, err := j.aggregator.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}

	// 2. Calculate the index
	result := index.Calculate(snap)

	// 3. Trend against the previous persisted day
	today := snap.Timestamp.Truncate(24 * time.Hour)
	prev, err := j.snapshots.GetPrevious(ctx, today)
	switch err {
	case nil:
		result.Trend = index.TrendBetween(prev.Score, result.Score)
	case snapshot.ErrNotFound:
		// first ever run, trend stays neutral
	default:
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}

	// 4. Persist today's snapshot
	daily := snapshot.FromResult(today, result, snap.Data)
	if err := j.snapshots.Upsert(ctx, daily); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	stats := &RunStats{
		Score:     result.Score,
		RiskLevel: string(result.RiskLevel),
	}

	j.logger.WithFields(map[string]interface{}{
		"score":     result.Score,
		"riskLevel": result.RiskLevel,
		"trend":     result.Trend.Direction,
	}).Info("Index calculated and persisted")

	// 5. Load recipients
	subs, err := j.store.ListActive(ctx, newsletter.FrequencyDaily)
	if err != nil {
		return stats, fmt.Errorf("list subscribers: %w", err)
	}
	stats.Subscribers = len(subs)

	if len(subs) == 0 {
		j.logger.Info("No active subscribers, skipping send")
		return stats, nil
	}

	// 6. Render the shared body once; each recipient's unsubscribe link
	// is filled in by a per-recipient substitution at send time.
	data := newsletter.BuildDailyEmailData(result, newsletter.UnsubscribeTag)
	html, text, err := newsletter.RenderDaily(data)
	if err != nil {
		return stats, fmt.Errorf("render newsletter: %w", err)
	}
	subject := newsletter.DailySubject(result.Score, result.RiskLevel)

	for start := 0; start < len(subs); start += j.batchSize {
		end := start + j.batchSize
		if end > len(subs) {
			end = len(subs)
		}
		batch := subs[start:end]
		stats.Batches++

		recipients := make([]sendgrid.Recipient, len(batch))
		for i, sub := range batch {
			recipients[i] = sendgrid.Recipient{
				Email: sub.Email,
				Substitutions: map[string]string{
					newsletter.UnsubscribeTag: newsletter.UnsubscribeURL(j.frontendURL, sub.Email),
				},
			}
		}

		status := "sent"
		errText := ""
		if err := j.mailer.SendBatch(ctx, subject, html, text, recipients); err != nil {
			// The whole batch fails together; later batches still go out.
			j.logger.WithError(err).WithFields(map[string]interface{}{
				"batch": stats.Batches,
				"size":  len(batch),
			}).Error("Newsletter batch failed")
			status = "failed"
			errText = err.Error()
			stats.Failed += len(batch)
		} else {
			stats.Sent += len(batch)
		}

		logs := make([]newsletter.EmailLog, len(batch))
		now := time.Now().UTC()
		for i, sub := range batch {
			logs[i] = newsletter.EmailLog{
				ID:           uuid.New(),
				SubscriberID: sub.ID,
				EmailType:    newsletter.EmailTypeDaily,
				Status:       status,
				Error:        errText,
				SentAt:       now,
			}
		}
		if err := j.store.LogEmails(ctx, logs); err != nil {
			j.logger.WithError(err).Warn("Failed to record email logs")
		}

		if end < len(subs) {
			time.Sleep(j.interBatchDelay)
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"subscribers": stats.Subscribers,
		"sent":        stats.Sent,
		"failed":      stats.Failed,
		"batches":     stats.Batches,
	}).Info("Daily newsletter pipeline completed")

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d of %d deliveries failed", stats.Failed, stats.Subscribers)
	}
	return stats, nil
}
