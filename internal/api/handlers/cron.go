package handlers

import (
	"net/http"

	"github.com/aibubble/analytics/backend/internal/scheduler"
	"github.com/aibubble/analytics/backend/internal/scheduler/jobs"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// CronHandler exposes the scheduled pipeline over HTTP so an external
// cron service can drive it, plus manual trigger and status endpoints.
type CronHandler struct {
	scheduler   *scheduler.Scheduler
	dailyJob    *jobs.DailyNewsletterJob
	logger      *logger.Logger
	cronSecret  string
	adminSecret string
	production  bool
}

// NewCronHandler creates a cron handler
func NewCronHandler(
	sched *scheduler.Scheduler,
	dailyJob *jobs.DailyNewsletterJob,
	cfg *config.Config,
	log *logger.Logger,
) *CronHandler {
	return &CronHandler{
		scheduler:   sched,
		dailyJob:    dailyJob,
		logger:      log,
		cronSecret:  cfg.CronSecret,
		adminSecret: cfg.AdminSecret,
		production:  cfg.IsProduction(),
	}
}

// RunDailyNewsletter runs the daily pipeline once, authenticated by
// the shared cron secret.
// POST /api/cron/daily-newsletter
func (h *CronHandler) RunDailyNewsletter(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if auth != "Bearer "+h.cronSecret {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	h.runPipeline(w)
}

// RunTestNewsletter runs the pipeline on demand. In production it
// requires the admin secret; in development it is open.
// POST /api/cron/test-newsletter
func (h *CronHandler) RunTestNewsletter(w http.ResponseWriter, r *http.Request) {
	if h.production {
		secret := r.URL.Query().Get("admin_secret")
		if secret == "" || secret != h.adminSecret {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	h.runPipeline(w)
}

func (h *CronHandler) runPipeline(w http.ResponseWriter) {
	err := h.scheduler.TriggerAndWait(h.dailyJob.Name())
	stats := h.dailyJob.LastStats()

	if err != nil {
		h.logger.WithError(err).Error("Pipeline run failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"stats":   stats,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// GetStatus reports every registered job's schedule and run history
// GET /api/cron/status
func (h *CronHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  h.scheduler.JobNames(),
		"stats": h.scheduler.JobStats(),
	})
}
