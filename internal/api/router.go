package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aibubble/analytics/backend/internal/api/handlers"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// NewRouter wires every endpoint to its handler
func NewRouter(
	metricsHandler *handlers.MetricsHandler,
	newsletterHandler *handlers.NewsletterHandler,
	cronHandler *handlers.CronHandler,
	healthHandler *handlers.HealthHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler.Check).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Metrics
	api.HandleFunc("/metrics/bubble-index", metricsHandler.GetBubbleIndex).Methods("GET")
	api.HandleFunc("/metrics/all", metricsHandler.GetAllMetrics).Methods("GET")
	api.HandleFunc("/metrics/magnificent7", metricsHandler.GetMagnificent7).Methods("GET")
	api.HandleFunc("/metrics/history", metricsHandler.GetHistory).Methods("GET")
	api.HandleFunc("/metrics/sentiment", metricsHandler.GetSentiment).Methods("GET")

	// Newsletter lifecycle
	api.HandleFunc("/newsletter/subscribe", newsletterHandler.Subscribe).Methods("POST")
	api.HandleFunc("/newsletter/confirm", newsletterHandler.Confirm).Methods("GET")
	api.HandleFunc("/newsletter/unsubscribe", newsletterHandler.Unsubscribe).Methods("POST")

	// Scheduled pipeline
	api.HandleFunc("/cron/daily-newsletter", cronHandler.RunDailyNewsletter).Methods("POST")
	api.HandleFunc("/cron/test-newsletter", cronHandler.RunTestNewsletter).Methods("POST")
	api.HandleFunc("/cron/status", cronHandler.GetStatus).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
