package handlers

import (
	"net/http"

	"github.com/aibubble/analytics/backend/pkg/database"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	db     *database.DB
	logger *logger.Logger
}

// NewHealthHandler creates a health handler
func NewHealthHandler(db *database.DB, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: log}
}

// Check reports service and database health
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	status := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Database health check failed")
		dbStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, map[string]string{
		"status":   "ok",
		"service":  "ai-bubble-analytics-api",
		"database": dbStatus,
	})
}
