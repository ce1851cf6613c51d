package handlers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/aibubble/analytics/backend/internal/newsletter"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// NewsletterHandler serves the subscription lifecycle endpoints
type NewsletterHandler struct {
	service     *newsletter.Service
	logger      *logger.Logger
	frontendURL string
}

// NewNewsletterHandler creates a newsletter handler
func NewNewsletterHandler(svc *newsletter.Service, cfg *config.Config, log *logger.Logger) *NewsletterHandler {
	return &NewsletterHandler{
		service:     svc,
		logger:      log,
		frontendURL: cfg.FrontendURL,
	}
}

// SubscribeRequest is the body of POST /api/newsletter/subscribe
type SubscribeRequest struct {
	Email     string `json:"email"`
	Frequency string `json:"frequency,omitempty"` // daily (default) or weekly
}

// Subscribe registers an email address
// POST /api/newsletter/subscribe
func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	meta := newsletter.Meta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}
	result, err := h.service.Subscribe(r.Context(), email, newsletter.Frequency(req.Frequency), meta)
	switch err {
	case nil:

	case newsletter.ErrInvalidEmail:
		respondError(w, http.StatusBadRequest, "Invalid email address")
		return

	case newsletter.ErrAlreadySubscribed:
		respondError(w, http.StatusConflict, "Email is already subscribed")
		return

	default:
		h.logger.WithError(err).Error("Failed to subscribe")
		respondError(w, http.StatusInternalServerError, "Failed to subscribe")
		return
	}

	if result.Resent {
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "Confirmation email re-sent. Please check your inbox.",
		})
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Almost there! Check your inbox to confirm your subscription.",
	})
}

// Confirm activates a pending subscription and redirects to the site
// GET /api/newsletter/confirm?token=...
func (h *NewsletterHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	sub, err := h.service.Confirm(r.Context(), token)
	switch err {
	case nil:
		http.Redirect(w, r,
			fmt.Sprintf("%s/newsletter?confirmed=true&email=%s", h.frontendURL, url.QueryEscape(sub.Email)),
			http.StatusFound)

	case newsletter.ErrInvalidToken:
		http.Redirect(w, r,
			h.frontendURL+"/newsletter?confirmed=false&reason=invalid_token",
			http.StatusFound)

	default:
		h.logger.WithError(err).Error("Failed to confirm subscription")
		http.Redirect(w, r,
			h.frontendURL+"/newsletter?confirmed=false&reason=server_error",
			http.StatusFound)
	}
}

// UnsubscribeRequest is the body of POST /api/newsletter/unsubscribe
type UnsubscribeRequest struct {
	Email string `json:"email"`
}

// Unsubscribe deactivates a subscription. Unknown addresses succeed.
// POST /api/newsletter/unsubscribe
func (h *NewsletterHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	if err := h.service.Unsubscribe(r.Context(), email); err != nil {
		h.logger.WithError(err).Error("Failed to unsubscribe")
		respondError(w, http.StatusInternalServerError, "Failed to unsubscribe")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "You have been unsubscribed.",
	})
}

// clientIP prefers the first X-Forwarded-For hop set by the proxy,
// falling back to the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
