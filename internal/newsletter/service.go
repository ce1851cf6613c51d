package newsletter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/aibubble/analytics/backend/internal/external/sendgrid"
	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// Mailer delivers email. sendgrid.Client satisfies it; tests
// substitute a recorder.
type Mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) error
	SendBatch(ctx context.Context, subject, htmlBody, textBody string, recipients []sendgrid.Recipient) error
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service implements the subscription lifecycle:
// pending_confirmation -> active -> unsubscribed.
type Service struct {
	store       Store
	mailer      Mailer
	logger      *logger.Logger
	frontendURL string
	apiBaseURL  string
}

// NewService creates a newsletter service
func NewService(cfg *config.Config, store Store, mailer Mailer, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		mailer:      mailer,
		logger:      log,
		frontendURL: cfg.FrontendURL,
		apiBaseURL:  cfg.APIBaseURL,
	}
}

// SubscribeResult reports what Subscribe did for an address
type SubscribeResult struct {
	Subscriber *Subscriber
	Resent     bool // existing pending subscriber, confirmation re-sent
}

// Subscribe registers an address and sends a confirmation email.
// An active subscription returns ErrAlreadySubscribed; a pending one
// gets a fresh token and a re-sent confirmation. An unsubscribed
// address restarts the lifecycle from pending.
func (s *Service) Subscribe(ctx context.Context, email string, freq Frequency, meta Meta) (*SubscribeResult, error) {
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if freq == "" {
		freq = FrequencyDaily
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}

	token, err := newConfirmToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	if existing != nil {
		switch existing.Status {
		case StatusActive:
			return nil, ErrAlreadySubscribed

		case StatusPending, StatusUnsubscribed:
			existing.Status = StatusPending
			existing.Frequency = freq
			existing.ConfirmToken = token
			existing.Metadata = meta
			existing.ConfirmedAt = nil
			existing.UnsubscribedAt = nil
			if err := s.store.Update(ctx, existing); err != nil {
				return nil, err
			}
			s.sendConfirmation(ctx, existing)
			return &SubscribeResult{Subscriber: existing, Resent: true}, nil
		}
	}

	sub := &Subscriber{
		ID:           uuid.New(),
		Email:        email,
		Status:       StatusPending,
		Frequency:    freq,
		ConfirmToken: token,
		Metadata:     meta,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.sendConfirmation(ctx, sub)
	return &SubscribeResult{Subscriber: sub}, nil
}

// Confirm activates the pending subscriber holding the token and
// sends the welcome email.
func (s *Service) Confirm(ctx context.Context, token string) (*Subscriber, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	sub, err := s.store.GetByToken(ctx, token)
	if err == ErrNotFound {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	now := time.Now().UTC()
	sub.Status = StatusActive
	sub.ConfirmToken = ""
	sub.ConfirmedAt = &now
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, sub)
	return sub, nil
}

// Unsubscribe deactivates an address. An unknown or already
// unsubscribed address is a no-op success so the link in every
// newsletter footer never errors.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	sub, err := s.store.GetByEmail(ctx, email)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup subscriber: %w", err)
	}
	if sub.Status == StatusUnsubscribed {
		return nil
	}

	now := time.Now().UTC()
	sub.Status = StatusUnsubscribed
	sub.ConfirmToken = ""
	sub.UnsubscribedAt = &now
	return s.store.Update(ctx, sub)
}

func (s *Service) sendConfirmation(ctx context.Context, sub *Subscriber) {
	confirmURL := fmt.Sprintf("%s/api/newsletter/confirm?token=%s", s.apiBaseURL, sub.ConfirmToken)

	html, text, err := RenderConfirmation(confirmURL)
	if err != nil {
		s.logger.WithError(err).Error("Failed to render confirmation email")
		return
	}

	msg := sendgrid.Message{
		To:       sub.Email,
		Subject:  "Confirm your AI Bubble Index subscription",
		HTMLBody: html,
		TextBody: text,
	}
	status := "sent"
	errText := ""
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("email", sub.Email).
			Error("Failed to send confirmation email")
		status = "failed"
		errText = err.Error()
	}

	s.logDelivery(ctx, sub.ID, EmailTypeConfirmation, status, errText)
}

func (s *Service) sendWelcome(ctx context.Context, sub *Subscriber) {
	html, text, err := RenderWelcome(UnsubscribeURL(s.frontendURL, sub.Email))
	if err != nil {
		s.logger.WithError(err).Error("Failed to render welcome email")
		return
	}

	msg := sendgrid.Message{
		To:       sub.Email,
		Subject:  "Welcome to the AI Bubble Index daily briefing",
		HTMLBody: html,
		TextBody: text,
	}
	status := "sent"
	errText := ""
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("email", sub.Email).
			Error("Failed to send welcome email")
		status = "failed"
		errText = err.Error()
	}

	s.logDelivery(ctx, sub.ID, EmailTypeWelcome, status, errText)
}

func (s *Service) logDelivery(ctx context.Context, subscriberID uuid.UUID, emailType, status, errText string) {
	log := EmailLog{
		ID:           uuid.New(),
		SubscriberID: subscriberID,
		EmailType:    emailType,
		Status:       status,
		Error:        errText,
		SentAt:       time.Now().UTC(),
	}
	if err := s.store.LogEmails(ctx, []EmailLog{log}); err != nil {
		s.logger.WithError(err).Warn("Failed to record email log")
	}
}

// UnsubscribeURL builds the one-click unsubscribe link for an address.
func UnsubscribeURL(frontendURL, email string) string {
	return fmt.Sprintf("%s/unsubscribe?email=%s", frontendURL, url.QueryEscape(email))
}

// newConfirmToken returns a 256-bit random token, hex encoded
func newConfirmToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
