package newsletter

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is a subscriber's lifecycle state
type Status string

const (
	StatusPending      Status = "pending_confirmation"
	StatusActive       Status = "active"
	StatusUnsubscribed Status = "unsubscribed"
)

// Frequency is how often a subscriber receives the newsletter
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Meta is signup request context kept for abuse review
type Meta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

// Subscriber is one newsletter recipient
type Subscriber struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Status         Status     `json:"status"`
	Frequency      Frequency  `json:"frequency"`
	ConfirmToken   string     `json:"-"`
	Metadata       Meta       `json:"metadata,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ConfirmedAt    *time.Time `json:"confirmedAt,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty"`
}

// EmailLog records one delivery attempt to one recipient
type EmailLog struct {
	ID           uuid.UUID `json:"id"`
	SubscriberID uuid.UUID `json:"subscriberId"`
	EmailType    string    `json:"emailType"`
	Status       string    `json:"status"` // sent or failed
	Error        string    `json:"error,omitempty"`
	SentAt       time.Time `json:"sentAt"`
}

// Email log types
const (
	EmailTypeConfirmation = "confirmation"
	EmailTypeWelcome      = "welcome"
	EmailTypeDaily        = "daily_newsletter"
)

var (
	// ErrInvalidEmail means the address failed format validation
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrAlreadySubscribed means the address already has an active subscription
	ErrAlreadySubscribed = errors.New("email already subscribed")

	// ErrInvalidToken means no pending subscriber matches the confirmation token
	ErrInvalidToken = errors.New("invalid or expired confirmation token")

	// ErrNotFound means no subscriber matches the lookup
	ErrNotFound = errors.New("subscriber not found")
)
