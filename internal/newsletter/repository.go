package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aibubble/analytics/backend/pkg/database"
)

// Repository is the PostgreSQL-backed Store
type Repository struct {
	db *database.DB
}

// NewRepository creates a subscriber repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// GetByEmail returns the subscriber for an address
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Subscriber, error) {
	query := `
		SELECT id, email, status, frequency, confirm_token, metadata,
		       created_at, confirmed_at, unsubscribed_at
		FROM subscribers
		WHERE email = $1
	`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, email))
}

// GetByToken returns the pending subscriber holding a confirmation token
func (r *Repository) GetByToken(ctx context.Context, token string) (*Subscriber, error) {
	query := `
		SELECT id, email, status, frequency, confirm_token, metadata,
		       created_at, confirmed_at, unsubscribed_at
		FROM subscribers
		WHERE confirm_token = $1 AND status = $2
	`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, token, StatusPending))
}

// Create inserts a new subscriber
func (r *Repository) Create(ctx context.Context, sub *Subscriber) error {
	query := `
		INSERT INTO subscribers (id, email, status, frequency, confirm_token, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		sub.ID, sub.Email, sub.Status, sub.Frequency, sub.ConfirmToken, sub.Metadata, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

// Update persists status, token, and timestamp changes
func (r *Repository) Update(ctx context.Context, sub *Subscriber) error {
	query := `
		UPDATE subscribers
		SET status = $2, frequency = $3, confirm_token = $4, metadata = $5,
		    confirmed_at = $6, unsubscribed_at = $7
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		sub.ID, sub.Status, sub.Frequency, sub.ConfirmToken, sub.Metadata,
		sub.ConfirmedAt, sub.UnsubscribedAt)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns all active subscribers on a frequency
func (r *Repository) ListActive(ctx context.Context, freq Frequency) ([]Subscriber, error) {
	query := `
		SELECT id, email, status, frequency, confirm_token, metadata,
		       created_at, confirmed_at, unsubscribed_at
		FROM subscribers
		WHERE status = $1 AND frequency = $2
		ORDER BY created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, StatusActive, freq)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		sub, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// LogEmails records delivery attempts, one row per recipient
func (r *Repository) LogEmails(ctx context.Context, logs []EmailLog) error {
	if len(logs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO email_logs (id, subscriber_id, email_type, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, l := range logs {
		id := l.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		sentAt := l.SentAt
		if sentAt.IsZero() {
			sentAt = time.Now().UTC()
		}
		batch.Queue(query, id, l.SubscriberID, l.EmailType, l.Status, l.Error, sentAt)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range logs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert email log: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanOne(row pgx.Row) (*Subscriber, error) {
	sub, err := r.scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

func (r *Repository) scanRow(row rowScanner) (*Subscriber, error) {
	var sub Subscriber
	err := row.Scan(
		&sub.ID, &sub.Email, &sub.Status, &sub.Frequency, &sub.ConfirmToken, &sub.Metadata,
		&sub.CreatedAt, &sub.ConfirmedAt, &sub.UnsubscribedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
