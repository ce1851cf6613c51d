package newsletter

import "context"

// Store persists subscribers and their delivery history
type Store interface {
	// GetByEmail returns the subscriber for an address, or ErrNotFound
	GetByEmail(ctx context.Context, email string) (*Subscriber, error)

	// GetByToken returns the pending subscriber holding a confirmation
	// token, or ErrNotFound
	GetByToken(ctx context.Context, token string) (*Subscriber, error)

	// Create inserts a new subscriber
	Create(ctx context.Context, sub *Subscriber) error

	// Update persists status, token, and timestamp changes
	Update(ctx context.Context, sub *Subscriber) error

	// ListActive returns all active subscribers on a frequency
	ListActive(ctx context.Context, freq Frequency) ([]Subscriber, error)

	// LogEmails records delivery attempts, one row per recipient
	LogEmails(ctx context.Context, logs []EmailLog) error
}
