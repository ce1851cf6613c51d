package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aibubble/analytics/backend/pkg/config"
	"github.com/aibubble/analytics/backend/pkg/httputil"
	"github.com/aibubble/analytics/backend/pkg/logger"
)

// maxPersonalizations is SendGrid's per-request recipient limit
const maxPersonalizations = 1000

// Client handles communication with the SendGrid v3 mail API.
// With no API key configured it runs in dev mode and logs instead
// of sending.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
	fromEmail  string
	fromName   string
}

// NewClient creates a new SendGrid client
func NewClient(cfg config.SendGridConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
	}
}

// Message is one outbound email
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To            []address         `json:"to"`
	Subject       string            `json:"subject,omitempty"`
	Substitutions map[string]string `json:"substitutions,omitempty"`
}

// Recipient is one batch recipient. Substitutions are applied by the
// provider to the shared body, keyed by literal tag.
type Recipient struct {
	Email         string
	Substitutions map[string]string
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send delivers one email
func (c *Client) Send(ctx context.Context, msg Message) error {
	return c.SendBatch(ctx, msg.Subject, msg.HTMLBody, msg.TextBody, []Recipient{{Email: msg.To}})
}

// SendBatch delivers a shared body to up to 1000 recipients as
// separate personalizations, each carrying its own substitutions.
// Larger recipient lists are the caller's concern; this rejects them
// outright.
func (c *Client) SendBatch(ctx context.Context, subject, htmlBody, textBody string, recipients []Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	if len(recipients) > maxPersonalizations {
		return fmt.Errorf("sendgrid: %d recipients exceeds the %d per-request limit", len(recipients), maxPersonalizations)
	}

	if c.apiKey == "" {
		c.logger.WithFields(map[string]interface{}{
			"recipients": len(recipients),
			"subject":    subject,
		}).Info("SendGrid dev mode: skipping send")
		return nil
	}

	personalizations := make([]personalization, 0, len(recipients))
	for _, rcpt := range recipients {
		personalizations = append(personalizations, personalization{
			To:            []address{{Email: rcpt.Email}},
			Substitutions: rcpt.Substitutions,
		})
	}

	payload := sendRequest{
		Personalizations: personalizations,
		From:             address{Email: c.fromEmail, Name: c.fromName},
		Subject:          subject,
		Content: []content{
			{Type: "text/plain", Value: textBody},
			{Type: "text/html", Value: htmlBody},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sendgrid marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, string(detail))
	}

	return nil
}
