// Package sendgrid is a minimal client for the SendGrid v3 mail send API.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/internal/notify"
)

const mailSendEndpoint = "https://api.sendgrid.com/v3/mail/send"

// Mailer sends transactional mail through SendGrid.
type Mailer struct {
	apiKey    string
	fromEmail string
	endpoint  string
	client    *http.Client
}

// NewMailer creates the SendGrid transport. Missing credentials are allowed
// at construction; Send then reports notify.ErrNotConfigured without
// touching the network.
func NewMailer(cfg *config.MailConfig) *Mailer {
	return &Mailer{
		apiKey:    cfg.SendGridAPIKey,
		fromEmail: cfg.FromEmail,
		endpoint:  mailSendEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type emailAddress struct {
	Email string `json:"email"`
}

type personalization struct {
	To      []emailAddress `json:"to"`
	Subject string         `json:"subject"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Content          []mailContent     `json:"content"`
}

// Send posts one message. SendGrid acknowledges delivery with 200 or 202.
func (m *Mailer) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if m.apiKey == "" {
		return fmt.Errorf("%w: SendGrid API key is missing", notify.ErrNotConfigured)
	}
	if m.fromEmail == "" {
		return fmt.Errorf("%w: sender email is missing", notify.ErrNotConfigured)
	}

	payload := mailRequest{
		Personalizations: []personalization{{
			To:      []emailAddress{{Email: to}},
			Subject: subject,
		}},
		From: emailAddress{Email: m.fromEmail},
		Content: []mailContent{
			{Type: "text/plain", Value: textBody},
			{Type: "text/html", Value: htmlBody},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		responseBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SendGrid returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	return nil
}
