package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/internal/notify"
)

func testMailer(endpoint string) *Mailer {
	m := NewMailer(&config.MailConfig{
		SendGridAPIKey: "sg-test-key",
		FromEmail:      "alerts@cryptoknight.dev",
	})
	if endpoint != "" {
		m.endpoint = endpoint
	}
	return m
}

// TestSendPostsPayload verifies the request shape against the v3 mail API.
func TestSendPostsPayload(t *testing.T) {
	var captured mailRequest
	var authHeader, contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m := testMailer(server.URL)
	err := m.Send(context.Background(), "alice@example.com", "CryptoKnight Alert · BTC", "plain body", "<p>html body</p>")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if authHeader != "Bearer sg-test-key" {
		t.Errorf("Authorization mismatch. Got: %s", authHeader)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type mismatch. Got: %s", contentType)
	}

	if len(captured.Personalizations) != 1 {
		t.Fatalf("Expected 1 personalization, got %d", len(captured.Personalizations))
	}
	p := captured.Personalizations[0]
	if len(p.To) != 1 || p.To[0].Email != "alice@example.com" {
		t.Errorf("Recipient mismatch: %+v", p.To)
	}
	if p.Subject != "CryptoKnight Alert · BTC" {
		t.Errorf("Subject mismatch. Got: %s", p.Subject)
	}
	if captured.From.Email != "alerts@cryptoknight.dev" {
		t.Errorf("From mismatch. Got: %s", captured.From.Email)
	}

	if len(captured.Content) != 2 {
		t.Fatalf("Expected 2 content parts, got %d", len(captured.Content))
	}
	if captured.Content[0].Type != "text/plain" || captured.Content[0].Value != "plain body" {
		t.Errorf("Plain content mismatch: %+v", captured.Content[0])
	}
	if captured.Content[1].Type != "text/html" || captured.Content[1].Value != "<p>html body</p>" {
		t.Errorf("HTML content mismatch: %+v", captured.Content[1])
	}
}

// TestSendSuccessStatuses verifies both acknowledgement codes.
func TestSendSuccessStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusAccepted} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		m := testMailer(server.URL)
		if err := m.Send(context.Background(), "a@b.c", "s", "t", "h"); err != nil {
			t.Errorf("Send with status %d failed: %v", status, err)
		}
		server.Close()
	}
}

// TestSendMissingCredentials verifies the short circuit happens before any
// network activity.
func TestSendMissingCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected when credentials are missing")
	}))
	defer server.Close()

	testCases := []struct {
		name string
		cfg  config.MailConfig
	}{
		{"missing api key", config.MailConfig{FromEmail: "alerts@cryptoknight.dev"}},
		{"missing sender", config.MailConfig{SendGridAPIKey: "sg-test-key"}},
		{"missing both", config.MailConfig{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMailer(&tc.cfg)
			m.endpoint = server.URL

			err := m.Send(context.Background(), "a@b.c", "s", "t", "h")
			if !errors.Is(err, notify.ErrNotConfigured) {
				t.Fatalf("Expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

// TestSendUpstreamRejection verifies non-2xx answers surface as errors.
func TestSendUpstreamRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		if _, err := w.Write([]byte(`{"errors": [{"message": "invalid to address"}]}`)); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer server.Close()

	m := testMailer(server.URL)
	err := m.Send(context.Background(), "broken", "s", "t", "h")
	if err == nil {
		t.Fatal("Expected error for rejected mail, got nil")
	}
	if errors.Is(err, notify.ErrNotConfigured) {
		t.Fatalf("Rejection must not read as missing configuration: %v", err)
	}
}
