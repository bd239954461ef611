// Package notify delivers alert trigger notifications. Dispatchers never
// fail the caller: delivery problems are logged and counted, and the result
// is a boolean, so a trigger transition always outlives a flaky channel.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/metrics"
	"github.com/cryptoknight/knightd/pkg/models"
)

// ErrNotConfigured marks a channel whose credentials are absent. Transports
// return it before any network activity so the dispatcher can skip quietly
// instead of reporting a delivery failure.
var ErrNotConfigured = errors.New("notification channel is not configured")

// Dispatcher delivers one trigger notification. The boolean reports whether
// delivery happened; it is advisory and never interrupts evaluation.
type Dispatcher interface {
	Notify(ctx context.Context, user models.User, alert models.Alert, price float64) bool
}

// Sender is the transport an EmailDispatcher hands the rendered message to.
type Sender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// EmailDispatcher renders alert emails and pushes them through a Sender.
type EmailDispatcher struct {
	sender Sender
}

// NewEmailDispatcher creates the mail channel.
func NewEmailDispatcher(sender Sender) *EmailDispatcher {
	return &EmailDispatcher{sender: sender}
}

// Notify emails the alert owner about the trigger.
func (d *EmailDispatcher) Notify(ctx context.Context, user models.User, alert models.Alert, price float64) bool {
	subject := fmt.Sprintf("CryptoKnight Alert · %s", alert.Symbol)
	textBody, htmlBody := buildEmailBodies(user, alert, price)

	err := d.sender.Send(ctx, user.Email, subject, textBody, htmlBody)
	switch {
	case err == nil:
		metrics.Notifications.WithLabelValues("email", "ok").Inc()
		return true
	case errors.Is(err, ErrNotConfigured):
		logger.Warn("alert email skipped",
			zap.String("symbol", alert.Symbol),
			zap.Error(err),
		)
		metrics.Notifications.WithLabelValues("email", "skipped").Inc()
		return false
	default:
		logger.Error("failed to send alert email",
			zap.Int64("alert_id", alert.ID),
			zap.String("symbol", alert.Symbol),
			zap.Error(err),
		)
		metrics.Notifications.WithLabelValues("email", "error").Inc()
		return false
	}
}

func buildEmailBodies(user models.User, alert models.Alert, price float64) (string, string) {
	direction := "downward"
	if alert.Direction == models.DirectionAbove {
		direction = "upward"
	}
	threshold := alert.Threshold.StringFixed(2)

	textBody := fmt.Sprintf(
		"Hello %s,\n\n"+
			"Your price alert for %s has been triggered.\n"+
			"Current price: $%.2f.\n"+
			"Configured threshold: $%s (%s).\n\n"+
			"You are receiving this notification because you created the alert in CryptoKnight.\n",
		user.Username, alert.Symbol, price, threshold, direction,
	)

	htmlBody := fmt.Sprintf(
		"<p>Hello %s,</p>"+
			"<p>Your price alert for <strong>%s</strong> has been triggered.</p>"+
			"<p>Current price: <strong>$%.2f</strong><br/>"+
			"Configured threshold: <strong>$%s (%s movement)</strong></p>"+
			"<p>You are receiving this notification because you created the alert in CryptoKnight.</p>",
		user.Username, alert.Symbol, price, threshold, direction,
	)

	return textBody, htmlBody
}

// Multi fans one notification out to every channel and reports true when at
// least one of them delivered.
type Multi struct {
	channels []Dispatcher
}

// NewMulti combines channels into a single dispatcher.
func NewMulti(channels ...Dispatcher) *Multi {
	return &Multi{channels: channels}
}

// Notify tries every channel; a failing channel never blocks the others.
func (m *Multi) Notify(ctx context.Context, user models.User, alert models.Alert, price float64) bool {
	delivered := false
	for _, channel := range m.channels {
		if channel.Notify(ctx, user, alert, price) {
			delivered = true
		}
	}
	return delivered
}
