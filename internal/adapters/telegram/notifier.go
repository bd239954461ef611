// Package telegram posts alert triggers to an operator chat. It is an
// optional secondary channel next to email and carries the same
// never-failing dispatch contract.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/metrics"
	"github.com/cryptoknight/knightd/pkg/models"
)

// Notifier announces triggered alerts in a single configured chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier creates the Telegram announcer.
func NewNotifier(cfg *config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
		zap.Int64("chat_id", cfg.ChatID),
	)

	return &Notifier{api: bot, chatID: cfg.ChatID}, nil
}

// Notify posts the trigger to the operator chat. Delivery problems are
// logged and reported as false; they never bubble up.
func (n *Notifier) Notify(_ context.Context, user models.User, alert models.Alert, price float64) bool {
	emoji := "📈"
	direction := "upward"
	if alert.Direction == models.DirectionBelow {
		emoji = "📉"
		direction = "downward"
	}

	text := fmt.Sprintf(
		"%s *%s* crossed the alert threshold for %s\nCurrent price: $%.2f\nThreshold: $%s (%s)",
		emoji, alert.Symbol, user.Username, price, alert.Threshold.StringFixed(2), direction,
	)

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := n.api.Send(msg); err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.chatID),
			zap.Error(err),
		)
		metrics.Notifications.WithLabelValues("telegram", "error").Inc()
		return false
	}

	metrics.Notifications.WithLabelValues("telegram", "ok").Inc()
	return true
}
