package alerts

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/notify"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/metrics"
	"github.com/cryptoknight/knightd/pkg/models"
)

// AlertStore is the subset of the repository the evaluator needs.
type AlertStore interface {
	ListActive(ctx context.Context) ([]models.Alert, error)
	MarkTriggered(ctx context.Context, alerts []models.Alert) error
}

// PriceSource supplies the current symbol to price mapping.
type PriceSource interface {
	PriceLookup(ctx context.Context, forceRefresh bool) map[string]float64
}

// RecipientDirectory resolves alert owners for notification delivery.
type RecipientDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Evaluator sweeps active alerts against current prices. Every fired alert is
// deactivated exactly once; delivery failures never re-arm it.
type Evaluator struct {
	store      AlertStore
	prices     PriceSource
	recipients RecipientDirectory
	dispatcher notify.Dispatcher
	now        func() time.Time
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(store AlertStore, prices PriceSource, recipients RecipientDirectory, dispatcher notify.Dispatcher) *Evaluator {
	return &Evaluator{
		store:      store,
		prices:     prices,
		recipients: recipients,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Evaluate runs one sweep and returns the alerts that fired. A store read
// failure skips the sweep quietly so the monitor loop keeps running; alerts
// whose symbol has no known price are left armed for the next pass.
func (e *Evaluator) Evaluate(ctx context.Context, forceRefresh bool) []models.Alert {
	metrics.EvaluationCycles.Inc()

	alerts, err := e.store.ListActive(ctx)
	if err != nil {
		logger.Error("failed to load active alerts", zap.Error(err))
		return nil
	}
	if len(alerts) == 0 {
		return nil
	}

	prices := e.prices.PriceLookup(ctx, forceRefresh)

	var triggered []models.Alert
	for i := range alerts {
		alert := &alerts[i]

		price, ok := prices[strings.ToUpper(alert.Symbol)]
		if !ok {
			logger.Debug("no price for alert symbol",
				zap.Int64("alert_id", alert.ID),
				zap.String("symbol", alert.Symbol))
			continue
		}

		if !alert.ShouldTrigger(price) {
			continue
		}

		alert.MarkTriggered(e.now())
		metrics.AlertsTriggered.Inc()

		logger.Info("🔔 Alert triggered",
			zap.Int64("alert_id", alert.ID),
			zap.String("symbol", alert.Symbol),
			zap.String("direction", string(alert.Direction)),
			zap.String("threshold", alert.Threshold.String()),
			zap.Float64("price", price))

		e.dispatch(ctx, *alert, price)
		triggered = append(triggered, *alert)
	}

	if len(triggered) > 0 {
		if err := e.store.MarkTriggered(ctx, triggered); err != nil {
			logger.Error("failed to persist triggered alerts",
				zap.Int("count", len(triggered)),
				zap.Error(err))
		}
	}

	return triggered
}

// dispatch resolves the owner and hands the alert to the notification
// channels. Failures are logged and swallowed; the alert stays fired.
func (e *Evaluator) dispatch(ctx context.Context, alert models.Alert, price float64) {
	user, err := e.recipients.GetByID(ctx, alert.UserID)
	if err != nil {
		logger.Error("failed to resolve alert owner",
			zap.Int64("alert_id", alert.ID),
			zap.Int64("user_id", alert.UserID),
			zap.Error(err))
		return
	}
	if user == nil {
		logger.Warn("alert owner not found, skipping notification",
			zap.Int64("alert_id", alert.ID),
			zap.Int64("user_id", alert.UserID))
		return
	}

	e.dispatcher.Notify(ctx, *user, alert, price)
}
