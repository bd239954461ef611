// Package workers contains the periodic jobs run by the daemon.
package workers

import (
	"context"

	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/models"
)

// AlertEvaluator is the sweep the monitor drives.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, forceRefresh bool) []models.Alert
}

// MonitorWorker checks active price alerts against fresh market prices.
// Each cycle forces a market refresh so triggers react to current prices,
// not a five minute old cache entry.
type MonitorWorker struct {
	evaluator AlertEvaluator
}

// NewMonitorWorker creates new alert monitor worker
func NewMonitorWorker(evaluator AlertEvaluator) *MonitorWorker {
	return &MonitorWorker{evaluator: evaluator}
}

// Name returns worker name
func (mw *MonitorWorker) Name() string {
	return "alert_monitor"
}

// Run executes one evaluation sweep.
// Called periodically by pkg/worker.PeriodicWorker
func (mw *MonitorWorker) Run(ctx context.Context) error {
	triggered := mw.evaluator.Evaluate(ctx, true)
	if len(triggered) > 0 {
		logger.Info("🔔 Alert sweep finished",
			zap.Int("triggered", len(triggered)),
		)
	}
	return nil
}
