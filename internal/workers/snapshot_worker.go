package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/adapters/clickhouse"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/models"
)

// SnapshotSource supplies the market view to archive.
type SnapshotSource interface {
	Snapshot(ctx context.Context, forceRefresh bool) models.Snapshot
}

// ObservationSink persists ticker observations.
type ObservationSink interface {
	RecordObservations(ctx context.Context, observations []clickhouse.Observation) error
}

// SnapshotWorker archives the current tickers to the history sink once per
// cycle. It reads through the market cache without forcing a refresh, so
// recording never adds upstream call pressure.
type SnapshotWorker struct {
	source SnapshotSource
	sink   ObservationSink
}

// NewSnapshotWorker creates new snapshot recorder worker
func NewSnapshotWorker(source SnapshotSource, sink ObservationSink) *SnapshotWorker {
	return &SnapshotWorker{source: source, sink: sink}
}

// Name returns worker name
func (sw *SnapshotWorker) Name() string {
	return "snapshot_recorder"
}

// Run executes one recording cycle.
// Called periodically by pkg/worker.PeriodicWorker
func (sw *SnapshotWorker) Run(ctx context.Context) error {
	snap := sw.source.Snapshot(ctx, false)

	observations := make([]clickhouse.Observation, 0, len(snap.Tickers))
	for _, ticker := range snap.Tickers {
		if ticker.CurrentPrice == nil {
			continue
		}
		observations = append(observations, clickhouse.Observation{
			ObservedAt: snap.ObservedAt,
			Symbol:     ticker.Symbol,
			Price:      *ticker.CurrentPrice,
			Change24h:  ticker.Change24h,
			MarketCap:  ticker.MarketCap,
			Volume:     ticker.TotalVolume,
		})
	}

	if len(observations) == 0 {
		logger.Debug("no priced tickers to record")
		return nil
	}

	if err := sw.sink.RecordObservations(ctx, observations); err != nil {
		return fmt.Errorf("failed to record observations: %w", err)
	}

	logger.Debug("market observations recorded",
		zap.Int("count", len(observations)),
		zap.Time("observed_at", snap.ObservedAt),
	)

	return nil
}
