// Package clickhouse streams per-cycle market observations into ClickHouse
// for offline analysis. The sink is optional; nothing here runs when no DSN
// is configured.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/pkg/logger"
)

// Observation is one ticker reading at one observation time.
type Observation struct {
	ObservedAt time.Time
	Symbol     string
	Price      float64
	Change24h  float64
	MarketCap  float64
	Volume     float64
}

// Recorder appends observations to the market_observations table
type Recorder struct {
	db *sqlx.DB
}

// Connect opens the ClickHouse connection and verifies it with a ping.
func Connect(cfg *config.ClickHouseConfig) (*Recorder, error) {
	db, err := sqlx.Connect("clickhouse", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	logger.Info("ClickHouse connection established")
	return &Recorder{db: db}, nil
}

// NewRecorder wraps an existing connection.
func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the observations table when it does not exist yet.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS market_observations (
			observed_at DateTime,
			symbol      String,
			price       Float64,
			change_24h  Float64,
			market_cap  Float64,
			volume      Float64
		) ENGINE = MergeTree()
		ORDER BY (symbol, observed_at)
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create observations table: %w", err)
	}

	return nil
}

// RecordObservations batch-inserts one cycle worth of rows.
func (r *Recorder) RecordObservations(ctx context.Context, observations []Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO market_observations (observed_at, symbol, price, change_24h, market_cap, volume)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		_, err = stmt.ExecContext(ctx,
			obs.ObservedAt,
			obs.Symbol,
			obs.Price,
			obs.Change24h,
			obs.MarketCap,
			obs.Volume,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved market observations to ClickHouse",
		zap.Int("count", len(observations)),
	)

	return nil
}

// Close closes the underlying connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}
