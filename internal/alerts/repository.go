// Package alerts owns price alert storage and the evaluation sweep that
// turns market prices into one-shot notifications.
package alerts

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cryptoknight/knightd/pkg/models"
)

// Repository handles database operations for price alerts
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new alert repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new alert and fills in its generated fields. Symbols are
// stored uppercase so they line up with snapshot price keys.
func (r *Repository) Create(ctx context.Context, alert *models.Alert) error {
	if !alert.Direction.Valid() {
		return fmt.Errorf("invalid alert direction: %q", alert.Direction)
	}
	if alert.Threshold.IsNegative() {
		return fmt.Errorf("alert threshold must not be negative")
	}

	alert.Symbol = strings.ToUpper(strings.TrimSpace(alert.Symbol))
	if alert.Symbol == "" {
		return fmt.Errorf("alert symbol is required")
	}

	query := `
		INSERT INTO price_alerts (user_id, symbol, threshold, direction, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		alert.UserID,
		alert.Symbol,
		alert.Threshold,
		alert.Direction,
	).Scan(&alert.ID, &alert.IsActive, &alert.CreatedAt, &alert.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// ListActive retrieves all alerts still armed, oldest first so long-standing
// alerts are evaluated before fresh ones.
func (r *Repository) ListActive(ctx context.Context) ([]models.Alert, error) {
	query := `
		SELECT id, user_id, symbol, threshold, direction, is_active,
		       triggered_at, created_at, updated_at
		FROM price_alerts
		WHERE is_active = TRUE
		ORDER BY created_at ASC, id ASC
	`

	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query); err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}

	return alerts, nil
}

// ListByUser retrieves all alerts belonging to a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]models.Alert, error) {
	query := `
		SELECT id, user_id, symbol, threshold, direction, is_active,
		       triggered_at, created_at, updated_at
		FROM price_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list alerts for user %d: %w", userID, err)
	}

	return alerts, nil
}

// MarkTriggered persists the fired state for a batch of alerts in a single
// transaction. Each alert keeps its own trigger timestamp.
func (r *Repository) MarkTriggered(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE price_alerts
		SET is_active = FALSE,
		    triggered_at = $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	for _, alert := range alerts {
		if _, err := tx.ExecContext(ctx, query, alert.TriggeredAt, alert.ID); err != nil {
			return fmt.Errorf("failed to mark alert %d triggered: %w", alert.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
