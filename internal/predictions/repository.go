// Package predictions persists forecast results and keeps the history table
// from growing without bound.
package predictions

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cryptoknight/knightd/pkg/models"
)

// Repository handles database operations for predictions
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new prediction repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Save inserts a prediction record and fills in its generated fields.
func (r *Repository) Save(ctx context.Context, prediction *models.Prediction) error {
	query := `
		INSERT INTO predictions (user_id, symbol, timeframe, prediction, confidence, metrics, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		prediction.UserID,
		prediction.Symbol,
		prediction.Timeframe,
		prediction.Label,
		prediction.Confidence,
		prediction.Metrics,
		prediction.Notes,
	).Scan(&prediction.ID, &prediction.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

// History retrieves the newest predictions for a user, most recent first.
func (r *Repository) History(ctx context.Context, userID int64, limit int) ([]models.Prediction, error) {
	query := `
		SELECT id, user_id, symbol, timeframe, prediction, confidence, metrics, notes, created_at
		FROM predictions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var records []models.Prediction
	if err := r.db.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to load prediction history: %w", err)
	}

	return records, nil
}

// Prune deletes everything but the newest keep records across all users and
// reports how many rows went away.
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM predictions
		WHERE id NOT IN (
			SELECT id FROM predictions
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		)
	`

	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune predictions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
