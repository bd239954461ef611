package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says which way a price alert fires
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Alert is a one-shot price threshold watch. Once triggered it is deactivated
// and keeps its trigger timestamp; it never fires twice.
type Alert struct {
	ID          int64           `json:"id" db:"id"`
	UserID      int64           `json:"-" db:"user_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Direction   Direction       `json:"direction" db:"direction"`
	Threshold   decimal.Decimal `json:"threshold" db:"threshold"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty" db:"triggered_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ShouldTrigger compares price against the threshold. Both boundaries are
// inclusive: an "above" alert fires at price >= threshold, a "below" alert at
// price <= threshold.
func (a *Alert) ShouldTrigger(price float64) bool {
	p := decimal.NewFromFloat(price)
	if a.Direction == DirectionAbove {
		return p.GreaterThanOrEqual(a.Threshold)
	}
	return p.LessThanOrEqual(a.Threshold)
}

// MarkTriggered deactivates the alert and records when it fired.
func (a *Alert) MarkTriggered(now time.Time) {
	a.IsActive = false
	a.TriggeredAt = &now
}
