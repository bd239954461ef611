package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Label is a forecast verdict
type Label string

const (
	LabelBullish Label = "Bullish"
	LabelBearish Label = "Bearish"
	LabelNeutral Label = "Neutral"
)

// QualityMetrics carries the self-reported quality of a forecaster. Values
// are ratios in [0, 1]. Stored as JSONB alongside each prediction.
type QualityMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Value implements driver.Valuer so the metrics can be written to a JSONB
// column directly.
func (m QualityMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for reading the JSONB column back.
func (m *QualityMetrics) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = QualityMetrics{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into QualityMetrics", src)
	}
}

// PredictionResult is the outcome of one forecast request.
type PredictionResult struct {
	Symbol     string         `json:"symbol"`
	Label      Label          `json:"prediction"`
	Confidence float64        `json:"confidence"`
	Metrics    QualityMetrics `json:"metrics"`
	Timeframe  string         `json:"timeframe"`
}

// Prediction is a persisted forecast record tied to the requesting user.
type Prediction struct {
	ID         int64          `json:"id" db:"id"`
	UserID     int64          `json:"-" db:"user_id"`
	Symbol     string         `json:"symbol" db:"symbol"`
	Timeframe  string         `json:"timeframe" db:"timeframe"`
	Label      Label          `json:"prediction" db:"prediction"`
	Confidence float64        `json:"confidence" db:"confidence"`
	Metrics    QualityMetrics `json:"metrics" db:"metrics"`
	Notes      *string        `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
