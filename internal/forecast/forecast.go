// Package forecast produces directional market forecasts out of normalized
// snapshots. Two engines implement the same contract: a deterministic
// heuristic that scores the summarized series locally, and a delegate that
// hands the summary to an external reasoning model.
package forecast

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/cryptoknight/knightd/pkg/models"
)

var (
	// ErrSymbolNotFound reports that the requested symbol has no row in the
	// market snapshot handed to the engine.
	ErrSymbolNotFound = errors.New("symbol not found in market snapshot")

	// ErrMalformedResponse reports a delegate reply no JSON object could be
	// recovered from.
	ErrMalformedResponse = errors.New("unable to parse prediction response")
)

// Forecaster turns a market snapshot into a verdict for one symbol. Engines
// remember the quality metrics of their most recent forecast and report them
// from Retrain.
type Forecaster interface {
	Predict(ctx context.Context, snapshot models.Snapshot, symbol, timeframe string) (models.PredictionResult, error)
	Retrain() models.QualityMetrics
}

// clampRatio bounds value to [0, 1]. Non-finite input collapses to fallback.
func clampRatio(value, fallback float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// ratioFrom coerces a decoded JSON value into a [0, 1] ratio. Absent or
// non-numeric values yield fallback.
func ratioFrom(value interface{}, fallback float64) float64 {
	number, ok := toFloat(value)
	if !ok {
		return fallback
	}
	return clampRatio(number, fallback)
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case string:
		number, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
			return 0, false
		}
		return number, true
	}
	return 0, false
}
