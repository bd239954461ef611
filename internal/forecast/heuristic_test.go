package forecast

import (
	"context"
	"errors"
	"testing"

	"github.com/cryptoknight/knightd/pkg/models"
)

// TestHeuristicPredictRisingMarket verifies that a steadily rising series
// with positive change percentages is labeled bullish at high confidence.
func TestHeuristicPredictRisingMarket(t *testing.T) {
	snap := marketSnapshot(
		[]models.Ticker{{
			Symbol:       "BTC",
			Name:         "Bitcoin",
			CurrentPrice: fptr(299),
			Change1h:     0.5,
			Change24h:    4,
			Change7d:     8,
		}},
		map[string][]float64{"BTC": ramp(100, 200, 1)},
	)

	result, err := NewHeuristic().Predict(context.Background(), snap, "btc", "1h")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if result.Label != models.LabelBullish {
		t.Errorf("Label mismatch. Expected: Bullish, Got: %s", result.Label)
	}
	if result.Symbol != "BTC" {
		t.Errorf("Symbol mismatch. Expected: BTC, Got: %s", result.Symbol)
	}
	if result.Timeframe != "1h" {
		t.Errorf("Timeframe mismatch. Expected: 1h, Got: %s", result.Timeframe)
	}
	// The momentum term alone pushes the score far past the confidence cap.
	if !almostEqual(result.Confidence, 0.95, 1e-9) {
		t.Errorf("Confidence mismatch. Expected: 0.95, Got: %v", result.Confidence)
	}
	if !almostEqual(result.Metrics.Accuracy, 0.8375, 1e-9) {
		t.Errorf("Accuracy mismatch. Expected: 0.8375, Got: %v", result.Metrics.Accuracy)
	}
	if !almostEqual(result.Metrics.Precision, 0.8175, 1e-9) {
		t.Errorf("Precision mismatch. Expected: 0.8175, Got: %v", result.Metrics.Precision)
	}
	if !almostEqual(result.Metrics.Recall, 0.7875, 1e-9) {
		t.Errorf("Recall mismatch. Expected: 0.7875, Got: %v", result.Metrics.Recall)
	}
}

// TestHeuristicPredictFallingMarket verifies the bearish side.
func TestHeuristicPredictFallingMarket(t *testing.T) {
	snap := marketSnapshot(
		[]models.Ticker{{
			Symbol:       "ETH",
			CurrentPrice: fptr(301),
			Change1h:     -0.5,
			Change24h:    -4,
			Change7d:     -8,
		}},
		map[string][]float64{"ETH": ramp(500, 200, -1)},
	)

	result, err := NewHeuristic().Predict(context.Background(), snap, "ETH", "4h")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if result.Label != models.LabelBearish {
		t.Errorf("Label mismatch. Expected: Bearish, Got: %s", result.Label)
	}
	if !almostEqual(result.Confidence, 0.95, 1e-9) {
		t.Errorf("Confidence mismatch. Expected: 0.95, Got: %v", result.Confidence)
	}
}

// TestHeuristicScoreBoundaries verifies the inclusive +-2 label cutoffs.
// The series is a single flat point so only the change terms contribute.
func TestHeuristicScoreBoundaries(t *testing.T) {
	testCases := []struct {
		name     string
		change7d float64
		expected models.Label
	}{
		{"score exactly +2 is bullish", 10, models.LabelBullish},
		{"score exactly -2 is bearish", -10, models.LabelBearish},
		{"score just below +2 is neutral", 9.9, models.LabelNeutral},
		{"score just above -2 is neutral", -9.9, models.LabelNeutral},
		{"zero score is neutral", 0, models.LabelNeutral},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			snap := marketSnapshot(
				[]models.Ticker{{
					Symbol:       "BNB",
					CurrentPrice: fptr(1000),
					Change7d:     tc.change7d,
				}},
				map[string][]float64{"BNB": {1000}},
			)

			result, err := NewHeuristic().Predict(context.Background(), snap, "BNB", "15m")
			if err != nil {
				t.Fatalf("Predict failed: %v", err)
			}
			if result.Label != tc.expected {
				t.Errorf("Label mismatch. Expected: %s, Got: %s", tc.expected, result.Label)
			}
		})
	}
}

// TestHeuristicPredictNoSeries verifies a ticker without chart data and
// without a price still yields a neutral verdict instead of failing.
func TestHeuristicPredictNoSeries(t *testing.T) {
	snap := marketSnapshot([]models.Ticker{{Symbol: "ADA"}}, nil)

	result, err := NewHeuristic().Predict(context.Background(), snap, "ADA", "")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if result.Label != models.LabelNeutral {
		t.Errorf("Label mismatch. Expected: Neutral, Got: %s", result.Label)
	}
	if !almostEqual(result.Confidence, 0.5, 1e-9) {
		t.Errorf("Confidence mismatch. Expected: 0.5, Got: %v", result.Confidence)
	}
	if result.Timeframe != DefaultTimeframe {
		t.Errorf("Timeframe mismatch. Expected: %s, Got: %s", DefaultTimeframe, result.Timeframe)
	}
}

// TestHeuristicPredictUnknownSymbol verifies the sentinel error.
func TestHeuristicPredictUnknownSymbol(t *testing.T) {
	snap := marketSnapshot([]models.Ticker{{Symbol: "BTC"}}, nil)

	_, err := NewHeuristic().Predict(context.Background(), snap, "XRP", "1h")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("Expected ErrSymbolNotFound, got %v", err)
	}
}

// TestHeuristicRetrain verifies that Retrain reports zeros before any
// forecast and the metrics of the last one after.
func TestHeuristicRetrain(t *testing.T) {
	h := NewHeuristic()

	if got := h.Retrain(); got != (models.QualityMetrics{}) {
		t.Errorf("Expected zeroed metrics before first forecast, got %+v", got)
	}

	snap := marketSnapshot(
		[]models.Ticker{{Symbol: "BTC", CurrentPrice: fptr(250)}},
		map[string][]float64{"BTC": {250}},
	)
	result, err := h.Predict(context.Background(), snap, "BTC", "15m")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if got := h.Retrain(); got != result.Metrics {
		t.Errorf("Retrain mismatch. Expected: %+v, Got: %+v", result.Metrics, got)
	}
}
