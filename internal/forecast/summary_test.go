package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cryptoknight/knightd/pkg/models"
)

// marketSnapshot builds a snapshot with one chart series per symbol, all
// observed at a fixed instant.
func marketSnapshot(tickers []models.Ticker, charts map[string][]float64) models.Snapshot {
	observedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := models.Snapshot{
		ObservedAt: observedAt,
		Tickers:    tickers,
		Charts:     make(map[string]models.ChartSeries, len(charts)),
	}
	for symbol, prices := range charts {
		snap.Charts[symbol] = models.ChartSeries{
			Symbol:          symbol,
			Prices:          prices,
			LastUpdated:     observedAt,
			IntervalMinutes: 5,
		}
	}
	return snap
}

// ramp generates n points starting at start, each step apart.
func ramp(start float64, n int, step float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + float64(i)*step
	}
	return prices
}

func fptr(v float64) *float64 { return &v }

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// TestNormalizeTimeframe verifies horizon normalization and the default.
func TestNormalizeTimeframe(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"15m", "15m"},
		{"1h", "1h"},
		{"4h", "4h"},
		{"1d", "1d"},
		{"1H", "1h"},
		{" 4h ", "4h"},
		{"", "15m"},
		{"2h", "15m"},
		{"weekly", "15m"},
	}

	for _, tc := range testCases {
		if got := NormalizeTimeframe(tc.input); got != tc.expected {
			t.Errorf("NormalizeTimeframe(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

// TestSummarizeStats verifies the trailing-window aggregates on a rising
// series that exceeds the window size.
func TestSummarizeStats(t *testing.T) {
	price := 299.0
	snap := marketSnapshot(
		[]models.Ticker{{
			Symbol:        "BTC",
			Name:          "Bitcoin",
			CurrentPrice:  fptr(price),
			Change1h:      0.5,
			Change24h:     4,
			Change7d:      8,
			MarketCap:     1000000,
			MarketCapRank: 1,
			TotalVolume:   500000,
		}},
		map[string][]float64{"BTC": ramp(100, 200, 1)},
	)

	summary, err := Summarize(snap, "btc", "1h")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if summary.Symbol != "BTC" {
		t.Errorf("Symbol mismatch. Expected: BTC, Got: %s", summary.Symbol)
	}
	if summary.Timeframe != "1h" {
		t.Errorf("Timeframe mismatch. Expected: 1h, Got: %s", summary.Timeframe)
	}
	if summary.CurrentPrice == nil || *summary.CurrentPrice != price {
		t.Errorf("CurrentPrice mismatch. Got: %v", summary.CurrentPrice)
	}
	if summary.Change24h != 4 || summary.Change7d != 8 || summary.Change1h != 0.5 {
		t.Errorf("Change fields not carried over: %+v", summary)
	}

	// The 200-point ramp is trimmed to its last 168 points (132..299).
	stats := summary.Stats
	if stats.High != 299 {
		t.Errorf("High mismatch. Expected: 299, Got: %v", stats.High)
	}
	if stats.Low != 132 {
		t.Errorf("Low mismatch. Expected: 132, Got: %v", stats.Low)
	}
	if stats.Momentum != 167 {
		t.Errorf("Momentum mismatch. Expected: 167, Got: %v", stats.Momentum)
	}
	if stats.Latest == nil || *stats.Latest != 299 {
		t.Errorf("Latest mismatch. Got: %v", stats.Latest)
	}

	// Population standard deviation of 168 consecutive integers.
	expectedVol := math.Sqrt((168*168 - 1) / 12.0)
	if !almostEqual(stats.Volatility, expectedVol, 1e-6) {
		t.Errorf("Volatility mismatch. Expected: %v, Got: %v", expectedVol, stats.Volatility)
	}
}

// TestSummarizeSinglePoint verifies degenerate-series behavior.
func TestSummarizeSinglePoint(t *testing.T) {
	snap := marketSnapshot(
		[]models.Ticker{{Symbol: "SOL", CurrentPrice: fptr(123.45)}},
		map[string][]float64{"SOL": {123.45}},
	)

	summary, err := Summarize(snap, "SOL", "15m")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	stats := summary.Stats
	if stats.Momentum != 0 {
		t.Errorf("Momentum of a single point must be 0, got %v", stats.Momentum)
	}
	if stats.Volatility != 0 {
		t.Errorf("Volatility of a single point must be 0, got %v", stats.Volatility)
	}
	if stats.High != 123.45 || stats.Low != 123.45 {
		t.Errorf("High/Low mismatch: %v / %v", stats.High, stats.Low)
	}
	if stats.Latest == nil || *stats.Latest != 123.45 {
		t.Errorf("Latest mismatch. Got: %v", stats.Latest)
	}
}

// TestSummarizeEmptySeries verifies that a ticker without chart data still
// summarizes, with zeroed stats and no latest price.
func TestSummarizeEmptySeries(t *testing.T) {
	snap := marketSnapshot([]models.Ticker{{Symbol: "ADA", Name: "Cardano"}}, nil)

	summary, err := Summarize(snap, "ada", "1d")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	stats := summary.Stats
	if stats.Volatility != 0 || stats.Momentum != 0 || stats.High != 0 || stats.Low != 0 {
		t.Errorf("Expected zeroed stats, got %+v", stats)
	}
	if stats.Latest != nil {
		t.Errorf("Latest must be nil for an empty series, got %v", *stats.Latest)
	}
	if summary.CurrentPrice != nil {
		t.Errorf("CurrentPrice must stay nil, got %v", *summary.CurrentPrice)
	}
}

// TestSummarizeUnknownSymbol verifies the sentinel error.
func TestSummarizeUnknownSymbol(t *testing.T) {
	snap := marketSnapshot([]models.Ticker{{Symbol: "BTC"}}, nil)

	_, err := Summarize(snap, "DOGE", "15m")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("Expected ErrSymbolNotFound, got %v", err)
	}
}
