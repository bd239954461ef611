package forecast

import (
	"fmt"
	"math"
	"strings"

	"github.com/cinar/indicator"

	"github.com/cryptoknight/knightd/pkg/models"
)

// DefaultTimeframe is substituted for empty or unrecognized horizons.
const DefaultTimeframe = "15m"

// SupportedTimeframes maps each accepted forecast horizon to the number of
// series points it spans.
var SupportedTimeframes = map[string]int{
	"15m": 16,
	"1h":  48,
	"4h":  96,
	"1d":  168,
}

// summaryWindow is the 1d horizon's point count. Series statistics always
// run over this trailing window regardless of the requested timeframe.
const summaryWindow = 168

// NormalizeTimeframe lowercases tf and falls back to DefaultTimeframe when
// the result is not a supported horizon.
func NormalizeTimeframe(tf string) string {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if _, ok := SupportedTimeframes[tf]; ok {
		return tf
	}
	return DefaultTimeframe
}

// SeriesStats aggregates the trailing price window of one symbol.
type SeriesStats struct {
	Volatility float64  `json:"volatility"`
	Momentum   float64  `json:"momentum"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Latest     *float64 `json:"latest"`
}

// Summary is the structured market view a forecaster works from. Field order
// mirrors the JSON the reasoning delegate is prompted with.
type Summary struct {
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name"`
	Timeframe     string      `json:"timeframe"`
	CurrentPrice  *float64    `json:"current_price"`
	MarketCap     float64     `json:"market_cap"`
	MarketCapRank int         `json:"market_cap_rank"`
	TotalVolume   float64     `json:"total_volume"`
	Change24h     float64     `json:"price_change_percentage_24h"`
	Change7d      float64     `json:"price_change_percentage_7d"`
	Change1h      float64     `json:"price_change_percentage_1h"`
	Stats         SeriesStats `json:"sparkline_stats"`
}

// Summarize builds the forecast input for symbol from snapshot. The error
// wraps ErrSymbolNotFound when the snapshot has no row for the symbol.
func Summarize(snapshot models.Snapshot, symbol, timeframe string) (Summary, error) {
	ticker, ok := snapshot.Ticker(symbol)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, strings.ToUpper(symbol))
	}

	var window []float64
	if series, ok := snapshot.Series(symbol); ok {
		window = series.Prices
	}
	if len(window) > summaryWindow {
		window = window[len(window)-summaryWindow:]
	}

	return Summary{
		Symbol:        strings.ToUpper(ticker.Symbol),
		Name:          ticker.Name,
		Timeframe:     timeframe,
		CurrentPrice:  ticker.CurrentPrice,
		MarketCap:     ticker.MarketCap,
		MarketCapRank: ticker.MarketCapRank,
		TotalVolume:   ticker.TotalVolume,
		Change24h:     ticker.Change24h,
		Change7d:      ticker.Change7d,
		Change1h:      ticker.Change1h,
		Stats:         seriesStats(window),
	}, nil
}

// seriesStats computes the aggregates of the trailing window. An empty
// window yields zeros and a nil latest price.
func seriesStats(window []float64) SeriesStats {
	n := len(window)
	if n == 0 {
		return SeriesStats{}
	}

	// With period == n the last slot of each rolling aggregate covers the
	// whole window.
	stats := SeriesStats{
		High: indicator.Max(n, window)[n-1],
		Low:  indicator.Min(n, window)[n-1],
	}
	if n > 1 {
		stats.Momentum = window[n-1] - window[0]
	}

	// Rounding can push the variance identity slightly negative on flat
	// series, which sqrt surfaces as NaN.
	volatility := indicator.Std(n, window)[n-1]
	if math.IsNaN(volatility) {
		volatility = 0
	}
	stats.Volatility = volatility

	latest := window[n-1]
	stats.Latest = &latest

	return stats
}
