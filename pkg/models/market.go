package models

import (
	"strings"
	"time"
)

// Trend labels the 24h direction of a ticker
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Ticker is one normalized market row for a tracked coin.
// CurrentPrice is a pointer because the upstream may omit it; consumers must
// treat a nil price as "unknown", never as zero.
type Ticker struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	CurrentPrice  *float64 `json:"current_price"`
	Change1h      float64  `json:"price_change_percentage_1h"`
	Change24h     float64  `json:"price_change_percentage_24h"`
	Change7d      float64  `json:"price_change_percentage_7d"`
	MarketCap     float64  `json:"market_cap"`
	MarketCapRank int      `json:"market_cap_rank"`
	TotalVolume   float64  `json:"total_volume"`
	Trend         Trend    `json:"trend"`
}

// ChartSeries is the recent price history attached to a ticker. Points are
// ordered oldest first and spaced IntervalMinutes apart.
type ChartSeries struct {
	Symbol          string    `json:"symbol"`
	Prices          []float64 `json:"prices"`
	LastUpdated     time.Time `json:"last_updated"`
	IntervalMinutes int       `json:"interval_minutes"`
}

// Snapshot is a normalized view of the market at one observation time.
// Snapshots are value objects: once built they are never mutated, so they can
// be shared across goroutines without locking.
type Snapshot struct {
	ObservedAt time.Time              `json:"observed_at"`
	Tickers    []Ticker               `json:"tickers"`
	Charts     map[string]ChartSeries `json:"chart_data"`
}

// Ticker returns the row for symbol, matched case-insensitively.
func (s Snapshot) Ticker(symbol string) (Ticker, bool) {
	for _, t := range s.Tickers {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return Ticker{}, false
}

// Series returns the chart series for symbol, matched case-insensitively.
func (s Snapshot) Series(symbol string) (ChartSeries, bool) {
	if cs, ok := s.Charts[strings.ToUpper(symbol)]; ok {
		return cs, true
	}
	for key, cs := range s.Charts {
		if strings.EqualFold(key, symbol) {
			return cs, true
		}
	}
	return ChartSeries{}, false
}

// GlobalMetrics is the market-wide aggregate view.
type GlobalMetrics struct {
	TotalMarketCap float64 `json:"market_cap"`
	TotalVolume24h float64 `json:"volume_24h"`
	BTCDominance   float64 `json:"btc_dominance"`
	ETHDominance   float64 `json:"eth_dominance"`
	CapChange24h   float64 `json:"market_cap_change_percentage_24h_usd"`
}
