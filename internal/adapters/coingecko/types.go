package coingecko

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// MarketRow is one row of /coins/markets as the API serves it. Percentage
// fields vary in shape between plan tiers, so they decode through ChangePct.
type MarketRow struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	CurrentPrice  *float64  `json:"current_price"`
	MarketCap     float64   `json:"market_cap"`
	MarketCapRank int       `json:"market_cap_rank"`
	TotalVolume   float64   `json:"total_volume"`
	Change1h      ChangePct `json:"price_change_percentage_1h_in_currency"`
	Change24h     ChangePct `json:"price_change_percentage_24h"`
	Change7d      ChangePct `json:"price_change_percentage_7d_in_currency"`
	Sparkline     Sparkline `json:"sparkline_in_7d"`
	LastUpdated   string    `json:"last_updated"`
}

// ChangePct holds a percentage the API serves as a bare number, a quoted
// number, null, or a map keyed by quote currency.
type ChangePct struct {
	raw json.RawMessage
}

// UnmarshalJSON keeps the raw bytes for lazy coercion.
func (p *ChangePct) UnmarshalJSON(data []byte) error {
	p.raw = append(p.raw[:0], data...)
	return nil
}

// Value resolves the percentage for currency. Unparseable or missing values
// resolve to zero; a currency map falls back to usd.
func (p ChangePct) Value(currency string) float64 {
	if len(p.raw) == 0 || bytes.Equal(p.raw, []byte("null")) {
		return 0
	}

	var n float64
	if err := json.Unmarshal(p.raw, &n); err == nil {
		return n
	}

	var s string
	if err := json.Unmarshal(p.raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
		return 0
	}

	var byCurrency map[string]*float64
	if err := json.Unmarshal(p.raw, &byCurrency); err == nil {
		if v := byCurrency[strings.ToLower(currency)]; v != nil {
			return *v
		}
		if v := byCurrency["usd"]; v != nil {
			return *v
		}
	}

	return 0
}

// Sparkline is the seven day price history attached to a market row.
type Sparkline struct {
	Price []*float64 `json:"price"`
}

// Values returns the series with null points dropped.
func (s Sparkline) Values() []float64 {
	out := make([]float64, 0, len(s.Price))
	for _, p := range s.Price {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// GlobalData is the payload of /global. Aggregates are keyed by quote
// currency; dominance percentages by coin symbol.
type GlobalData struct {
	TotalMarketCap      map[string]float64 `json:"total_market_cap"`
	TotalVolume         map[string]float64 `json:"total_volume"`
	MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
	CapChange24hUSD     float64            `json:"market_cap_change_percentage_24h_usd"`
}

type globalEnvelope struct {
	Data GlobalData `json:"data"`
}
