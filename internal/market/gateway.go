// Package market serves normalized market data on top of the CoinGecko
// client, with TTL caching and stale-on-failure fallback. Consumers read
// snapshots through the gateway and never talk to the upstream directly.
package market

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/adapters/coingecko"
	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/pkg/cache"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/metrics"
	"github.com/cryptoknight/knightd/pkg/models"
)

const (
	snapshotKey = "market_data"
	globalKey   = "global_metrics"

	// maxSeriesPoints caps a chart series at 24h of 5-minute points.
	maxSeriesPoints = 288

	seriesIntervalMinutes = 5
)

// Upstream is the slice of the market data provider the gateway consumes.
type Upstream interface {
	Markets(ctx context.Context) ([]coingecko.MarketRow, error)
	Global(ctx context.Context) (*coingecko.GlobalData, error)
}

// Gateway caches normalized snapshots of the tracked market. A fetch failure
// is never surfaced to callers: the last cached value is served regardless of
// age, and an empty snapshot only when nothing was ever cached.
type Gateway struct {
	upstream  Upstream
	currency  string
	ttl       time.Duration
	snapshots *cache.Store[models.Snapshot]
	globals   *cache.Store[models.GlobalMetrics]

	now func() time.Time
}

// NewGateway creates a gateway over upstream with the configured cache TTL
func NewGateway(upstream Upstream, cfg *config.MarketConfig) *Gateway {
	return &Gateway{
		upstream:  upstream,
		currency:  strings.ToLower(cfg.Currency),
		ttl:       cfg.CacheTTL,
		snapshots: cache.New[models.Snapshot](),
		globals:   cache.New[models.GlobalMetrics](),
		now:       time.Now,
	}
}

// Snapshot returns the current market view. A fresh cache entry is returned
// as is; forceRefresh drops the entry before fetching, so a failed forced
// fetch yields an empty snapshot rather than the dropped one.
func (g *Gateway) Snapshot(ctx context.Context, forceRefresh bool) models.Snapshot {
	if !forceRefresh && g.snapshots.Fresh(snapshotKey, g.ttl) {
		if snap, ok := g.snapshots.Get(snapshotKey); ok {
			metrics.CacheHits.WithLabelValues(snapshotKey).Inc()
			return snap
		}
	}
	metrics.CacheMisses.WithLabelValues(snapshotKey).Inc()

	if forceRefresh {
		g.snapshots.Invalidate(snapshotKey)
	}

	rows, err := g.upstream.Markets(ctx)
	if err != nil {
		logger.Warn("market data fetch failed",
			zap.Error(err),
		)
		if snap, ok := g.snapshots.Get(snapshotKey); ok {
			metrics.StaleServes.WithLabelValues(snapshotKey).Inc()
			logger.Info("serving last known market snapshot",
				zap.Time("observed_at", snap.ObservedAt),
			)
			return snap
		}
		return g.emptySnapshot()
	}

	snap := g.normalize(rows, g.now())
	g.snapshots.Put(snapshotKey, snap)
	return snap
}

// GlobalMetrics returns the market-wide aggregates under the same caching
// and fallback discipline as Snapshot, on an independent cache key.
func (g *Gateway) GlobalMetrics(ctx context.Context) models.GlobalMetrics {
	if g.globals.Fresh(globalKey, g.ttl) {
		if gm, ok := g.globals.Get(globalKey); ok {
			metrics.CacheHits.WithLabelValues(globalKey).Inc()
			return gm
		}
	}
	metrics.CacheMisses.WithLabelValues(globalKey).Inc()

	data, err := g.upstream.Global(ctx)
	if err != nil {
		logger.Warn("global metrics fetch failed",
			zap.Error(err),
		)
		if gm, ok := g.globals.Get(globalKey); ok {
			metrics.StaleServes.WithLabelValues(globalKey).Inc()
			return gm
		}
		return models.GlobalMetrics{}
	}

	gm := models.GlobalMetrics{
		TotalMarketCap: data.TotalMarketCap[g.currency],
		TotalVolume24h: data.TotalVolume[g.currency],
		BTCDominance:   data.MarketCapPercentage["btc"],
		ETHDominance:   data.MarketCapPercentage["eth"],
		CapChange24h:   data.CapChange24hUSD,
	}
	g.globals.Put(globalKey, gm)
	return gm
}

// PriceLookup flattens the snapshot into symbol (uppercase) to price.
// Tickers with an unknown price are omitted rather than reported as zero.
func (g *Gateway) PriceLookup(ctx context.Context, forceRefresh bool) map[string]float64 {
	snap := g.Snapshot(ctx, forceRefresh)
	lookup := make(map[string]float64, len(snap.Tickers))
	for _, t := range snap.Tickers {
		if t.CurrentPrice == nil {
			continue
		}
		lookup[strings.ToUpper(t.Symbol)] = *t.CurrentPrice
	}
	return lookup
}

// PriceFor returns the price for one symbol, case-insensitively.
func (g *Gateway) PriceFor(ctx context.Context, symbol string, forceRefresh bool) (float64, bool) {
	price, ok := g.PriceLookup(ctx, forceRefresh)[strings.ToUpper(symbol)]
	return price, ok
}

func (g *Gateway) emptySnapshot() models.Snapshot {
	return models.Snapshot{
		ObservedAt: g.now(),
		Tickers:    []models.Ticker{},
		Charts:     map[string]models.ChartSeries{},
	}
}

// normalize converts raw upstream rows into an immutable snapshot.
func (g *Gateway) normalize(rows []coingecko.MarketRow, observedAt time.Time) models.Snapshot {
	tickers := make([]models.Ticker, 0, len(rows))
	charts := make(map[string]models.ChartSeries, len(rows))

	for _, row := range rows {
		symbol := strings.ToUpper(row.Symbol)
		change24h := row.Change24h.Value(g.currency)

		trend := models.TrendUp
		if change24h < 0 {
			trend = models.TrendDown
		}

		tickers = append(tickers, models.Ticker{
			Symbol:        symbol,
			Name:          row.Name,
			CurrentPrice:  row.CurrentPrice,
			Change1h:      row.Change1h.Value(g.currency),
			Change24h:     change24h,
			Change7d:      row.Change7d.Value(g.currency),
			MarketCap:     row.MarketCap,
			MarketCapRank: row.MarketCapRank,
			TotalVolume:   row.TotalVolume,
			Trend:         trend,
		})

		charts[symbol] = models.ChartSeries{
			Symbol:          symbol,
			Prices:          buildSeries(row.Sparkline.Values(), row.CurrentPrice),
			LastUpdated:     parseLastUpdated(row.LastUpdated, observedAt),
			IntervalMinutes: seriesIntervalMinutes,
		}
	}

	return models.Snapshot{
		ObservedAt: observedAt,
		Tickers:    tickers,
		Charts:     charts,
	}
}

// buildSeries keeps the newest maxSeriesPoints sparkline points and splices
// the live price over the final one so the series always ends at "now".
func buildSeries(points []float64, currentPrice *float64) []float64 {
	if len(points) > maxSeriesPoints {
		points = points[len(points)-maxSeriesPoints:]
	}

	if len(points) == 0 {
		if currentPrice == nil {
			return []float64{}
		}
		return []float64{*currentPrice}
	}

	if currentPrice != nil {
		points[len(points)-1] = *currentPrice
	}
	return points
}

// parseLastUpdated resolves the row timestamp against the observation time;
// the result is never earlier than observedAt and never zero.
func parseLastUpdated(value string, observedAt time.Time) time.Time {
	if value == "" {
		return observedAt
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return observedAt
	}
	if parsed.Before(observedAt) {
		return observedAt
	}
	return parsed
}
