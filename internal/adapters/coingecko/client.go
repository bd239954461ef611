package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/metrics"
)

const (
	marketsEndpoint = "/coins/markets"
	globalEndpoint  = "/global"
)

// Client talks to the CoinGecko REST API. Requests pass through a rate
// limiter and a circuit breaker so a flapping upstream is not hammered.
type Client struct {
	baseURL  string
	currency string
	coins    []string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

// NewClient creates a CoinGecko client for the configured coin set
func NewClient(cfg *config.MarketConfig) *Client {
	settings := gobreaker.Settings{
		Name:     "coingecko",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.APIURL, "/"),
		currency: cfg.Currency,
		coins:    cfg.Coins,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// Markets fetches raw market rows for the configured coin set, newest
// sparkline included.
func (c *Client) Markets(ctx context.Context) ([]MarketRow, error) {
	params := url.Values{}
	params.Set("vs_currency", c.currency)
	params.Set("ids", strings.Join(c.coins, ","))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(len(c.coins)))
	params.Set("page", "1")
	params.Set("sparkline", "true")
	params.Set("price_change_percentage", "1h,24h,7d")

	var rows []MarketRow
	if err := c.getJSON(ctx, marketsEndpoint, params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Global fetches the market-wide aggregate document.
func (c *Client) Global(ctx context.Context) (*GlobalData, error) {
	var envelope globalEnvelope
	if err := c.getJSON(ctx, globalEndpoint, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	requestURL := c.baseURL + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, requestURL)
	})
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
