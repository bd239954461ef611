package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Market     MarketConfig
	Forecast   ForecastConfig
	Alerts     AlertsConfig
	Mail       MailConfig
	Telegram   TelegramConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	API        APIConfig
	Logging    LoggingConfig
}

// MarketConfig represents the market data provider and cache parameters
type MarketConfig struct {
	APIURL         string        `envconfig:"COINGECKO_API_URL" default:"https://api.coingecko.com/api/v3"`
	Coins          []string      `envconfig:"MARKET_COINS" default:"bitcoin,ethereum,solana,binancecoin,cardano"`
	Currency       string        `envconfig:"PREFERRED_CURRENCY" default:"usd"`
	CacheTTL       time.Duration `envconfig:"CACHE_TIMEOUT" default:"300s"`
	RequestTimeout time.Duration `envconfig:"MARKET_REQUEST_TIMEOUT" default:"10s"`
	RateLimitRPS   float64       `envconfig:"MARKET_RATE_LIMIT_RPS" default:"0.5"`
	RateLimitBurst int           `envconfig:"MARKET_RATE_LIMIT_BURST" default:"2"`
}

// ForecastConfig represents forecasting parameters
type ForecastConfig struct {
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"false"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	DefaultSymbol string `envconfig:"FORECAST_DEFAULT_SYMBOL" default:"BTC"`
	Retention     int    `envconfig:"PREDICTION_RETENTION" default:"50"`
}

// DelegateEnabled reports whether an external model is configured for
// forecasting. Without a key the deterministic heuristic is used.
func (c *ForecastConfig) DelegateEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// AlertsConfig represents the alert monitor parameters
type AlertsConfig struct {
	MonitorEnabled  bool          `envconfig:"ALERT_MONITOR_ENABLED" default:"true"`
	MonitorInterval time.Duration `envconfig:"ALERT_MONITOR_INTERVAL" default:"60s"`
}

// minMonitorInterval bounds how often the monitor may hit the upstream.
const minMonitorInterval = 30 * time.Second

// Interval returns the monitor interval, floored at 30 seconds regardless of
// configuration.
func (c *AlertsConfig) Interval() time.Duration {
	if c.MonitorInterval < minMonitorInterval {
		return minMonitorInterval
	}
	return c.MonitorInterval
}

// MailConfig represents the outbound email transport
type MailConfig struct {
	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY" required:"false"`
	FromEmail      string `envconfig:"MAIL_FROM_EMAIL" required:"false"`
}

// TelegramConfig represents the optional Telegram announcement channel
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
}

// Enabled reports whether the Telegram channel is fully configured.
func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	Name           string `envconfig:"DB_NAME" default:"cryptoknight"`
	User           string `envconfig:"DB_USER" required:"true"`
	Password       string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ClickHouseConfig represents the optional observation history sink
type ClickHouseConfig struct {
	DSN            string        `envconfig:"CLICKHOUSE_DSN" required:"false"`
	RecordInterval time.Duration `envconfig:"CLICKHOUSE_RECORD_INTERVAL" default:"5m"`
}

// Enabled reports whether observation recording is configured.
func (c *ClickHouseConfig) Enabled() bool {
	return c.DSN != ""
}

// APIConfig represents the HTTP surface
type APIConfig struct {
	Addr           string        `envconfig:"API_ADDR" default:":8080"`
	OpsAddr        string        `envconfig:"OPS_ADDR" default:":8081"`
	StreamInterval time.Duration `envconfig:"API_STREAM_INTERVAL" default:"5s"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from the environment. A .env file is loaded first
// when present, but plain environment variables work without one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if len(c.Market.Coins) == 0 {
		return fmt.Errorf("at least one market coin must be configured")
	}
	if c.Market.Currency == "" {
		return fmt.Errorf("market currency is required")
	}
	if c.Market.CacheTTL <= 0 {
		return fmt.Errorf("market cache ttl must be positive")
	}
	if c.Market.RequestTimeout <= 0 {
		return fmt.Errorf("market request timeout must be positive")
	}

	if c.Forecast.Retention < 1 {
		return fmt.Errorf("prediction retention must be at least 1")
	}

	if c.Alerts.MonitorInterval <= 0 {
		return fmt.Errorf("alert check interval must be positive")
	}

	if c.API.Addr == "" || c.API.OpsAddr == "" {
		return fmt.Errorf("api and ops listen addresses are required")
	}
	if c.API.StreamInterval <= 0 {
		return fmt.Errorf("api stream interval must be positive")
	}

	c.Market.Currency = strings.ToLower(c.Market.Currency)

	return nil
}
