// Package config defines the top-level configuration for the clash.gg sniper
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CLASHGG_* environment variables.
type Config struct {
	Clash      ClashConfig      `toml:"clash"`
	Sniper     SniperConfig     `toml:"sniper"`
	Seller     SellerConfig     `toml:"seller"`
	Pricempire PricempireConfig `toml:"pricempire"`
	Steam      SteamConfig      `toml:"steam"`
	Solver     SolverConfig     `toml:"solver"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	TradeLog   TradeLogConfig   `toml:"tradelog"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// ClashConfig holds marketplace endpoints and credentials.
type ClashConfig struct {
	APIURL       string `toml:"api_url"`
	WSURL        string `toml:"ws_url"`
	RefreshToken string `toml:"refresh_token"`
	// IPAllowlisted skips the anti-bot challenge solve during credential
	// refresh; only valid for deployments whose egress IP the marketplace
	// has allow-listed.
	IPAllowlisted bool `toml:"ip_allowlisted"`
	// CoinConversion converts coin cents to USD cents: usd = coins / conversion.
	CoinConversion float64 `toml:"coin_conversion"`
}

// SniperConfig holds the purchase decision policy. Prices are in coin cents.
type SniperConfig struct {
	Enabled  bool  `toml:"enabled"`
	MinPrice int64 `toml:"min_price"`
	MaxPrice int64 `toml:"max_price"`
	// MaxMarkup bounds askPrice/referencePrice, both in coin cents.
	MaxMarkup float64 `toml:"max_markup"`
	// CheckFairValue enables the external price check: the ask converted to
	// USD divided by the feed's fair value must not exceed MaxFairRatio.
	CheckFairValue bool     `toml:"check_fair_value"`
	MaxFairRatio   float64  `toml:"max_fair_ratio"`
	IgnoreItems    []string `toml:"ignore_items"`
	IgnoreStrings  []string `toml:"ignore_strings"`
}

// SellerConfig holds the bulk-sell policy.
type SellerConfig struct {
	Enabled bool `toml:"enabled"`
	// Markup multiplies the site valuation to produce the ask price.
	Markup float64 `toml:"markup"`
	// RelistInterval re-lists unlisted inventory periodically; zero disables
	// the periodic job (relisting on system cancel still happens).
	RelistInterval duration `toml:"relist_interval"`
	SellDopplers   bool     `toml:"sell_dopplers"`
	OfferMessage   string   `toml:"offer_message"`
}

// PricempireConfig holds the external pricing feed parameters.
type PricempireConfig struct {
	APIURL string `toml:"api_url"`
	APIKey string `toml:"api_key"`
	// FetchOnStart refreshes the price cache before the first listing is
	// evaluated.
	FetchOnStart  bool     `toml:"fetch_on_start"`
	FetchInterval duration `toml:"fetch_interval"`
}

// SteamConfig holds the trade-agent endpoint used to send and cancel Steam
// trade offers.
type SteamConfig struct {
	AgentURL string `toml:"agent_url"`
}

// SolverConfig holds the anti-bot challenge solver sidecar endpoint.
type SolverConfig struct {
	URL     string   `toml:"url"`
	Timeout duration `toml:"timeout"`
}

// RedisConfig holds Redis connection parameters for the price cache.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the transaction
// history. Leave DSN and Host empty to run without a database.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// TradeLogConfig holds the append-only transaction log paths.
type TradeLogConfig struct {
	PurchasesPath string `toml:"purchases_path"`
	SalesPath     string `toml:"sales_path"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sane defaults. Loaded files and
// environment overrides are applied on top of this.
func Defaults() Config {
	return Config{
		Clash: ClashConfig{
			APIURL:         "https://clash.gg/api",
			WSURL:          "wss://ws.clash.gg/",
			CoinConversion: 1.6,
		},
		Sniper: SniperConfig{
			Enabled:      true,
			MinPrice:     100,
			MaxPrice:     1_000_000,
			MaxMarkup:    1.2,
			MaxFairRatio: 1.0,
		},
		Seller: SellerConfig{
			Markup:         1.05,
			RelistInterval: duration{time.Hour},
			OfferMessage:   "Thanks for your purchase!",
		},
		Pricempire: PricempireConfig{
			APIURL:        "https://api.pricempire.com",
			FetchOnStart:  true,
			FetchInterval: duration{time.Hour},
		},
		Solver: SolverConfig{
			Timeout: duration{2 * time.Minute},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			SSLMode: "disable",
		},
		TradeLog: TradeLogConfig{
			PurchasesPath: "logs/purchases.jsonl",
			SalesPath:     "logs/sales.jsonl",
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for missing or contradictory settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Clash.RefreshToken) == "" {
		return fmt.Errorf("config: clash.refresh_token is required")
	}
	if c.Clash.CoinConversion <= 0 {
		return fmt.Errorf("config: clash.coin_conversion must be positive")
	}
	if c.Sniper.Enabled {
		if c.Sniper.MinPrice < 0 || c.Sniper.MaxPrice <= 0 {
			return fmt.Errorf("config: sniper price band must be positive")
		}
		if c.Sniper.MinPrice > c.Sniper.MaxPrice {
			return fmt.Errorf("config: sniper.min_price exceeds sniper.max_price")
		}
		if c.Sniper.MaxMarkup <= 0 {
			return fmt.Errorf("config: sniper.max_markup must be positive")
		}
		if c.Sniper.CheckFairValue {
			if c.Sniper.MaxFairRatio <= 0 {
				return fmt.Errorf("config: sniper.max_fair_ratio must be positive")
			}
			if strings.TrimSpace(c.Pricempire.APIKey) == "" {
				return fmt.Errorf("config: pricempire.api_key is required when sniper.check_fair_value is set")
			}
		}
	}
	if c.Seller.Enabled {
		if c.Seller.Markup <= 0 {
			return fmt.Errorf("config: seller.markup must be positive")
		}
		if strings.TrimSpace(c.Steam.AgentURL) == "" {
			return fmt.Errorf("config: steam.agent_url is required when seller.enabled is set")
		}
	}
	if !c.Clash.IPAllowlisted && strings.TrimSpace(c.Solver.URL) == "" {
		return fmt.Errorf("config: solver.url is required unless clash.ip_allowlisted is set")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
