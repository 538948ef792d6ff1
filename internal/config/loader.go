package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CLASHGG_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing file is not an
// error: the defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CLASHGG_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Clash ──
	setStr(&cfg.Clash.APIURL, "CLASHGG_API_URL")
	setStr(&cfg.Clash.WSURL, "CLASHGG_WS_URL")
	setStr(&cfg.Clash.RefreshToken, "CLASHGG_REFRESH_TOKEN")
	setBool(&cfg.Clash.IPAllowlisted, "CLASHGG_IP_ALLOWLISTED")
	setFloat64(&cfg.Clash.CoinConversion, "CLASHGG_COIN_CONVERSION")

	// ── Sniper ──
	setBool(&cfg.Sniper.Enabled, "CLASHGG_SNIPER_ENABLED")
	setInt64(&cfg.Sniper.MinPrice, "CLASHGG_SNIPER_MIN_PRICE")
	setInt64(&cfg.Sniper.MaxPrice, "CLASHGG_SNIPER_MAX_PRICE")
	setFloat64(&cfg.Sniper.MaxMarkup, "CLASHGG_SNIPER_MAX_MARKUP")
	setBool(&cfg.Sniper.CheckFairValue, "CLASHGG_SNIPER_CHECK_FAIR_VALUE")
	setFloat64(&cfg.Sniper.MaxFairRatio, "CLASHGG_SNIPER_MAX_FAIR_RATIO")
	setStringSlice(&cfg.Sniper.IgnoreItems, "CLASHGG_SNIPER_IGNORE_ITEMS")
	setStringSlice(&cfg.Sniper.IgnoreStrings, "CLASHGG_SNIPER_IGNORE_STRINGS")

	// ── Seller ──
	setBool(&cfg.Seller.Enabled, "CLASHGG_SELLER_ENABLED")
	setFloat64(&cfg.Seller.Markup, "CLASHGG_SELLER_MARKUP")
	setDuration(&cfg.Seller.RelistInterval, "CLASHGG_SELLER_RELIST_INTERVAL")
	setBool(&cfg.Seller.SellDopplers, "CLASHGG_SELLER_SELL_DOPPLERS")
	setStr(&cfg.Seller.OfferMessage, "CLASHGG_SELLER_OFFER_MESSAGE")

	// ── Pricempire ──
	setStr(&cfg.Pricempire.APIURL, "CLASHGG_PRICEMPIRE_API_URL")
	setStr(&cfg.Pricempire.APIKey, "CLASHGG_PRICEMPIRE_API_KEY")
	setBool(&cfg.Pricempire.FetchOnStart, "CLASHGG_PRICEMPIRE_FETCH_ON_START")
	setDuration(&cfg.Pricempire.FetchInterval, "CLASHGG_PRICEMPIRE_FETCH_INTERVAL")

	// ── Steam / Solver ──
	setStr(&cfg.Steam.AgentURL, "CLASHGG_STEAM_AGENT_URL")
	setStr(&cfg.Solver.URL, "CLASHGG_SOLVER_URL")
	setDuration(&cfg.Solver.Timeout, "CLASHGG_SOLVER_TIMEOUT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CLASHGG_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CLASHGG_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CLASHGG_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CLASHGG_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CLASHGG_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CLASHGG_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CLASHGG_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CLASHGG_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CLASHGG_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CLASHGG_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CLASHGG_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CLASHGG_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CLASHGG_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CLASHGG_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CLASHGG_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CLASHGG_POSTGRES_RUN_MIGRATIONS")

	// ── Trade log ──
	setStr(&cfg.TradeLog.PurchasesPath, "CLASHGG_TRADELOG_PURCHASES_PATH")
	setStr(&cfg.TradeLog.SalesPath, "CLASHGG_TRADELOG_SALES_PATH")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "CLASHGG_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "CLASHGG_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CLASHGG_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "CLASHGG_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "CLASHGG_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
