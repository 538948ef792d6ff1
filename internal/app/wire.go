package app

import (
	"context"
	"fmt"
	"log/slog"

	rediscache "github.com/easton36/clashgg-sniper/internal/cache/redis"
	"github.com/easton36/clashgg-sniper/internal/config"
	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/lister"
	"github.com/easton36/clashgg-sniper/internal/notify"
	"github.com/easton36/clashgg-sniper/internal/platform/clash"
	"github.com/easton36/clashgg-sniper/internal/platform/pricempire"
	"github.com/easton36/clashgg-sniper/internal/platform/steam"
	"github.com/easton36/clashgg-sniper/internal/solver"
	"github.com/easton36/clashgg-sniper/internal/store/postgres"
	"github.com/easton36/clashgg-sniper/internal/tradelog"
)

// Dependencies bundles the infrastructure the application needs: the
// marketplace clients, the price cache, the transaction log, and the
// notification fan-out. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	API     *clash.Client
	Session *clash.Session
	Steam   *steam.Client

	Prices     *rediscache.PriceCache
	Pricempire *pricempire.Client

	Trades   *tradelog.Log
	Notifier *notify.Notifier
	Lister   *lister.Lister
}

// Wire builds all infrastructure dependencies from the configuration. The
// returned cleanup function closes everything in reverse order.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Marketplace clients ---
	deps.API = clash.NewClient(cfg.Clash.APIURL)

	var challengeSolver *solver.Client
	if !cfg.Clash.IPAllowlisted {
		challengeSolver = solver.NewClient(cfg.Solver.URL, cfg.Solver.Timeout.Duration)
	}
	deps.Session = clash.NewSession(clash.SessionConfig{
		WSURL:         cfg.Clash.WSURL,
		RefreshToken:  cfg.Clash.RefreshToken,
		IPAllowlisted: cfg.Clash.IPAllowlisted,
	}, deps.API, solverOrNil(challengeSolver), logger)
	closers = append(closers, deps.Session.Close)

	deps.Steam = steam.NewClient(cfg.Steam.AgentURL)

	// --- Redis price cache (only when the fair-value check is on) ---
	if cfg.Sniper.CheckFairValue {
		redisClient, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		ttl := 2 * cfg.Pricempire.FetchInterval.Duration
		deps.Prices = rediscache.NewPriceCache(redisClient, ttl)
		deps.Pricempire = pricempire.NewClient(cfg.Pricempire.APIURL, cfg.Pricempire.APIKey)
	}

	// --- PostgreSQL transaction history (optional) ---
	var txStore *postgres.TransactionStore
	if cfg.Postgres.DSN != "" || cfg.Postgres.Host != "" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		txStore = postgres.NewTransactionStore(pgClient.Pool())
	}

	// --- Transaction log ---
	trades, err := tradelog.New(tradelog.Config{
		PurchasesPath: cfg.TradeLog.PurchasesPath,
		SalesPath:     cfg.TradeLog.SalesPath,
	}, storeOrNilPurchase(txStore), storeOrNilSale(txStore), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: trade log: %w", err)
	}
	closers = append(closers, func() { _ = trades.Close() })
	deps.Trades = trades

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, "Clash.gg Sniper"))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Lister ---
	deps.Lister = lister.New(cfg.Seller, deps.API, logger)

	return deps, cleanup, nil
}

// solverOrNil avoids handing the session a non-nil interface wrapping a nil
// pointer.
func solverOrNil(c *solver.Client) domain.ChallengeSolver {
	if c == nil {
		return nil
	}
	return c
}

func storeOrNilPurchase(s *postgres.TransactionStore) domain.PurchaseStore {
	if s == nil {
		return nil
	}
	return s
}

func storeOrNilSale(s *postgres.TransactionStore) domain.SaleStore {
	if s == nil {
		return nil
	}
	return s
}
