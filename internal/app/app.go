// Package app wires the sniper together: marketplace clients, price cache,
// transaction log, notifications, and the orchestration core, plus the
// periodic safety jobs that keep everything reconciled.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/easton36/clashgg-sniper/internal/config"
	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/notify"
	"github.com/easton36/clashgg-sniper/internal/sniper"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, authenticates, and blocks until the context is
// cancelled or a fatal condition (an unrecoverable stream disconnect) brings
// the process down.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting sniper",
		slog.Bool("sniper_enabled", a.cfg.Sniper.Enabled),
		slog.Bool("seller_enabled", a.cfg.Seller.Enabled),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Prime the price cache before the first listing is evaluated.
	if deps.Pricempire != nil && a.cfg.Pricempire.FetchOnStart {
		if err := refreshPrices(ctx, deps, a.logger); err != nil {
			a.logger.Warn("initial price fetch failed", slog.String("error", err.Error()))
		}
	}

	if err := deps.Session.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect: %w", err)
	}

	profile, err := deps.API.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("app: fetch profile: %w", err)
	}
	a.logger.Info("authenticated",
		slog.String("name", profile.Name),
		slog.String("steam_id", profile.SteamID),
		slog.Int64("balance", profile.Balance),
	)

	core := a.buildCore(deps, profile)

	if a.cfg.Seller.Enabled {
		if n, err := deps.Lister.Relist(ctx); err != nil {
			a.logger.Warn("initial relist failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.Info("initial inventory listed", slog.Int("count", n))
		}
	}

	deps.Notifier.Notify(ctx, notify.Notification{
		Event: notify.EventStarted,
		Title: "Sniper started",
		Color: notify.ColorBlue,
		Fields: []notify.Field{
			{Name: "Account", Value: profile.Name},
			{Name: "Balance", Value: fmt.Sprintf("%.2f coins", float64(profile.Balance)/100)},
		},
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Session.Run(ctx) })
	g.Go(func() error { return core.engine.Run(ctx) })
	g.Go(func() error { return core.queue.Run(ctx) })
	if a.cfg.Seller.Enabled {
		g.Go(func() error { return deps.Lister.Run(ctx) })
	}
	g.Go(func() error { return a.runOnlinePing(ctx, deps) })
	g.Go(func() error { return a.runStatusJob(ctx, deps, core.ledger, profile.SteamID) })
	if deps.Pricempire != nil {
		g.Go(func() error { return a.runPriceRefresh(ctx, deps) })
	}

	return g.Wait()
}

// core bundles the orchestration objects built around the account profile.
type core struct {
	ledger *sniper.Ledger
	queue  *sniper.Queue
	engine *sniper.Engine
}

func (a *App) buildCore(deps *Dependencies, profile *domain.Profile) core {
	onPause := func(ctx context.Context, balance int64) {
		deps.Notifier.Notify(ctx, notify.Notification{
			Event: notify.EventPause,
			Title: "Sniping paused",
			Color: notify.ColorRed,
			Fields: []notify.Field{
				{Name: "Balance", Value: fmt.Sprintf("%.2f coins", float64(balance)/100)},
			},
		})
	}
	onResume := func(ctx context.Context, balance int64) {
		deps.Notifier.Notify(ctx, notify.Notification{
			Event: notify.EventResume,
			Title: "Sniping resumed",
			Color: notify.ColorGreen,
			Fields: []notify.Field{
				{Name: "Balance", Value: fmt.Sprintf("%.2f coins", float64(balance)/100)},
			},
		})
	}
	ledger := sniper.NewLedger(profile.Balance, a.cfg.Sniper.MinPrice, onPause, onResume, a.logger)

	onSent := func(ctx context.Context, e domain.TradeQueueEntry, offerID string) {
		deps.Trades.StageSale(domain.SaleRecord{
			ListingID: e.ListingID,
			ItemName:  e.ItemName,
			AssetID:   e.Asset.AssetID,
			AskPrice:  e.AskPrice,
			OfferID:   offerID,
		})
	}
	queue := sniper.NewQueue(deps.Steam, deps.API, sniper.TimerScheduler{}, a.cfg.Seller.OfferMessage, onSent, a.logger)

	var prices domain.PriceCache
	if deps.Prices != nil {
		prices = deps.Prices
	}
	decider := sniper.NewDecider(a.cfg.Sniper, a.cfg.Clash.CoinConversion, deps.API, ledger, prices, deps.Trades, deps.Notifier, a.logger)

	var relist func(ctx context.Context)
	if a.cfg.Seller.Enabled {
		relist = func(ctx context.Context) {
			if _, err := deps.Lister.Relist(ctx); err != nil {
				a.logger.Error("relist after cancel failed", slog.String("error", err.Error()))
			}
		}
	}
	machine := sniper.NewStateMachine(profile.SteamID, deps.API, queue, ledger, deps.Trades, deps.Notifier, relist, a.logger)

	engine := sniper.NewEngine(deps.Session.Events(), decider, machine, deps.Session.RefreshCredentials, a.logger)

	return core{ledger: ledger, queue: queue, engine: engine}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
