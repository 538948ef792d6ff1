package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/notify"
	"github.com/easton36/clashgg-sniper/internal/sniper"
)

const (
	// onlinePingInterval keeps the marketplace convinced we can fulfill
	// trades.
	onlinePingInterval = 5 * time.Minute

	// statusInterval drives the alive log, the balance reconciliation, and
	// the net-worth report.
	statusInterval = time.Hour
)

// runOnlinePing tells the marketplace we are online every few minutes. An
// Unauthorized response means the access token died between stream events, so
// it triggers the same single-flight refresh a forced close would.
func (a *App) runOnlinePing(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(onlinePingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		err := deps.API.P2POnline(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrUnauthorized) {
			a.logger.Warn("online ping unauthorized, refreshing credentials")
			if rerr := deps.Session.RefreshCredentials(ctx); rerr != nil && !errors.Is(rerr, context.Canceled) {
				a.logger.Error("credential refresh failed", slog.String("error", rerr.Error()))
			}
			continue
		}
		a.logger.Error("online ping failed", slog.String("error", err.Error()))
	}
}

// runStatusJob logs an hourly heartbeat, re-syncs the ledger with the
// marketplace's view of our balance, and reports net worth.
func (a *App) runStatusJob(ctx context.Context, deps *Dependencies, ledger *sniper.Ledger, steamID string) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		profile, err := deps.API.GetProfile(ctx)
		if err != nil {
			a.logger.Error("status profile fetch failed", slog.String("error", err.Error()))
			continue
		}
		ledger.SetBalance(ctx, profile.Balance)
		a.logger.Info("alive",
			slog.Int64("balance", profile.Balance),
		)

		fields := []notify.Field{
			{Name: "Balance", Value: fmt.Sprintf("%.2f coins", float64(profile.Balance)/100)},
		}
		if deps.Pricempire != nil && steamID != "" {
			if inv, err := deps.Pricempire.FetchInventory(ctx, steamID); err != nil {
				a.logger.Warn("inventory valuation failed", slog.String("error", err.Error()))
			} else {
				var usdCents int64
				for _, v := range inv {
					usdCents += v.BuffUSD
				}
				fields = append(fields, notify.Field{
					Name:  "Inventory",
					Value: fmt.Sprintf("$%.2f", float64(usdCents)/100),
				})
			}
		}
		deps.Notifier.Notify(ctx, notify.Notification{
			Event:  notify.EventAccountValue,
			Title:  "Account value",
			Color:  notify.ColorBlue,
			Fields: fields,
		})
	}
}

// runPriceRefresh re-pulls the pricing feed on the configured interval.
func (a *App) runPriceRefresh(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Pricempire.FetchInterval.Duration
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := refreshPrices(ctx, deps, a.logger); err != nil {
			a.logger.Error("price refresh failed", slog.String("error", err.Error()))
		}
	}
}

func refreshPrices(ctx context.Context, deps *Dependencies, logger *slog.Logger) error {
	sheet, err := deps.Pricempire.FetchAllPrices(ctx)
	if err != nil {
		return err
	}
	written, err := deps.Prices.SetAll(ctx, sheet, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Info("price cache refreshed",
		slog.Int("items", len(sheet)),
		slog.Int("written", written),
	)
	return nil
}
