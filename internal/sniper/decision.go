package sniper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/easton36/clashgg-sniper/internal/config"
	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/notify"
	"github.com/easton36/clashgg-sniper/internal/platform/pricempire"
)

// fairValueSource is the pricing-feed source used for the sanity check.
const fairValueSource = "buff163"

// Decider evaluates newly created listings against the purchase policy and
// issues buy commands for the ones that pass.
type Decider struct {
	cfg            config.SniperConfig
	coinConversion float64
	api            MarketAPI
	ledger         *Ledger
	prices         domain.PriceCache
	trades         TradeLog
	notifier       Notifier
	logger         *slog.Logger

	ignoreItems   map[string]bool
	ignoreStrings []string
}

// NewDecider builds a decision engine from the sniper policy. prices may be
// nil when the fair-value check is disabled.
func NewDecider(cfg config.SniperConfig, coinConversion float64, api MarketAPI, ledger *Ledger, prices domain.PriceCache, trades TradeLog, notifier Notifier, logger *slog.Logger) *Decider {
	ignore := make(map[string]bool, len(cfg.IgnoreItems))
	for _, name := range cfg.IgnoreItems {
		ignore[strings.ToLower(name)] = true
	}
	lowered := make([]string, 0, len(cfg.IgnoreStrings))
	for _, s := range cfg.IgnoreStrings {
		lowered = append(lowered, strings.ToLower(s))
	}
	return &Decider{
		cfg:            cfg,
		coinConversion: coinConversion,
		api:            api,
		ledger:         ledger,
		prices:         prices,
		trades:         trades,
		notifier:       notifier,
		logger:         logger.With(slog.String("component", "decision")),
		ignoreItems:    ignore,
		ignoreStrings:  lowered,
	}
}

// usdCents converts a coin-cent amount to USD cents.
func (d *Decider) usdCents(coins int64) int64 {
	return int64(float64(coins) / d.coinConversion)
}

// Evaluate runs the decision policy against a newly created listing and, when
// every predicate passes, buys it. It reports whether the purchase was issued.
// A domain.ErrUnauthorized from the buy call is returned so the caller can
// trigger a credential refresh; every other rejection or failure is handled
// here.
func (d *Decider) Evaluate(ctx context.Context, l domain.Listing) (bool, error) {
	ask := l.Item.AskPrice

	if !d.cfg.Enabled || !d.ledger.Enabled() {
		d.ledger.Recheck(ctx)
		return false, nil
	}

	if ask < d.cfg.MinPrice || ask > d.cfg.MaxPrice {
		d.logger.Debug("rejected: outside price band", slog.String("listing", l.String()))
		return false, nil
	}

	name := strings.ToLower(l.Item.Name)
	if d.ignoreItems[name] {
		d.logger.Debug("rejected: ignored item", slog.String("listing", l.String()))
		return false, nil
	}
	for _, s := range d.ignoreStrings {
		if strings.Contains(name, s) {
			d.logger.Debug("rejected: ignored substring",
				slog.String("listing", l.String()),
				slog.String("substring", s),
			)
			return false, nil
		}
	}

	markup := l.Item.Markup()
	if markup == 0 || markup > d.cfg.MaxMarkup {
		d.logger.Debug("rejected: markup too high",
			slog.String("listing", l.String()),
			slog.Float64("max_markup", d.cfg.MaxMarkup),
		)
		return false, nil
	}

	if ask > d.ledger.Balance() {
		d.logger.Info("rejected: cannot afford",
			slog.String("listing", l.String()),
			slog.Int64("balance", d.ledger.Balance()),
		)
		d.ledger.Recheck(ctx)
		return false, nil
	}

	var fairValue int64
	var fairRatio float64
	if d.cfg.CheckFairValue {
		var ok bool
		fairValue, fairRatio, ok = d.checkFairValue(ctx, l)
		if !ok {
			return false, nil
		}
	}

	if err := d.api.BuyListing(ctx, l.ID); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			return false, fmt.Errorf("sniper: buy listing %d: %w", l.ID, err)
		case errors.Is(err, domain.ErrListingUnavailable):
			// Someone else got there first. Expected at this game.
			d.logger.Info("lost purchase race", slog.String("listing", l.String()))
		default:
			d.logger.Error("buy failed",
				slog.String("listing", l.String()),
				slog.String("error", err.Error()),
			)
		}
		return false, nil
	}

	d.ledger.Debit(ctx, ask)
	d.logger.Info("listing purchased",
		slog.String("listing", l.String()),
		slog.Int64("balance", d.ledger.Balance()),
	)

	d.stagePurchase(l, fairValue, fairRatio)
	d.notifyPurchase(ctx, l, fairValue)
	return true, nil
}

// checkFairValue compares the ask, converted to USD, against the pricing
// feed's estimate. Doppler items use the phase-specific source price. Unknown
// fair value rejects: buying blind defeats the point of the check.
func (d *Decider) checkFairValue(ctx context.Context, l domain.Listing) (int64, float64, bool) {
	prices, err := d.prices.GetPrices(ctx, l.Item.Name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			d.logger.Error("price lookup failed",
				slog.String("item", l.Item.Name),
				slog.String("error", err.Error()),
			)
		}
		d.logger.Debug("rejected: no fair value known", slog.String("listing", l.String()))
		return 0, 0, false
	}

	source := fairValueSource
	if phase := pricempire.DopplerPhase(l.Item.ImageURL); phase != "" {
		source = pricempire.PhaseSource(fairValueSource, phase)
	}
	fair := prices[source]
	if fair <= 0 {
		d.logger.Debug("rejected: no fair value for source",
			slog.String("listing", l.String()),
			slog.String("source", source),
		)
		return 0, 0, false
	}

	askUSD := d.usdCents(l.Item.AskPrice)
	ratio := float64(askUSD) / float64(fair)
	if ratio > d.cfg.MaxFairRatio {
		d.logger.Debug("rejected: above fair value",
			slog.String("listing", l.String()),
			slog.Int64("fair_usd_cents", fair),
			slog.Float64("ratio", ratio),
		)
		return 0, 0, false
	}
	return fair, ratio, true
}

func (d *Decider) stagePurchase(l domain.Listing, fairValue int64, fairRatio float64) {
	rec := domain.PurchaseRecord{
		RecordID:    uuid.NewString(),
		ListingID:   l.ID,
		ItemName:    l.Item.Name,
		Price:       l.Item.Price,
		AskPrice:    l.Item.AskPrice,
		AskPriceUSD: d.usdCents(l.Item.AskPrice),
		FairValue:   fairValue,
		FairRatio:   fairRatio,
		Markup:      l.Item.Markup(),
		PurchasedAt: time.Now().UTC(),
	}
	if asset, err := l.Item.Asset(); err == nil {
		rec.AssetID = asset.AssetID
	}
	if l.Seller != nil {
		rec.SellerName = l.Seller.Name
		rec.SellerID = l.Seller.SteamID
	}
	d.trades.StagePurchase(rec)
}

func (d *Decider) notifyPurchase(ctx context.Context, l domain.Listing, fairValue int64) {
	fields := []notify.Field{
		{Name: "Item", Value: l.Item.Name},
		{Name: "Price", Value: formatCoins(l.Item.AskPrice)},
		{Name: "Markup", Value: fmt.Sprintf("%.3f", l.Item.Markup())},
		{Name: "Balance", Value: formatCoins(d.ledger.Balance())},
	}
	if fairValue > 0 {
		fields = append(fields, notify.Field{Name: "Fair value", Value: formatUSD(fairValue)})
	}
	d.notifier.Notify(ctx, notify.Notification{
		Event:  notify.EventPurchase,
		Title:  "Item purchased",
		Color:  notify.ColorGreen,
		Fields: fields,
	})
}

// formatCoins renders a coin-cent amount as a decimal coin value.
func formatCoins(cents int64) string {
	return fmt.Sprintf("%.2f coins", float64(cents)/100)
}

// formatUSD renders a USD-cent amount as dollars.
func formatUSD(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
