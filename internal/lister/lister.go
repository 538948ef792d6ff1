// Package lister lists our Steam inventory for sale on the marketplace in
// bulk, and re-lists it whenever a slot frees up.
package lister

import (
	"context"
	"log/slog"
	"time"

	"github.com/easton36/clashgg-sniper/internal/config"
	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/platform/pricempire"
)

const (
	// chunkSize is the maximum number of items per create-listings call.
	chunkSize = 15

	// chunkSpacing is the pause between consecutive create-listings calls so
	// the marketplace does not rate-limit the batch.
	chunkSpacing = 3 * time.Second
)

// marketAPI is the slice of the marketplace client the lister needs.
type marketAPI interface {
	GetInventory(ctx context.Context) ([]domain.InventoryItem, error)
	GetActiveListings(ctx context.Context) ([]domain.Listing, error)
	CreateListings(ctx context.Context, items []domain.NewListing) ([]domain.Listing, error)
}

// Lister turns unlisted inventory into sell listings. Prices are the site's
// valuation multiplied by the configured markup.
type Lister struct {
	cfg    config.SellerConfig
	api    marketAPI
	logger *slog.Logger
}

// New creates a Lister.
func New(cfg config.SellerConfig, api marketAPI, logger *slog.Logger) *Lister {
	return &Lister{
		cfg:    cfg,
		api:    api,
		logger: logger.With(slog.String("component", "lister")),
	}
}

// Relist lists every sellable inventory item that is not already listed. It
// returns the number of items listed. Safe to call repeatedly; already-listed
// assets are skipped.
func (l *Lister) Relist(ctx context.Context) (int, error) {
	active, err := l.api.GetActiveListings(ctx)
	if err != nil {
		return 0, err
	}
	listedAssets := make(map[string]bool, len(active))
	listedNames := make(map[string]bool, len(active))
	for _, a := range active {
		listedAssets[a.Item.ExternalID] = true
		listedNames[a.Item.Name] = true
	}

	inv, err := l.api.GetInventory(ctx)
	if err != nil {
		return 0, err
	}

	var batch []domain.NewListing
	for _, item := range inv {
		if !l.sellable(item, listedAssets, listedNames) {
			continue
		}
		// Items without a float (stickers, agents, containers) are
		// indistinguishable from each other, so one listing per name.
		if item.Float == 0 {
			listedNames[item.Name] = true
		}
		listedAssets[item.ExternalID] = true
		batch = append(batch, domain.NewListing{
			ExternalID: item.ExternalID,
			AskPrice:   int64(float64(item.Price) * l.cfg.Markup),
		})
	}
	if len(batch) == 0 {
		l.logger.Debug("nothing to list")
		return 0, nil
	}

	listed := 0
	for start := 0; start < len(batch); start += chunkSize {
		end := start + chunkSize
		if end > len(batch) {
			end = len(batch)
		}
		if start > 0 {
			select {
			case <-ctx.Done():
				return listed, ctx.Err()
			case <-time.After(chunkSpacing):
			}
		}
		created, err := l.api.CreateListings(ctx, batch[start:end])
		if err != nil {
			l.logger.Error("create listings failed",
				slog.Int("chunk_start", start),
				slog.String("error", err.Error()),
			)
			continue
		}
		listed += len(created)
	}

	l.logger.Info("inventory listed",
		slog.Int("candidates", len(batch)),
		slog.Int("listed", listed),
	)
	return listed, nil
}

func (l *Lister) sellable(item domain.InventoryItem, listedAssets, listedNames map[string]bool) bool {
	if !item.IsAccepted || !item.IsTradable || item.Price <= 0 {
		return false
	}
	if listedAssets[item.ExternalID] {
		return false
	}
	if item.Float == 0 && listedNames[item.Name] {
		return false
	}
	if !l.cfg.SellDopplers && pricempire.DopplerPhase(item.ImageURL) != "" {
		return false
	}
	return true
}

// Run re-lists inventory on the configured interval until ctx is cancelled.
// A zero interval disables the periodic job.
func (l *Lister) Run(ctx context.Context) error {
	interval := l.cfg.RelistInterval.Duration
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := l.Relist(ctx); err != nil {
				l.logger.Error("periodic relist failed", slog.String("error", err.Error()))
			}
		}
	}
}
