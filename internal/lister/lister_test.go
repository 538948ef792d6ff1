package lister

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/easton36/clashgg-sniper/internal/config"
	"github.com/easton36/clashgg-sniper/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarket struct {
	mu        sync.Mutex
	inventory []domain.InventoryItem
	active    []domain.Listing
	batches   [][]domain.NewListing
}

func (f *fakeMarket) GetInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	return f.inventory, nil
}

func (f *fakeMarket) GetActiveListings(ctx context.Context) ([]domain.Listing, error) {
	return f.active, nil
}

func (f *fakeMarket) CreateListings(ctx context.Context, items []domain.NewListing) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, items)
	out := make([]domain.Listing, len(items))
	for i, it := range items {
		out[i] = domain.Listing{ID: int64(len(f.batches)*100 + i), Item: domain.Item{ExternalID: it.ExternalID}}
	}
	return out, nil
}

func invItem(id int, name string, price int64) domain.InventoryItem {
	return domain.InventoryItem{
		Name:       name,
		ExternalID: fmt.Sprintf("730|2|%d", id),
		Price:      price,
		IsAccepted: true,
		IsTradable: true,
		Float:      0.25,
	}
}

func sellerConfig() config.SellerConfig {
	return config.SellerConfig{Enabled: true, Markup: 1.1}
}

func TestRelistAppliesMarkup(t *testing.T) {
	market := &fakeMarket{inventory: []domain.InventoryItem{invItem(1, "AK-47 | Redline", 1000)}}
	l := New(sellerConfig(), market, testLogger())

	n, err := l.Relist(context.Background())
	if err != nil {
		t.Fatalf("Relist: %v", err)
	}
	if n != 1 {
		t.Fatalf("listed %d, want 1", n)
	}
	if got := market.batches[0][0].AskPrice; got != 1100 {
		t.Fatalf("ask = %d, want 1100", got)
	}
}

func TestRelistSkipsUnsellable(t *testing.T) {
	untradable := invItem(1, "a", 100)
	untradable.IsTradable = false
	unaccepted := invItem(2, "b", 100)
	unaccepted.IsAccepted = false
	unpriced := invItem(3, "c", 0)
	alreadyListed := invItem(4, "d", 100)
	doppler := invItem(5, "Karambit | Doppler", 100)
	doppler.ImageURL = "https://cdn.example.com/karambit-doppler-phase2.png"

	market := &fakeMarket{
		inventory: []domain.InventoryItem{untradable, unaccepted, unpriced, alreadyListed, doppler},
		active: []domain.Listing{
			{Item: domain.Item{Name: "d", ExternalID: alreadyListed.ExternalID}},
		},
	}
	l := New(sellerConfig(), market, testLogger())

	n, err := l.Relist(context.Background())
	if err != nil {
		t.Fatalf("Relist: %v", err)
	}
	if n != 0 {
		t.Fatalf("listed %d, want 0: batches %v", n, market.batches)
	}
}

func TestRelistSellsDopplersWhenEnabled(t *testing.T) {
	doppler := invItem(1, "Karambit | Doppler", 100)
	doppler.ImageURL = "https://cdn.example.com/karambit-doppler-ruby.png"
	market := &fakeMarket{inventory: []domain.InventoryItem{doppler}}

	cfg := sellerConfig()
	cfg.SellDopplers = true
	l := New(cfg, market, testLogger())

	n, err := l.Relist(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Relist = (%d, %v), want (1, nil)", n, err)
	}
}

func TestRelistDedupesFloatlessItemsByName(t *testing.T) {
	a := invItem(1, "Sticker | Crown (Foil)", 100)
	a.Float = 0
	b := invItem(2, "Sticker | Crown (Foil)", 100)
	b.Float = 0
	market := &fakeMarket{inventory: []domain.InventoryItem{a, b}}
	l := New(sellerConfig(), market, testLogger())

	n, err := l.Relist(context.Background())
	if err != nil {
		t.Fatalf("Relist: %v", err)
	}
	if n != 1 {
		t.Fatalf("listed %d identical stickers, want 1", n)
	}
}

func TestRelistChunksLargeBatches(t *testing.T) {
	var inv []domain.InventoryItem
	for i := 0; i < chunkSize+1; i++ {
		inv = append(inv, invItem(i, fmt.Sprintf("item %d", i), 100))
	}
	market := &fakeMarket{inventory: inv}
	l := New(sellerConfig(), market, testLogger())

	start := time.Now()
	n, err := l.Relist(context.Background())
	if err != nil {
		t.Fatalf("Relist: %v", err)
	}
	if n != chunkSize+1 {
		t.Fatalf("listed %d, want %d", n, chunkSize+1)
	}
	if len(market.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(market.batches))
	}
	if len(market.batches[0]) != chunkSize || len(market.batches[1]) != 1 {
		t.Fatalf("chunk sizes = %d,%d", len(market.batches[0]), len(market.batches[1]))
	}
	if elapsed := time.Since(start); elapsed < chunkSpacing {
		t.Fatalf("chunks sent %v apart, want at least %v", elapsed, chunkSpacing)
	}
}
