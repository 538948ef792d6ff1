package domain

import (
	"context"
	"time"
)

// SourcePrices holds the per-source USD prices (in cents) for one item name,
// as fetched from the external pricing feed. Keys are source identifiers such
// as "buff163", "buff163_quick", or phase-specific variants like
// "buff163_phase2".
type SourcePrices map[string]int64

// PriceCache stores item fair values keyed by market-hash name.
type PriceCache interface {
	// SetPrices stores the per-source prices for an item.
	SetPrices(ctx context.Context, name string, prices SourcePrices, ts time.Time) error
	// GetPrices returns the cached prices for an item. Returns ErrNotFound
	// when the item has never been priced.
	GetPrices(ctx context.Context, name string) (SourcePrices, error)
}

// PurchaseRecord is a completed buy, enriched with the decision context so the
// transaction can be reconstructed later.
type PurchaseRecord struct {
	RecordID    string    `json:"recordId"`
	ListingID   int64     `json:"listingId"`
	ItemName    string    `json:"itemName"`
	AssetID     string    `json:"assetId"`
	Price       int64     `json:"price"`
	AskPrice    int64     `json:"askPrice"`
	AskPriceUSD int64     `json:"askPriceUsd,omitempty"`
	FairValue   int64     `json:"fairValue,omitempty"`
	FairRatio   float64   `json:"fairRatio,omitempty"`
	Markup      float64   `json:"markup"`
	SellerName  string    `json:"sellerName,omitempty"`
	SellerID    string    `json:"sellerSteamId,omitempty"`
	PurchasedAt time.Time `json:"purchasedAt"`
	ReceivedAt  time.Time `json:"receivedAt,omitempty"`
}

// SaleRecord is a completed sale. When the sold item was itself sniped, the
// record carries the matching purchase so profit can be derived.
type SaleRecord struct {
	RecordID   string          `json:"recordId"`
	ListingID  int64           `json:"listingId"`
	ItemName   string          `json:"itemName"`
	AssetID    string          `json:"assetId"`
	AskPrice   int64           `json:"askPrice"`
	OfferID    string          `json:"offerId,omitempty"`
	BuyerID    string          `json:"buyerSteamId,omitempty"`
	SoldAt     time.Time       `json:"soldAt"`
	ReceivedAt time.Time       `json:"receivedAt,omitempty"`
	BoughtFor  *PurchaseRecord `json:"boughtFor,omitempty"`
}

// PurchaseStore persists completed purchases.
type PurchaseStore interface {
	InsertPurchase(ctx context.Context, rec PurchaseRecord) error
}

// SaleStore persists completed sales.
type SaleStore interface {
	InsertSale(ctx context.Context, rec SaleRecord) error
}

// ChallengeSolver obtains an anti-bot session token for the marketplace.
// Implementations may shell out to a browser-automation sidecar; deployments
// with an allow-listed IP never call it.
type ChallengeSolver interface {
	Solve(ctx context.Context, refreshToken string) (string, error)
}

// TransferSender initiates and cancels the peer-to-peer item hand-offs that
// fulfill matched listings.
type TransferSender interface {
	SendTransfer(ctx context.Context, tradelink string, asset AssetRef, message string) (offerID string, err error)
	CancelTransfer(ctx context.Context, offerID string) error
}
