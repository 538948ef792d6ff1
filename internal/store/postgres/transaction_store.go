package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

// TransactionStore implements domain.PurchaseStore and domain.SaleStore.
// Re-inserting the same listing id is a no-op so replayed stream events never
// double-record a transaction.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// InsertPurchase records a completed purchase.
func (s *TransactionStore) InsertPurchase(ctx context.Context, rec domain.PurchaseRecord) error {
	const query = `
		INSERT INTO purchases (
			record_id, listing_id, item_name, asset_id,
			price, ask_price, ask_price_usd, fair_value, fair_ratio, markup,
			seller_name, seller_id, purchased_at, received_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14
		) ON CONFLICT (listing_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.RecordID, rec.ListingID, rec.ItemName, nullStr(rec.AssetID),
		rec.Price, rec.AskPrice, nullInt(rec.AskPriceUSD), nullInt(rec.FairValue),
		nullFloat(rec.FairRatio), rec.Markup,
		nullStr(rec.SellerName), nullStr(rec.SellerID),
		rec.PurchasedAt, nullTime(rec.ReceivedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert purchase %d: %w", rec.ListingID, err)
	}
	return nil
}

// InsertSale records a completed sale.
func (s *TransactionStore) InsertSale(ctx context.Context, rec domain.SaleRecord) error {
	var boughtFor *string
	if rec.BoughtFor != nil && rec.BoughtFor.RecordID != "" {
		boughtFor = &rec.BoughtFor.RecordID
	}

	const query = `
		INSERT INTO sales (
			record_id, listing_id, item_name, asset_id,
			ask_price, offer_id, buyer_id,
			sold_at, received_at, bought_for_record
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10
		) ON CONFLICT (listing_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.RecordID, rec.ListingID, rec.ItemName, nullStr(rec.AssetID),
		rec.AskPrice, nullStr(rec.OfferID), nullStr(rec.BuyerID),
		rec.SoldAt, nullTime(rec.ReceivedAt), boughtFor,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert sale %d: %w", rec.ListingID, err)
	}
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Compile-time interface checks.
var (
	_ domain.PurchaseStore = (*TransactionStore)(nil)
	_ domain.SaleStore     = (*TransactionStore)(nil)
)
