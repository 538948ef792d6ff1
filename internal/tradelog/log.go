// Package tradelog keeps the append-only transaction log: one JSONL record
// per completed purchase and sale, mirrored to the optional Postgres history.
// Records are staged when a transaction starts and finalized when the item
// actually changes hands, so half-finished trades never reach the log.
package tradelog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

// Log stages and persists purchase and sale records.
type Log struct {
	purchases *jsonlWriter
	sales     *jsonlWriter

	purchaseStore domain.PurchaseStore // optional
	saleStore     domain.SaleStore     // optional
	logger        *slog.Logger

	mu            sync.Mutex
	pendingBuys   map[int64]domain.PurchaseRecord
	pendingSales  map[int64]domain.SaleRecord
	completedBuys []domain.PurchaseRecord
}

// Config holds the JSONL file paths.
type Config struct {
	PurchasesPath string
	SalesPath     string
}

// New creates a Log writing to the configured paths. Existing purchase
// records are loaded so sales of previously sniped items can be matched to
// the price we paid. Stores may be nil to skip database mirroring.
func New(cfg Config, purchaseStore domain.PurchaseStore, saleStore domain.SaleStore, logger *slog.Logger) (*Log, error) {
	completed, err := ReadRecords[domain.PurchaseRecord](cfg.PurchasesPath)
	if err != nil {
		return nil, err
	}

	return &Log{
		purchases:     newJSONLWriter(cfg.PurchasesPath),
		sales:         newJSONLWriter(cfg.SalesPath),
		purchaseStore: purchaseStore,
		saleStore:     saleStore,
		logger:        logger.With(slog.String("component", "tradelog")),
		pendingBuys:   make(map[int64]domain.PurchaseRecord),
		pendingSales:  make(map[int64]domain.SaleRecord),
		completedBuys: completed,
	}, nil
}

// StagePurchase remembers a purchase in flight. Called right after the buy
// command is accepted by the marketplace.
func (l *Log) StagePurchase(rec domain.PurchaseRecord) {
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	if rec.PurchasedAt.IsZero() {
		rec.PurchasedAt = time.Now().UTC()
	}
	l.mu.Lock()
	l.pendingBuys[rec.ListingID] = rec
	l.mu.Unlock()
}

// FinalizePurchase writes the staged purchase for the listing, stamped with
// the receive time. It is a no-op when nothing was staged (e.g. the process
// restarted mid-purchase).
func (l *Log) FinalizePurchase(ctx context.Context, listingID int64, receivedAt time.Time) {
	l.mu.Lock()
	rec, ok := l.pendingBuys[listingID]
	if ok {
		delete(l.pendingBuys, listingID)
		rec.ReceivedAt = receivedAt
		l.completedBuys = append(l.completedBuys, rec)
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	if err := l.purchases.write(rec); err != nil {
		l.logger.Error("write purchase record",
			slog.Int64("listing_id", listingID),
			slog.String("error", err.Error()),
		)
	}
	if l.purchaseStore != nil {
		if err := l.purchaseStore.InsertPurchase(ctx, rec); err != nil {
			l.logger.Error("store purchase record",
				slog.Int64("listing_id", listingID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// StageSale remembers a sale in flight. Called once the outbound transfer for
// the listing has been sent.
func (l *Log) StageSale(rec domain.SaleRecord) {
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	if rec.SoldAt.IsZero() {
		rec.SoldAt = time.Now().UTC()
	}
	l.mu.Lock()
	l.pendingSales[rec.ListingID] = rec
	l.mu.Unlock()
}

// FinalizeSale writes the staged sale for the listing, enriched with the
// matching purchase record when the sold item was itself sniped. Returns the
// finalized record, or false when nothing was staged.
func (l *Log) FinalizeSale(ctx context.Context, listingID int64, receivedAt time.Time) (domain.SaleRecord, bool) {
	l.mu.Lock()
	rec, ok := l.pendingSales[listingID]
	if ok {
		delete(l.pendingSales, listingID)
		rec.ReceivedAt = receivedAt
		rec.BoughtFor = l.findPurchaseLocked(rec.ItemName, rec.AssetID)
	}
	l.mu.Unlock()
	if !ok {
		return domain.SaleRecord{}, false
	}

	if err := l.sales.write(rec); err != nil {
		l.logger.Error("write sale record",
			slog.Int64("listing_id", listingID),
			slog.String("error", err.Error()),
		)
	}
	if l.saleStore != nil {
		if err := l.saleStore.InsertSale(ctx, rec); err != nil {
			l.logger.Error("store sale record",
				slog.Int64("listing_id", listingID),
				slog.String("error", err.Error()),
			)
		}
	}
	return rec, true
}

// DropSale discards a staged sale whose transfer never completed.
func (l *Log) DropSale(listingID int64) {
	l.mu.Lock()
	delete(l.pendingSales, listingID)
	l.mu.Unlock()
}

// FindPurchase returns the completed purchase for an item, preferring an
// exact asset-id match and falling back to the most recent purchase of the
// same name.
func (l *Log) FindPurchase(itemName, assetID string) *domain.PurchaseRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.findPurchaseLocked(itemName, assetID)
}

func (l *Log) findPurchaseLocked(itemName, assetID string) *domain.PurchaseRecord {
	var byName *domain.PurchaseRecord
	for i := len(l.completedBuys) - 1; i >= 0; i-- {
		rec := l.completedBuys[i]
		if assetID != "" && rec.AssetID == assetID {
			return &rec
		}
		if byName == nil && rec.ItemName == itemName {
			byName = &rec
		}
	}
	return byName
}

// Close flushes and closes both log files.
func (l *Log) Close() error {
	err1 := l.purchases.close()
	err2 := l.sales.close()
	if err1 != nil {
		return err1
	}
	return err2
}
