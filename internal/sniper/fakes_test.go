package sniper

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarket struct {
	mu       sync.Mutex
	bought   []int64
	answered []int64
	deleted  []int64

	buyErr    error
	answerErr error
}

func (f *fakeMarket) BuyListing(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buyErr != nil {
		return f.buyErr
	}
	f.bought = append(f.bought, id)
	return nil
}

func (f *fakeMarket) AnswerListing(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return f.answerErr
	}
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeMarket) DeleteListing(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, n notify.Notification) {
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
}

func (f *fakeNotifier) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, msg := range f.sent {
		if msg.Event == event {
			n++
		}
	}
	return n
}

type fakeTradeLog struct {
	mu         sync.Mutex
	staged     []domain.PurchaseRecord
	finalized  []int64
	salesOpen  map[int64]domain.SaleRecord
	salesDone  []domain.SaleRecord
	salesDrops []int64
}

func newFakeTradeLog() *fakeTradeLog {
	return &fakeTradeLog{salesOpen: make(map[int64]domain.SaleRecord)}
}

func (f *fakeTradeLog) StagePurchase(rec domain.PurchaseRecord) {
	f.mu.Lock()
	f.staged = append(f.staged, rec)
	f.mu.Unlock()
}

func (f *fakeTradeLog) FinalizePurchase(ctx context.Context, listingID int64, receivedAt time.Time) {
	f.mu.Lock()
	f.finalized = append(f.finalized, listingID)
	f.mu.Unlock()
}

func (f *fakeTradeLog) StageSale(rec domain.SaleRecord) {
	f.mu.Lock()
	f.salesOpen[rec.ListingID] = rec
	f.mu.Unlock()
}

func (f *fakeTradeLog) FinalizeSale(ctx context.Context, listingID int64, receivedAt time.Time) (domain.SaleRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.salesOpen[listingID]
	if !ok {
		return domain.SaleRecord{}, false
	}
	delete(f.salesOpen, listingID)
	rec.ReceivedAt = receivedAt
	f.salesDone = append(f.salesDone, rec)
	return rec, true
}

func (f *fakeTradeLog) DropSale(listingID int64) {
	f.mu.Lock()
	f.salesDrops = append(f.salesDrops, listingID)
	f.mu.Unlock()
}

type fakePrices struct {
	prices map[string]domain.SourcePrices
}

func (f *fakePrices) SetPrices(ctx context.Context, name string, prices domain.SourcePrices, ts time.Time) error {
	if f.prices == nil {
		f.prices = make(map[string]domain.SourcePrices)
	}
	f.prices[name] = prices
	return nil
}

func (f *fakePrices) GetPrices(ctx context.Context, name string) (domain.SourcePrices, error) {
	p, ok := f.prices[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeSender struct {
	mu        sync.Mutex
	sent      []domain.TradeQueueEntry
	cancelled []string
	sendErr   error
	nextOffer int
}

func (f *fakeSender) SendTransfer(ctx context.Context, tradelink string, asset domain.AssetRef, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextOffer++
	f.sent = append(f.sent, domain.TradeQueueEntry{BuyerTradelink: tradelink, Asset: asset})
	return "offer-" + strconv.Itoa(f.nextOffer), nil
}

func (f *fakeSender) CancelTransfer(ctx context.Context, offerID string) error {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, offerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeScheduler records scheduled tasks without firing them; tests fire them
// by hand.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	fn        func()
	cancelled bool
}

func (t *fakeTask) Cancel() bool {
	t.cancelled = true
	return true
}

func (s *fakeScheduler) Schedule(after time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &fakeTask{fn: fn}
	s.tasks = append(s.tasks, task)
	return task
}

// fire runs every scheduled task that was not cancelled.
func (s *fakeScheduler) fire() {
	s.mu.Lock()
	tasks := append([]*fakeTask(nil), s.tasks...)
	s.mu.Unlock()
	for _, t := range tasks {
		if !t.cancelled {
			t.fn()
		}
	}
}
