package sniper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

const (
	// maxActiveTrades bounds the number of outbound transfers in flight.
	maxActiveTrades = 5

	// capacityBackoff is how long the worker waits before re-checking
	// admission when all trade slots are taken.
	capacityBackoff = 5 * time.Second

	// cancelMargin is subtracted from the protocol step deadline when
	// scheduling the auto-cancellation of a sent transfer, leaving enough
	// time for the cancel call itself.
	cancelMargin = 30 * time.Second
)

// pendingCancel is a scheduled cancellation for a sent transfer.
type pendingCancel struct {
	offerID string
	handle  Handle
}

// Queue turns seller-side fulfillment entries into outbound trade transfers.
// A single worker drains the FIFO, admitting a new transfer only while fewer
// than maxActiveTrades are in flight. Each sent transfer gets an
// auto-cancellation scheduled shortly before the protocol step deadline; the
// cancel is cleared when the buyer accepts in time.
type Queue struct {
	sender domain.TransferSender
	api    MarketAPI
	sched  Scheduler
	logger *slog.Logger

	// message is attached to every outbound trade offer.
	message string

	// onSent runs after a transfer is initiated, with the offer id.
	onSent func(ctx context.Context, e domain.TradeQueueEntry, offerID string)

	entries chan domain.TradeQueueEntry

	mu       sync.Mutex
	inflight int
	cancels  map[int64]pendingCancel
}

// NewQueue creates a fulfillment queue. onSent may be nil.
func NewQueue(sender domain.TransferSender, api MarketAPI, sched Scheduler, message string, onSent func(ctx context.Context, e domain.TradeQueueEntry, offerID string), logger *slog.Logger) *Queue {
	return &Queue{
		sender:  sender,
		api:     api,
		sched:   sched,
		logger:  logger.With(slog.String("component", "trade_queue")),
		message: message,
		onSent:  onSent,
		entries: make(chan domain.TradeQueueEntry, 256),
		cancels: make(map[int64]pendingCancel),
	}
}

// Enqueue appends a fulfillment entry. Safe for concurrent producers.
func (q *Queue) Enqueue(e domain.TradeQueueEntry) {
	q.entries <- e
	q.logger.Info("trade queued",
		slog.Int64("listing_id", e.ListingID),
		slog.String("item", e.ItemName),
	)
}

// InFlight returns the number of transfers currently in flight.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// Run drains the queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	for {
		var e domain.TradeQueueEntry
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e = <-q.entries:
		}

		for q.InFlight() >= maxActiveTrades {
			q.logger.Info("all trade slots busy, backing off",
				slog.Int64("listing_id", e.ListingID),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(capacityBackoff):
			}
		}

		q.process(ctx, e)
	}
}

// process sends the transfer for one entry. A transfer that cannot be
// initiated leaves an unfulfillable obligation on the marketplace, so the
// listing is deleted instead.
func (q *Queue) process(ctx context.Context, e domain.TradeQueueEntry) {
	offerID, err := q.sender.SendTransfer(ctx, e.BuyerTradelink, e.Asset, q.message)
	if err != nil {
		q.logger.Error("transfer failed to start, deleting listing",
			slog.Int64("listing_id", e.ListingID),
			slog.String("item", e.ItemName),
			slog.String("error", err.Error()),
		)
		if delErr := q.api.DeleteListing(ctx, e.ListingID); delErr != nil {
			q.logger.Error("delete listing failed",
				slog.Int64("listing_id", e.ListingID),
				slog.String("error", delErr.Error()),
			)
		}
		return
	}

	fireIn := time.Until(e.StepExpiresAt) - cancelMargin
	listingID := e.ListingID
	handle := q.sched.Schedule(fireIn, func() {
		q.fireCancel(listingID)
	})

	q.mu.Lock()
	q.inflight++
	q.cancels[e.ListingID] = pendingCancel{offerID: offerID, handle: handle}
	inflight := q.inflight
	q.mu.Unlock()

	q.logger.Info("transfer sent",
		slog.Int64("listing_id", e.ListingID),
		slog.String("item", e.ItemName),
		slog.String("offer_id", offerID),
		slog.Int("in_flight", inflight),
	)

	if q.onSent != nil {
		q.onSent(ctx, e, offerID)
	}
}

// fireCancel runs when a pending cancellation timer expires. The map entry is
// the source of truth: if it was cleared because the trade completed first,
// the stale timer does nothing.
func (q *Queue) fireCancel(listingID int64) {
	q.mu.Lock()
	pc, ok := q.cancels[listingID]
	if ok {
		delete(q.cancels, listingID)
	}
	q.mu.Unlock()
	if !ok {
		return
	}

	q.logger.Warn("step deadline approaching, cancelling transfer",
		slog.Int64("listing_id", listingID),
		slog.String("offer_id", pc.offerID),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := q.sender.CancelTransfer(ctx, pc.offerID); err != nil && !errors.Is(err, context.Canceled) {
		q.logger.Error("cancel transfer failed",
			slog.Int64("listing_id", listingID),
			slog.String("offer_id", pc.offerID),
			slog.String("error", err.Error()),
		)
	}
}

// ClearCancel removes the pending cancellation for a listing, stopping its
// timer. It returns the transfer offer id if one was pending.
func (q *Queue) ClearCancel(listingID int64) (string, bool) {
	q.mu.Lock()
	pc, ok := q.cancels[listingID]
	if ok {
		delete(q.cancels, listingID)
	}
	q.mu.Unlock()
	if !ok {
		return "", false
	}
	pc.handle.Cancel()
	return pc.offerID, true
}

// ReleaseSlot frees one in-flight trade slot after a transfer reached a
// terminal state.
func (q *Queue) ReleaseSlot() {
	q.mu.Lock()
	if q.inflight > 0 {
		q.inflight--
	}
	q.mu.Unlock()
}
