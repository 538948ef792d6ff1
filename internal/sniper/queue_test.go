package sniper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

func testEntry(id int64) domain.TradeQueueEntry {
	return domain.TradeQueueEntry{
		ListingID:      id,
		ItemName:       "AK-47 | Redline (Field-Tested)",
		AskPrice:       500,
		BuyerTradelink: "https://steamcommunity.com/tradeoffer/new/?partner=1",
		Asset:          domain.AssetRef{AppID: "730", ContextID: "2", AssetID: "123"},
		StepExpiresAt:  time.Now().Add(10 * time.Minute),
	}
}

func newTestQueue(sender *fakeSender, market *fakeMarket, sched Scheduler) *Queue {
	return NewQueue(sender, market, sched, "gg", nil, testLogger())
}

func TestQueueProcessSchedulesCancel(t *testing.T) {
	sender := &fakeSender{}
	sched := &fakeScheduler{}
	q := newTestQueue(sender, &fakeMarket{}, sched)

	q.process(context.Background(), testEntry(1))

	if q.InFlight() != 1 {
		t.Fatalf("in flight = %d, want 1", q.InFlight())
	}
	if len(sched.tasks) != 1 {
		t.Fatalf("scheduled %d cancels, want 1", len(sched.tasks))
	}

	// Deadline passes without the buyer accepting: the cancel fires.
	sched.fire()
	sender.mu.Lock()
	cancelled := append([]string(nil), sender.cancelled...)
	sender.mu.Unlock()
	if len(cancelled) != 1 {
		t.Fatalf("cancelled = %v, want one offer", cancelled)
	}
}

func TestQueueCancelRaceSafety(t *testing.T) {
	sender := &fakeSender{}
	sched := &fakeScheduler{}
	q := newTestQueue(sender, &fakeMarket{}, sched)

	q.process(context.Background(), testEntry(1))

	// RECEIVED arrives first and clears the pending cancel.
	offerID, ok := q.ClearCancel(1)
	if !ok || offerID == "" {
		t.Fatalf("ClearCancel = (%q, %v), want pending offer", offerID, ok)
	}

	// A stale timer firing afterwards must not cancel anything.
	sched.fire()
	q.fireCancel(1)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.cancelled) != 0 {
		t.Fatalf("stale cancel executed: %v", sender.cancelled)
	}
}

func TestQueueSendFailureDeletesListing(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("agent down")}
	market := &fakeMarket{}
	q := newTestQueue(sender, market, &fakeScheduler{})

	q.process(context.Background(), testEntry(7))

	if q.InFlight() != 0 {
		t.Fatalf("in flight = %d after failed send, want 0", q.InFlight())
	}
	if len(market.deleted) != 1 || market.deleted[0] != 7 {
		t.Fatalf("deleted = %v, want [7]", market.deleted)
	}
}

func TestQueueConcurrencyBound(t *testing.T) {
	sender := &fakeSender{}
	q := newTestQueue(sender, &fakeMarket{}, &fakeScheduler{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	for i := int64(1); i <= maxActiveTrades+1; i++ {
		q.Enqueue(testEntry(i))
	}

	waitFor(t, 2*time.Second, func() bool { return sender.sentCount() == maxActiveTrades })
	if q.InFlight() != maxActiveTrades {
		t.Fatalf("in flight = %d, want %d", q.InFlight(), maxActiveTrades)
	}

	// The sixth entry stays queued while every slot is busy.
	time.Sleep(100 * time.Millisecond)
	if sender.sentCount() != maxActiveTrades {
		t.Fatalf("sent = %d while at capacity, want %d", sender.sentCount(), maxActiveTrades)
	}

	// One trade completes; after the admission backoff the sixth goes out.
	q.ClearCancel(1)
	q.ReleaseSlot()
	waitFor(t, capacityBackoff+2*time.Second, func() bool { return sender.sentCount() == maxActiveTrades+1 })
	if q.InFlight() > maxActiveTrades {
		t.Fatalf("in flight = %d exceeds ceiling", q.InFlight())
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func waitFor(t *testing.T, limit time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
