package sniper

import (
	"context"
	"testing"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/notify"
)

const ourSteamID = "7656-us"

type machineFixture struct {
	market   *fakeMarket
	sender   *fakeSender
	sched    *fakeScheduler
	queue    *Queue
	ledger   *Ledger
	trades   *fakeTradeLog
	notifier *fakeNotifier
	relists  int
	machine  *StateMachine
}

func newMachineFixture(t *testing.T, balance int64) *machineFixture {
	t.Helper()
	f := &machineFixture{
		market:   &fakeMarket{},
		sender:   &fakeSender{},
		sched:    &fakeScheduler{},
		trades:   newFakeTradeLog(),
		notifier: &fakeNotifier{},
	}
	f.queue = NewQueue(f.sender, f.market, f.sched, "gg", nil, testLogger())
	f.ledger = NewLedger(balance, 100, nil, nil, testLogger())
	relist := func(ctx context.Context) { f.relists++ }
	f.machine = NewStateMachine(ourSteamID, f.market, f.queue, f.ledger, f.trades, f.notifier, relist, testLogger())
	return f
}

func sellerListing(id int64, status domain.ListingStatus) domain.Listing {
	return domain.Listing{
		ID:     id,
		Status: status,
		Item: domain.Item{
			Name:       "AK-47 | Redline (Field-Tested)",
			Price:      480,
			AskPrice:   500,
			ExternalID: "730|2|123456",
		},
		Seller:         &domain.Party{ID: 1, Name: "us", SteamID: ourSteamID},
		BuyerTradelink: "https://steamcommunity.com/tradeoffer/new/?partner=2",
		StepExpiresAt:  time.Now().Add(10 * time.Minute),
	}
}

func buyerListing(id int64, status domain.ListingStatus) domain.Listing {
	l := sellerListing(id, status)
	l.Seller = &domain.Party{ID: 9, Name: "them", SteamID: "7656-other"}
	return l
}

func TestSellerAskedAnswers(t *testing.T) {
	f := newMachineFixture(t, 1000)
	if err := f.machine.HandleUpdate(context.Background(), sellerListing(1, domain.StatusAsked)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(f.market.answered) != 1 || f.market.answered[0] != 1 {
		t.Fatalf("answered = %v, want [1]", f.market.answered)
	}
}

func TestSellerAnsweredEnqueues(t *testing.T) {
	f := newMachineFixture(t, 1000)
	if err := f.machine.HandleUpdate(context.Background(), sellerListing(2, domain.StatusAnswered)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	select {
	case e := <-f.queue.entries:
		if e.ListingID != 2 || e.Asset.AssetID != "123456" || e.AskPrice != 500 {
			t.Fatalf("queued entry = %+v", e)
		}
	default:
		t.Fatal("nothing enqueued on ANSWERED")
	}
	if f.sender.sentCount() != 0 {
		t.Fatal("transfer sent synchronously; must go through the queue")
	}
}

func TestSellerReceivedCompletesSale(t *testing.T) {
	f := newMachineFixture(t, 1000)
	ctx := context.Background()

	// Transfer went out earlier.
	f.queue.process(ctx, domain.TradeQueueEntry{
		ListingID:      3,
		ItemName:       "AK-47 | Redline (Field-Tested)",
		AskPrice:       500,
		BuyerTradelink: "link",
		Asset:          domain.AssetRef{AppID: "730", ContextID: "2", AssetID: "123456"},
		StepExpiresAt:  time.Now().Add(10 * time.Minute),
	})
	f.trades.StageSale(domain.SaleRecord{ListingID: 3, ItemName: "AK-47 | Redline (Field-Tested)", AskPrice: 500})

	if err := f.machine.HandleUpdate(ctx, sellerListing(3, domain.StatusReceived)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	if got := f.ledger.Balance(); got != 1500 {
		t.Fatalf("balance = %d, want 1500", got)
	}
	if f.queue.InFlight() != 0 {
		t.Fatalf("in flight = %d, want 0 after completion", f.queue.InFlight())
	}
	if len(f.trades.salesDone) != 1 {
		t.Fatalf("finalized %d sales, want 1", len(f.trades.salesDone))
	}
	if f.notifier.count(notify.EventSale) != 1 {
		t.Fatal("expected a sale notification")
	}

	// The pending cancel was cleared; firing timers must not cancel.
	f.sched.fire()
	f.sender.mu.Lock()
	defer f.sender.mu.Unlock()
	if len(f.sender.cancelled) != 0 {
		t.Fatalf("cancel fired after RECEIVED: %v", f.sender.cancelled)
	}
}

func TestSellerSystemCancelRelistsWithoutLedgerChange(t *testing.T) {
	f := newMachineFixture(t, 1000)
	ctx := context.Background()

	f.trades.StageSale(domain.SaleRecord{ListingID: 4, AskPrice: 500})
	if err := f.machine.HandleUpdate(ctx, sellerListing(4, domain.StatusCanceledSystem)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	// Nothing was ever collected so the balance must not move.
	if got := f.ledger.Balance(); got != 1000 {
		t.Fatalf("balance = %d, want unchanged 1000", got)
	}
	if f.relists != 1 {
		t.Fatalf("relists = %d, want 1", f.relists)
	}
	if len(f.trades.salesDrops) != 1 || f.trades.salesDrops[0] != 4 {
		t.Fatalf("dropped sales = %v, want [4]", f.trades.salesDrops)
	}
	if f.notifier.count(notify.EventCancel) != 1 {
		t.Fatal("expected a cancel notification")
	}
}

func TestSellerFailedReleasesSlot(t *testing.T) {
	f := newMachineFixture(t, 1000)
	ctx := context.Background()

	f.queue.process(ctx, domain.TradeQueueEntry{
		ListingID:     5,
		Asset:         domain.AssetRef{AppID: "730", ContextID: "2", AssetID: "1"},
		StepExpiresAt: time.Now().Add(10 * time.Minute),
	})
	if f.queue.InFlight() != 1 {
		t.Fatalf("in flight = %d, want 1", f.queue.InFlight())
	}

	if err := f.machine.HandleUpdate(ctx, sellerListing(5, domain.StatusFailed)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if f.queue.InFlight() != 0 {
		t.Fatalf("in flight = %d, want 0 after FAILED", f.queue.InFlight())
	}
	if f.relists != 1 {
		t.Fatalf("relists = %d, want 1", f.relists)
	}
}

func TestBuyerReceivedFinalizesPurchase(t *testing.T) {
	f := newMachineFixture(t, 1000)
	if err := f.machine.HandleUpdate(context.Background(), buyerListing(6, domain.StatusReceived)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(f.trades.finalized) != 1 || f.trades.finalized[0] != 6 {
		t.Fatalf("finalized purchases = %v, want [6]", f.trades.finalized)
	}
	if got := f.ledger.Balance(); got != 1000 {
		t.Fatalf("balance = %d; buyer RECEIVED must not move funds", got)
	}
}

func TestBuyerSystemCancelRefunds(t *testing.T) {
	f := newMachineFixture(t, 1000)
	if err := f.machine.HandleUpdate(context.Background(), buyerListing(7, domain.StatusCanceledSystem)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if got := f.ledger.Balance(); got != 1500 {
		t.Fatalf("balance = %d, want 1500 after refund", got)
	}
	if f.notifier.count(notify.EventCancel) != 1 {
		t.Fatal("expected a cancel notification")
	}
	// Buyer side never touches the fulfillment queue.
	if f.queue.InFlight() != 0 || len(f.market.answered) != 0 {
		t.Fatal("buyer-side update drove seller actions")
	}
}
