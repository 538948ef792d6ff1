package sniper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/notify"
)

// Stream event names relevant to the core. The stream carries many other
// event kinds (chat, jackpot, other game feeds) that are ignored.
const (
	evAuth          = "auth"
	evListingNew    = "p2p:listing:new"
	evListingRemove = "p2p:listing:remove"
	evListingUpdate = "p2p:listing:update"
)

// MarketAPI is the subset of the marketplace control plane the core drives.
// Implemented by the clash REST client.
type MarketAPI interface {
	BuyListing(ctx context.Context, id int64) error
	AnswerListing(ctx context.Context, id int64) error
	DeleteListing(ctx context.Context, id int64) error
}

// Notifier delivers fire-and-forget notifications. Implemented by the notify
// fan-out; failures never reach the core.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// TradeLog stages and finalizes transaction records across listing lifecycle
// milestones. Implemented by the tradelog package.
type TradeLog interface {
	StagePurchase(rec domain.PurchaseRecord)
	FinalizePurchase(ctx context.Context, listingID int64, receivedAt time.Time)
	StageSale(rec domain.SaleRecord)
	FinalizeSale(ctx context.Context, listingID int64, receivedAt time.Time) (domain.SaleRecord, bool)
	DropSale(listingID int64)
}

// Engine is the event dispatcher and the owner of the watch set. A single
// goroutine consumes the session's event channel, which preserves the order
// the stream delivered events in, and routes each frame to the decision
// engine or the listing state machine.
type Engine struct {
	events  <-chan domain.StreamEvent
	decider *Decider
	machine *StateMachine
	// refresh triggers a single-flight credential refresh after an
	// Unauthorized marketplace response.
	refresh func(ctx context.Context) error
	logger  *slog.Logger

	mu    sync.Mutex
	watch map[int64]domain.Listing
}

// NewEngine creates the dispatcher.
func NewEngine(events <-chan domain.StreamEvent, decider *Decider, machine *StateMachine, refresh func(ctx context.Context) error, logger *slog.Logger) *Engine {
	return &Engine{
		events:  events,
		decider: decider,
		machine: machine,
		refresh: refresh,
		logger:  logger.With(slog.String("component", "engine")),
		watch:   make(map[int64]domain.Listing),
	}
}

// Watching reports whether a listing is in the watch set.
func (e *Engine) Watching(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.watch[id]
	return ok
}

func (e *Engine) watchAdd(l domain.Listing) {
	e.mu.Lock()
	e.watch[l.ID] = l
	e.mu.Unlock()
}

func (e *Engine) watchRemove(id int64) {
	e.mu.Lock()
	delete(e.watch, id)
	e.mu.Unlock()
}

// Run consumes stream events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			e.Handle(ctx, ev)
		}
	}
}

// Handle routes one decoded stream event.
func (e *Engine) Handle(ctx context.Context, ev domain.StreamEvent) {
	switch ev.Name {
	case evAuth:
		e.logger.Info("stream authenticated")

	case evListingNew:
		l, ok := e.decodeListing(ev)
		if !ok {
			return
		}
		bought, err := e.decider.Evaluate(ctx, l)
		if err != nil {
			e.escalate(ctx, err)
			return
		}
		if bought {
			e.watchAdd(l)
		}

	case evListingRemove:
		l, ok := e.decodeListing(ev)
		if !ok {
			return
		}
		e.watchRemove(l.ID)

	case evListingUpdate:
		l, ok := e.decodeListing(ev)
		if !ok {
			return
		}
		if err := e.machine.HandleUpdate(ctx, l); err != nil {
			e.escalate(ctx, err)
		}
		if l.Status.Terminal() {
			e.watchRemove(l.ID)
		}

	default:
		e.logger.Warn("unhandled stream event", slog.String("event", ev.Name))
	}
}

func (e *Engine) decodeListing(ev domain.StreamEvent) (domain.Listing, bool) {
	var l domain.Listing
	if err := json.Unmarshal(ev.Payload, &l); err != nil {
		e.logger.Warn("malformed listing payload",
			slog.String("event", ev.Name),
			slog.String("error", err.Error()),
		)
		return domain.Listing{}, false
	}
	return l, true
}

// escalate handles errors bubbled out of handlers. Unauthorized triggers a
// credential refresh; the triggering operation is not retried, the next
// stream event re-drives the workflow.
func (e *Engine) escalate(ctx context.Context, err error) {
	if !errors.Is(err, domain.ErrUnauthorized) {
		e.logger.Error("handler failed", slog.String("error", err.Error()))
		return
	}
	e.logger.Warn("marketplace rejected credentials, refreshing")
	if e.refresh == nil {
		return
	}
	if rerr := e.refresh(ctx); rerr != nil && !errors.Is(rerr, context.Canceled) {
		e.logger.Error("credential refresh failed", slog.String("error", rerr.Error()))
	}
}
