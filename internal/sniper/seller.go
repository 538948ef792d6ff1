package sniper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/notify"
)

// StateMachine reacts to listing status updates. On listings we sell it drives
// the marketplace hand-off protocol step by step; on listings we are buying it
// only tracks the purchase log. Which side applies is decided once per update
// via domain.RoleOf.
type StateMachine struct {
	ourSteamID string
	api        MarketAPI
	queue      *Queue
	ledger     *Ledger
	trades     TradeLog
	notifier   Notifier
	// relist recovers the inventory slot after the marketplace cancels one of
	// our listings out-of-band. May be nil when selling is disabled.
	relist func(ctx context.Context)
	logger *slog.Logger
}

// NewStateMachine creates the listing state machine.
func NewStateMachine(ourSteamID string, api MarketAPI, queue *Queue, ledger *Ledger, trades TradeLog, notifier Notifier, relist func(ctx context.Context), logger *slog.Logger) *StateMachine {
	return &StateMachine{
		ourSteamID: ourSteamID,
		api:        api,
		queue:      queue,
		ledger:     ledger,
		trades:     trades,
		notifier:   notifier,
		relist:     relist,
		logger:     logger.With(slog.String("component", "state_machine")),
	}
}

// HandleUpdate processes one status update for a listing. An unauthorized
// marketplace response is returned so the caller can refresh credentials.
func (m *StateMachine) HandleUpdate(ctx context.Context, l domain.Listing) error {
	switch domain.RoleOf(l, m.ourSteamID) {
	case domain.RoleSeller:
		return m.handleSeller(ctx, l)
	default:
		m.handleBuyer(ctx, l)
		return nil
	}
}

func (m *StateMachine) handleSeller(ctx context.Context, l domain.Listing) error {
	log := m.logger.With(
		slog.Int64("listing_id", l.ID),
		slog.String("item", l.Item.Name),
		slog.String("status", string(l.Status)),
	)

	switch l.Status {
	case domain.StatusAsked:
		// A buyer wants it. Accept at the protocol level.
		if err := m.api.AnswerListing(ctx, l.ID); err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return fmt.Errorf("sniper: answer listing %d: %w", l.ID, err)
			}
			log.Error("answer failed", slog.String("error", err.Error()))
			return nil
		}
		log.Info("sale answered")

	case domain.StatusAnswered:
		asset, err := l.Item.Asset()
		if err != nil {
			log.Error("cannot fulfill, bad asset reference", slog.String("error", err.Error()))
			return nil
		}
		m.queue.Enqueue(domain.TradeQueueEntry{
			ListingID:      l.ID,
			ItemName:       l.Item.Name,
			AskPrice:       l.Item.AskPrice,
			BuyerTradelink: l.BuyerTradelink,
			Asset:          asset,
			StepExpiresAt:  l.StepExpiresAt,
		})

	case domain.StatusSent:
		log.Info("transfer acknowledged by marketplace")

	case domain.StatusReceived:
		m.ledger.Credit(ctx, l.Item.AskPrice)
		m.queue.ClearCancel(l.ID)
		m.queue.ReleaseSlot()
		rec, ok := m.trades.FinalizeSale(ctx, l.ID, time.Now().UTC())
		log.Info("sale completed",
			slog.Int64("ask", l.Item.AskPrice),
			slog.Int64("balance", m.ledger.Balance()),
		)
		m.notifySale(ctx, l, rec, ok)

	case domain.StatusCanceledSystem:
		// The marketplace cancelled out-of-band, usually because our trade
		// send failed upstream. Nothing was collected so no ledger change;
		// re-list to recover the slot.
		if _, had := m.queue.ClearCancel(l.ID); had {
			m.queue.ReleaseSlot()
		}
		m.trades.DropSale(l.ID)
		log.Warn("listing cancelled by marketplace")
		m.notifier.Notify(ctx, notify.Notification{
			Event: notify.EventCancel,
			Title: "Listing cancelled",
			Color: notify.ColorOrange,
			Fields: []notify.Field{
				{Name: "Item", Value: l.Item.Name},
				{Name: "Price", Value: formatCoins(l.Item.AskPrice)},
			},
		})
		if m.relist != nil {
			m.relist(ctx)
		}

	case domain.StatusFailed:
		if _, had := m.queue.ClearCancel(l.ID); had {
			m.queue.ReleaseSlot()
		}
		m.trades.DropSale(l.ID)
		log.Warn("listing failed")
		if m.relist != nil {
			m.relist(ctx)
		}

	default:
		log.Debug("listing status changed")
	}
	return nil
}

// handleBuyer tracks listings we are buying. The queue never gets involved;
// the seller on the other side fulfills the trade.
func (m *StateMachine) handleBuyer(ctx context.Context, l domain.Listing) {
	log := m.logger.With(
		slog.Int64("listing_id", l.ID),
		slog.String("item", l.Item.Name),
		slog.String("status", string(l.Status)),
	)

	switch l.Status {
	case domain.StatusReceived:
		m.trades.FinalizePurchase(ctx, l.ID, time.Now().UTC())
		log.Info("purchased item received")

	case domain.StatusCanceledSystem, domain.StatusFailed:
		// Purchase fell through; the marketplace refunds the coins.
		m.ledger.Credit(ctx, l.Item.AskPrice)
		log.Warn("purchase cancelled, coins refunded",
			slog.Int64("balance", m.ledger.Balance()),
		)
		m.notifier.Notify(ctx, notify.Notification{
			Event: notify.EventCancel,
			Title: "Purchase cancelled",
			Color: notify.ColorOrange,
			Fields: []notify.Field{
				{Name: "Item", Value: l.Item.Name},
				{Name: "Refund", Value: formatCoins(l.Item.AskPrice)},
			},
		})

	default:
		log.Debug("purchase progressing")
	}
}

func (m *StateMachine) notifySale(ctx context.Context, l domain.Listing, rec domain.SaleRecord, recorded bool) {
	fields := []notify.Field{
		{Name: "Item", Value: l.Item.Name},
		{Name: "Price", Value: formatCoins(l.Item.AskPrice)},
		{Name: "Balance", Value: formatCoins(m.ledger.Balance())},
	}
	if recorded && rec.BoughtFor != nil {
		profit := l.Item.AskPrice - rec.BoughtFor.AskPrice
		fields = append(fields, notify.Field{Name: "Profit", Value: formatCoins(profit)})
	}
	m.notifier.Notify(ctx, notify.Notification{
		Event:  notify.EventSale,
		Title:  "Item sold",
		Color:  notify.ColorBlue,
		Fields: fields,
	})
}
