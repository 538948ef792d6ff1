// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Discord, Telegram) and can be
// filtered by event type so operators receive only the alerts they care
// about. Delivery is fire-and-forget: sender failures are logged and never
// block the caller.
package notify

import (
	"context"
	"log/slog"
	"strings"
)

// Event types emitted by the sniper.
const (
	EventStarted       = "started"
	EventPurchase      = "purchase"
	EventSale          = "sale"
	EventCancel        = "cancel"
	EventPause         = "pause"
	EventResume        = "resume"
	EventAccountValue  = "account_value"
	EventTradeAccepted = "trade_accepted"
)

// Field is one labelled value in a notification.
type Field struct {
	Name  string
	Value string
}

// Notification is a structured message: senders render the fields natively
// (Discord embeds) or flatten them to text (Telegram).
type Notification struct {
	Event  string
	Title  string
	Color  int
	Fields []Field
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification.
	Send(ctx context.Context, n Notification) error
	// Name returns a human-readable identifier for the sender (e.g. "discord").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; events outside the set are dropped. An empty
// set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders if its event type is allowed.
// Errors are logged, never returned: notification failure must not affect
// trading.
func (n *Notifier) Notify(ctx context.Context, msg Notification) {
	if len(n.events) > 0 && !n.events[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", msg.Event))
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", msg.Event),
				slog.String("error", err.Error()),
			)
		}
	}
}
