package sniper

import (
	"context"
	"log/slog"
	"sync"
)

// Ledger is the single source of truth for available funds, in coin cents. It
// doubles as the purchasing circuit breaker: whenever a mutation drops the
// balance strictly below the configured minimum purchase price, sniping is
// disabled until the balance recovers. State transitions fire the onPause and
// onResume callbacks exactly once per crossing.
type Ledger struct {
	logger   *slog.Logger
	minPrice int64

	onPause  func(ctx context.Context, balance int64)
	onResume func(ctx context.Context, balance int64)

	mu      sync.Mutex
	balance int64
	enabled bool
}

// NewLedger creates a ledger with the given starting balance. minPrice is the
// threshold below which purchasing pauses. Callbacks may be nil.
func NewLedger(balance, minPrice int64, onPause, onResume func(ctx context.Context, balance int64), logger *slog.Logger) *Ledger {
	return &Ledger{
		logger:   logger.With(slog.String("component", "ledger")),
		minPrice: minPrice,
		onPause:  onPause,
		onResume: onResume,
		balance:  balance,
		enabled:  balance >= minPrice,
	}
}

// Balance returns the current available balance in coin cents.
func (l *Ledger) Balance() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Enabled reports whether purchasing is currently allowed.
func (l *Ledger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Credit adds amount to the balance and re-evaluates the breaker.
func (l *Ledger) Credit(ctx context.Context, amount int64) {
	l.mutate(ctx, amount)
}

// Debit subtracts amount from the balance and re-evaluates the breaker.
func (l *Ledger) Debit(ctx context.Context, amount int64) {
	l.mutate(ctx, -amount)
}

// SetBalance replaces the balance outright, e.g. after a profile fetch, and
// re-evaluates the breaker.
func (l *Ledger) SetBalance(ctx context.Context, balance int64) {
	l.mu.Lock()
	l.balance = balance
	l.mu.Unlock()
	l.Recheck(ctx)
}

func (l *Ledger) mutate(ctx context.Context, delta int64) {
	l.mu.Lock()
	l.balance += delta
	balance := l.balance
	l.mu.Unlock()

	l.logger.Debug("balance changed",
		slog.Int64("delta", delta),
		slog.Int64("balance", balance),
	)
	l.Recheck(ctx)
}

// Recheck re-evaluates the breaker against the current balance. Only a state
// transition fires a callback; staying below (or at/above) the threshold is a
// no-op, so repeated debits under the minimum emit a single pause.
func (l *Ledger) Recheck(ctx context.Context) {
	l.mu.Lock()
	balance := l.balance
	var paused, resumed bool
	switch {
	case l.enabled && balance < l.minPrice:
		l.enabled = false
		paused = true
	case !l.enabled && balance >= l.minPrice:
		l.enabled = true
		resumed = true
	}
	l.mu.Unlock()

	if paused {
		l.logger.Warn("sniping paused, balance below minimum",
			slog.Int64("balance", balance),
			slog.Int64("min_price", l.minPrice),
		)
		if l.onPause != nil {
			l.onPause(ctx, balance)
		}
	}
	if resumed {
		l.logger.Info("sniping resumed, balance recovered",
			slog.Int64("balance", balance),
			slog.Int64("min_price", l.minPrice),
		)
		if l.onResume != nil {
			l.onResume(ctx, balance)
		}
	}
}
