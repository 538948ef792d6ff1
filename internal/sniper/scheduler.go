// Package sniper contains the real-time orchestration core: the listing-event
// dispatcher, the purchase decision engine, the seller listing state machine,
// the bounded trade fulfillment queue, and the balance ledger that gates
// purchasing.
package sniper

import "time"

// Handle is a cancellable scheduled task.
type Handle interface {
	// Cancel stops the task if it has not fired yet. It reports whether the
	// task was stopped before firing.
	Cancel() bool
}

// Scheduler schedules one-shot tasks. The production implementation wraps
// time.AfterFunc; tests substitute a manual one to control firing order.
type Scheduler interface {
	Schedule(after time.Duration, fn func()) Handle
}

type timerHandle struct {
	t *time.Timer
}

func (h timerHandle) Cancel() bool {
	return h.t.Stop()
}

// TimerScheduler schedules tasks on real timers.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(after time.Duration, fn func()) Handle {
	if after < 0 {
		after = 0
	}
	return timerHandle{t: time.AfterFunc(after, fn)}
}
