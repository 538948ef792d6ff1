package sniper

import (
	"context"
	"testing"
)

func TestLedgerConservation(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(1000, 100, nil, nil, testLogger())

	debits := []int64{300, 200, 150}
	credits := []int64{250, 100}
	for _, d := range debits {
		l.Debit(ctx, d)
	}
	for _, c := range credits {
		l.Credit(ctx, c)
	}

	want := int64(1000 - 300 - 200 - 150 + 250 + 100)
	if got := l.Balance(); got != want {
		t.Fatalf("balance = %d, want %d", got, want)
	}
}

func TestLedgerBreakerIdempotence(t *testing.T) {
	ctx := context.Background()
	var pauses, resumes int
	l := NewLedger(150, 100,
		func(ctx context.Context, balance int64) { pauses++ },
		func(ctx context.Context, balance int64) { resumes++ },
		testLogger(),
	)
	if !l.Enabled() {
		t.Fatal("breaker should start open with balance above minimum")
	}

	l.Debit(ctx, 100) // 50, crosses below
	l.Debit(ctx, 20)  // 30, still below
	l.Debit(ctx, 10)  // 20, still below
	if pauses != 1 {
		t.Fatalf("pause fired %d times, want 1", pauses)
	}
	if l.Enabled() {
		t.Fatal("breaker should be closed")
	}

	l.Credit(ctx, 30) // 50, still below
	if resumes != 0 {
		t.Fatalf("resume fired early: balance %d", l.Balance())
	}
	l.Credit(ctx, 60) // 110, recovers
	if resumes != 1 {
		t.Fatalf("resume fired %d times, want 1", resumes)
	}
	if !l.Enabled() {
		t.Fatal("breaker should have reopened")
	}

	// Second crossing fires a second pause.
	l.Debit(ctx, 50) // 60
	if pauses != 2 {
		t.Fatalf("pause fired %d times after second crossing, want 2", pauses)
	}
}

func TestLedgerStartsPausedWhenBroke(t *testing.T) {
	l := NewLedger(50, 100, nil, nil, testLogger())
	if l.Enabled() {
		t.Fatal("breaker should start closed with balance below minimum")
	}
}

func TestLedgerSetBalance(t *testing.T) {
	ctx := context.Background()
	var resumes int
	l := NewLedger(50, 100, nil, func(ctx context.Context, balance int64) { resumes++ }, testLogger())

	l.SetBalance(ctx, 500)
	if got := l.Balance(); got != 500 {
		t.Fatalf("balance = %d, want 500", got)
	}
	if resumes != 1 {
		t.Fatalf("resume fired %d times, want 1", resumes)
	}
}
