package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu   sync.Mutex
	got  []Notification
	fail bool
}

func (r *recordingSender) Send(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("boom")
	}
	r.got = append(r.got, n)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func TestNotifierEventFilter(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, []string{EventPurchase, EventSale}, testLogger())
	ctx := context.Background()

	n.Notify(ctx, Notification{Event: EventPurchase, Title: "bought"})
	n.Notify(ctx, Notification{Event: EventPause, Title: "paused"})

	if len(s.got) != 1 || s.got[0].Event != EventPurchase {
		t.Fatalf("delivered = %+v, want only the purchase", s.got)
	}
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	n.Notify(context.Background(), Notification{Event: EventPause})
	if len(s.got) != 1 {
		t.Fatalf("delivered %d, want 1", len(s.got))
	}
}

func TestNotifierSenderFailureDoesNotPanic(t *testing.T) {
	failing := &recordingSender{fail: true}
	ok := &recordingSender{}
	n := NewNotifier([]Sender{failing, ok}, nil, testLogger())

	n.Notify(context.Background(), Notification{Event: EventSale})
	if len(ok.got) != 1 {
		t.Fatal("healthy sender skipped after a failing one")
	}
}

func TestDiscordSenderPostsEmbed(t *testing.T) {
	var payload discordPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	s := NewDiscordSender(ts.URL, "Clash.gg Sniper")
	err := s.Send(context.Background(), Notification{
		Event: EventPurchase,
		Title: "Item purchased",
		Color: ColorGreen,
		Fields: []Field{
			{Name: "Item", Value: "AK-47 | Redline"},
			{Name: "Price", Value: "5.00 coins"},
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload.Username != "Clash.gg Sniper" {
		t.Fatalf("username = %q", payload.Username)
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	if embed.Title != "Item purchased" || embed.Color != ColorGreen || len(embed.Fields) != 2 {
		t.Fatalf("embed = %+v", embed)
	}
}

func TestDiscordSenderErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	s := NewDiscordSender(ts.URL, "")
	if err := s.Send(context.Background(), Notification{Title: "x"}); err == nil {
		t.Fatal("expected an error on non-2xx status")
	}
}
