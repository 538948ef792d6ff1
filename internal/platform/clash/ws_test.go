package clash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDialSendsAuthAndDecodesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// First frame must be the auth announcement.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read auth frame: %v", err)
			return
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(msg, &frame); err != nil || len(frame) != 2 {
			t.Errorf("auth frame = %s", msg)
			return
		}
		var name, token string
		_ = json.Unmarshal(frame[0], &name)
		_ = json.Unmarshal(frame[1], &token)
		if name != "auth" || token != "tok" {
			t.Errorf("auth frame = [%q, %q]", name, token)
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`["p2p:listing:new",{"id":7}]`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`["ping"]`))
	}))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, err := dial(context.Background(), wsURL, "tok", "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.close()

	ev, err := conn.readEvent()
	if err != nil {
		t.Fatalf("readEvent: %v", err)
	}
	if ev.Name != "p2p:listing:new" || string(ev.Payload) != `{"id":7}` {
		t.Fatalf("event = %q payload %s", ev.Name, ev.Payload)
	}

	ev, err = conn.readEvent()
	if err != nil {
		t.Fatalf("readEvent: %v", err)
	}
	if ev.Name != "ping" || ev.Payload != nil {
		t.Fatalf("payload-less event = %+v", ev)
	}
}
