package clash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second
)

// wsConn is a single authenticated connection to the marketplace event
// stream. Frames are JSON arrays of the form [eventName, payload]. The
// connection is never repaired in place: the session manager discards it and
// dials a new one on any failure.
type wsConn struct {
	conn *websocket.Conn
}

// dial opens the stream connection and sends the auth announcement carrying
// the access token.
func dial(ctx context.Context, wsURL, accessToken, cfClearance string) (*wsConn, error) {
	header := http.Header{}
	header.Set("Origin", "https://clash.gg")
	header.Set("User-Agent", userAgent)
	header.Set("Authorization", "Bearer "+accessToken)
	if cfClearance != "" {
		header.Set("Cookie", "cf_clearance="+cfClearance)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("clash: ws dial: %w", err)
	}

	w := &wsConn{conn: conn}
	if err := w.send("auth", accessToken); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clash: ws auth: %w", err)
	}
	return w, nil
}

// send writes one [eventName, payload] frame.
func (w *wsConn) send(event string, payload any) error {
	frame, err := json.Marshal([]any{event, payload})
	if err != nil {
		return err
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, frame)
}

// readEvent blocks for the next frame and decodes it. A read failure means
// the connection is gone; callers treat it as a forced close.
func (w *wsConn) readEvent() (domain.StreamEvent, error) {
	_, msg, err := w.conn.ReadMessage()
	if err != nil {
		return domain.StreamEvent{}, fmt.Errorf("clash: ws read: %w", domain.ErrWSDisconnect)
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil || len(frame) == 0 {
		return domain.StreamEvent{}, fmt.Errorf("clash: ws frame %q: malformed", truncate(msg, 128))
	}

	var name string
	if err := json.Unmarshal(frame[0], &name); err != nil {
		return domain.StreamEvent{}, fmt.Errorf("clash: ws frame: non-string event name")
	}

	ev := domain.StreamEvent{Name: name}
	if len(frame) > 1 {
		ev.Payload = frame[1]
	}
	return ev, nil
}

func (w *wsConn) close() {
	_ = w.conn.Close()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
