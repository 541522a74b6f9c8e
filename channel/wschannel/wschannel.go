// Package wschannel implements channel.Channel over a WebSocket
// connection, grounded directly on the teacher's nhooyr.io/websocket
// dial/read/write usage in internal/core/connection.go (ws.Write with
// websocket.MessageBinary, ws.Read under a per-read context.
// WithTimeout, context.WithCancel-driven receive loop).
package wschannel

import (
	"context"
	"time"

	"nhooyr.io/websocket"

	"github.com/vertexhub/libpico/channel"
)

// WSChannel is a demo transport: one SIGMA-I logical message per
// WebSocket message, matching the teacher's one-frame-per-ws-message
// binary send/receive shape. WebSocket already delivers discrete
// message boundaries, so the 4-byte length-prefix framing in §6 (for
// byte-stream transports) is not layered on top here.
type WSChannel struct {
	conn    *websocket.Conn
	url     string
	timeout time.Duration
	ctx     context.Context
}

var _ channel.Channel = (*WSChannel)(nil)

// New wraps an already-dialed *websocket.Conn. ctx bounds the
// connection's lifetime the way the teacher's receiveLoop is bound by
// its caller's context.
func New(ctx context.Context, conn *websocket.Conn, url string) *WSChannel {
	return &WSChannel{conn: conn, url: url, timeout: 30 * time.Second, ctx: ctx}
}

// Dial opens a new WebSocket connection to url, mirroring the
// teacher's websocket.Dial(ctx, WAWebSocketURL, opts) call.
func Dial(ctx context.Context, url string) (*WSChannel, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, &channel.Error{Message: "wschannel: dial: " + err.Error()}
	}
	return New(ctx, conn, url), nil
}

// Open is a no-op for an already-dialed connection; present to
// satisfy channel.Channel for uniformity with transports that defer
// connection setup to Open.
func (w *WSChannel) Open() error {
	return nil
}

// Close closes the underlying WebSocket with a normal-closure status,
// matching the teacher's ws.Close(websocket.StatusNormalClosure, ...).
func (w *WSChannel) Close() error {
	if err := w.conn.Close(websocket.StatusNormalClosure, "closing"); err != nil {
		return &channel.Error{Message: "wschannel: close: " + err.Error()}
	}
	return nil
}

// Read blocks for up to the configured timeout for one WebSocket
// message.
func (w *WSChannel) Read() ([]byte, error) {
	readCtx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()
	_, data, err := w.conn.Read(readCtx)
	if err != nil {
		if readCtx.Err() == context.DeadlineExceeded {
			return nil, channel.ErrTimeout
		}
		return nil, &channel.Error{Message: "wschannel: read: " + err.Error()}
	}
	return data, nil
}

// Write sends msg as one binary WebSocket message.
func (w *WSChannel) Write(msg []byte) error {
	if err := w.conn.Write(w.ctx, websocket.MessageBinary, msg); err != nil {
		return &channel.Error{Message: "wschannel: write: " + err.Error()}
	}
	return nil
}

// GetURL returns the dialed URL.
func (w *WSChannel) GetURL() string { return w.url }

// SetURL updates the recorded URL (does not redial).
func (w *WSChannel) SetURL(url string) { w.url = url }

// SetTimeout sets the per-Read deadline.
func (w *WSChannel) SetTimeout(d time.Duration) { w.timeout = d }
