// Package realtime owns the persistent connection to the orchestrator:
// dialing, reconnection with exponential backoff and jitter, plan
// subscription tracking, and typed event dispatch to listeners.
package realtime

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Conn is the minimal transport surface the manager needs. It is
// satisfied by the websocket implementation and by test fakes.
type Conn interface {
	// ReadMessage blocks until the next frame or a transport error.
	ReadMessage() ([]byte, error)

	// WriteJSON marshals v and writes it as one frame.
	WriteJSON(v any) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer opens transport connections. Swapped for a fake in tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// wsConn adapts a gorilla websocket connection to Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WebsocketDialer dials real websocket endpoints.
type WebsocketDialer struct{}

// Dial opens a websocket connection to url.
func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsConn{conn: conn}, nil
}
