package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client connects a Session to a pairlink server over a WebSocket.
type Client struct {
	*Session

	conn    *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a pairlink server (e.g. "ws://localhost:8080/ws") and
// starts the read loop. The returned client embeds the session controller;
// close it with Close when done.
func Dial(ctx context.Context, url string, cb Callbacks, opts Options) (*Client, error) {
	c := &Client{done: make(chan struct{})}
	c.Session = NewSession(c.sendEvent, cb, opts)

	c.Session.HandleConnecting()

	dialer := &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.Session.HandleTransportClosed()
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// Close closes the connection. The session resets to disconnected.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage, message, deadline)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer func() {
		c.Close()
		c.Session.HandleTransportClosed()
		close(c.done)
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.Session.HandleFrame(frame)
	}
}

func (c *Client) sendEvent(eventType string, data any) error {
	env := map[string]any{"type": eventType}
	if data != nil {
		env["data"] = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", eventType, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}
