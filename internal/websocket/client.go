package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	errConnectionClosed = errors.New("client connection is closed")
	errContextCancelled = errors.New("client context cancelled")
)

// Client wraps one WebSocket connection. It owns the connection lifecycle;
// the registry only holds a lookup reference for sends. The client's ID is
// generated on connect and doubles as the participant identifier.
type Client struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	ctx         context.Context
	cancel      context.CancelFunc
	sendCh      chan []byte
	mu          sync.RWMutex
	closed      bool
	rateLimiter *rate.Limiter // limits inbound frames
}

// NewClient creates a client for an upgraded connection and starts its write
// pump.
func NewClient(conn *websocket.Conn, remoteAddr string, rateLimitConfig *RateLimitConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if rateLimitConfig != nil && rateLimitConfig.Enabled {
		limiter = rate.NewLimiter(rateLimitConfig.MessagesPerSecond, rateLimitConfig.Burst)
	}

	client := &Client{
		id:          uuid.NewString(),
		conn:        conn,
		remoteAddr:  remoteAddr,
		ctx:         ctx,
		cancel:      cancel,
		sendCh:      make(chan []byte, 256),
		rateLimiter: limiter,
	}

	go client.writePump()

	return client
}

// ID returns the unique identifier for the connected client.
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the client's remote network address.
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// Context returns the client's lifecycle context. It is cancelled when the
// connection closes.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Send queues a serialized event frame for delivery as a text frame. Returns
// an error if the connection is closed; callers relaying best-effort events
// drop the frame in that case.
func (c *Client) Send(ctx context.Context, frame []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errConnectionClosed
	}

	// Keep the lock while queueing to prevent a race with Close.
	select {
	case c.sendCh <- frame:
		c.mu.RUnlock()
		return nil
	case <-ctx.Done():
		c.mu.RUnlock()
		return ctx.Err()
	case <-c.ctx.Done():
		c.mu.RUnlock()
		return errContextCancelled
	}
}

// Close closes the client connection with a normal closure code.
func (c *Client) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a close code and optional reason.
// Safe to call more than once.
func (c *Client) CloseWithCode(ctx context.Context, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage, message, deadline)

	close(c.sendCh)
	return c.conn.Close()
}

// IsAlive returns true if the connection is still active.
func (c *Client) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// CheckRateLimit reports whether another inbound frame is allowed.
func (c *Client) CheckRateLimit() bool {
	if c.rateLimiter == nil {
		return true
	}
	return c.rateLimiter.Allow()
}

// writePump pumps frames from the send channel to the connection and keeps it
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
