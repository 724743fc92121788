package pairlink

import "context"

// Server is a WebSocket matchmaking server. Connections arrive on the /ws
// endpoint; each one becomes an anonymous participant that can join the
// waiting queue, get paired into a room and exchange relay events with its
// partner.
//
// Example usage:
//
//	import "github.com/pairlink/pairlink/ws"
//
//	server := ws.New(ws.NewConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins(), logger))
//	server.Start(ctx)
type Server interface {
	// Start starts the server and begins listening for connections.
	// The server keeps running until Stop is called or the context is
	// cancelled.
	//
	// Returns an error if the server is already running or if there is a
	// problem binding to the network address.
	Start(ctx context.Context) error

	// Stop gracefully stops the server and closes all client connections.
	// Active connections are given time to close properly.
	Stop(ctx context.Context) error
}

// Conn represents one connected participant's WebSocket connection.
//
// Each connection has a unique identifier that doubles as the participant
// identifier for the lifetime of the connection. The registry holds a
// lookup-only reference to the Conn for outbound sends; ownership of the
// connection lifecycle stays with the connection handler.
type Conn interface {
	// ID returns the unique identifier assigned to this connection. It is
	// generated server-side when the connection is established and remains
	// constant until disconnect.
	ID() string

	// RemoteAddr returns the client's remote network address, typically in
	// "IP:port" format.
	RemoteAddr() string

	// Context returns the connection's lifecycle context. It is cancelled
	// when the connection closes, allowing goroutines tied to the
	// connection to clean up.
	Context() context.Context

	// Send queues an already-serialized event frame for delivery. The send
	// is non-blocking; if the connection is closed the frame is dropped and
	// an error returned. Callers relaying events treat that error as a
	// silent drop.
	Send(ctx context.Context, frame []byte) error

	// Close closes the connection gracefully with a normal closure code.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific WebSocket close
	// code and optional reason.
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive returns true if the connection is still active.
	IsAlive() bool
}
