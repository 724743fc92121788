// Package pairlink provides a WebSocket matchmaking and relay server for anonymous
// one-on-one ephemeral chat sessions.
//
// The server pairs waiting participants first-come-first-served and relays chat
// events (messages, typing indicators, disconnects) between the two members of a
// room. Nothing is persisted: participants, the waiting queue, rooms and the
// per-room message buffers live only in process memory and disappear when the
// room closes or the process exits.
//
// # Architecture
//
// Three cooperating parts sit behind a single WebSocket endpoint:
//
//   - the session registry, the authoritative in-memory store of participants,
//     the FIFO waiting queue, active rooms and transient message buffers;
//   - the matchmaking engine, which interprets inbound protocol events, mutates
//     the registry and computes which outbound events go to which participant;
//   - the connection handler, one per WebSocket connection, which parses frames
//     into protocol events, invokes the engine and writes its output back out.
//
// # Quick Start
//
//	import "github.com/pairlink/pairlink/ws"
//
//	server := ws.New(ws.NewConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins(), logger))
//
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Clients connect to ws://host:port/ws and exchange JSON text frames, each an
// event envelope:
//
//	{"type": "SEND_MESSAGE", "data": {"content": "hello"}}
//
// # Protocol
//
// Client to server: JOIN_QUEUE, LEAVE_QUEUE, SEND_MESSAGE, TYPING_START,
// TYPING_STOP, LEAVE_CHAT, NEXT_PARTNER.
//
// Server to client: QUEUE_JOINED, PARTNER_FOUND, MESSAGE_RECEIVED,
// PARTNER_TYPING, PARTNER_STOPPED_TYPING, PARTNER_DISCONNECTED, QUEUE_LEFT,
// ERROR.
//
// Message content is limited to 500 characters. Malformed frames produce an
// ERROR event on the offending connection only; they never close it and never
// affect other participants.
//
// # Rate Limiting
//
// Each connection has independent inbound rate limiting using a token bucket:
//
//	// Default: 100 messages/second, burst 200
//	cfg := ws.DefaultRateLimitConfig()
//
//	// Disabled
//	cfg := ws.NoRateLimit()
//
// When the limit is exceeded the connection is closed with code 1008 (Policy
// Violation).
//
// # Delivery Semantics
//
//   - Best effort only: sends to a closed connection are silently dropped,
//     never queued or retried.
//   - Messages are relayed to the partner only, never echoed to the sender.
//   - Room teardown is unconditional: when either member leaves or disconnects
//     the room and its message buffer are gone.
package pairlink
