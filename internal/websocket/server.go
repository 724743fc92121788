// Package websocket implements the connection handler: it accepts WebSocket
// connections, frames JSON event envelopes in and out, and drives the
// matchmaking engine on behalf of each connection.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pairlink/pairlink"
	"github.com/pairlink/pairlink/internal/engine"
	"github.com/pairlink/pairlink/internal/protocol"
	"github.com/pairlink/pairlink/internal/registry"
)

const readDeadline = 60 * time.Second

// CheckOriginFn validates the origin of a WebSocket connection request.
// Return true to allow the connection.
type CheckOriginFn = func(r *http.Request) bool

// ServerConfig configures the server.
type ServerConfig struct {
	Addr            string
	RateLimitConfig *RateLimitConfig
	CheckOrigin     CheckOriginFn
	Logger          *zap.Logger
}

// RateLimitConfig defines inbound rate limiting applied per connection.
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames a client can send per second.
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity).
	Burst int
	// Enabled determines if rate limiting is active.
	Enabled bool
}

// DefaultRateLimitConfig allows 100 frames per second with burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// Server accepts WebSocket connections on /ws and runs one connection handler
// per client. All session state lives in the registry behind the engine.
type Server struct {
	addr    string
	server  *http.Server
	clients sync.Map // map[string]*Client

	registry *registry.Registry
	engine   *engine.Engine

	rateLimitConfig *RateLimitConfig
	log             *zap.Logger

	mu       sync.Mutex
	running  bool
	upgrader websocket.Upgrader
}

// New creates a server instance with the specified configuration. A nil rate
// limit config falls back to the default; a nil logger disables logging.
func New(cfg *ServerConfig) *Server {
	if cfg.RateLimitConfig == nil {
		cfg.RateLimitConfig = DefaultRateLimitConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	reg := registry.New()

	return &Server{
		addr:            cfg.Addr,
		registry:        reg,
		engine:          engine.New(reg, log),
		rateLimitConfig: cfg.RateLimitConfig,
		log:             log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Registry exposes the session registry for introspection (stats logging and
// tests). Callers must not retain participant connection handles.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Check for immediate startup errors with a small timeout.
	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		s.log.Info("server listening", zap.String("addr", s.addr))
		return nil
	}
}

// Stop gracefully stops the server and closes all client connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close(ctx)
		}
		return true
	})

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleWebSocket upgrades an incoming connection and hands it to a handler
// goroutine.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "Failed to upgrade connection", http.StatusBadRequest)
		return
	}

	client := NewClient(conn, r.RemoteAddr, s.rateLimitConfig)
	s.clients.Store(client.ID(), client)

	go s.handleClient(client)
}

// handleClient is the per-connection loop: register on open, parse and
// dispatch each inbound frame, run disconnect cleanup exactly once on close
// or error.
func (s *Server) handleClient(client *Client) {
	defer func() {
		// Disconnect is idempotent in the engine, so a close racing a
		// transport error cannot notify the partner twice.
		s.dispatch(s.engine.Disconnect(client.ID()))
		s.clients.Delete(client.ID())
		client.Close(context.Background())

		stats := s.registry.Stats()
		s.log.Debug("session stats",
			zap.Int("participants", stats.Participants),
			zap.Int("queued", stats.Queued),
			zap.Int("rooms", stats.Rooms),
		)
	}()

	client.conn.SetReadDeadline(time.Now().Add(readDeadline))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	// Register and confirm with QUEUE_JOINED before reading any frames.
	_, outs := s.engine.Connect(client)
	s.dispatch(outs)

	for {
		select {
		case <-client.Context().Done():
			return
		default:
			_, data, err := client.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("connection closed unexpectedly",
						zap.String("client_id", client.ID()),
						zap.Error(err),
					)
				}
				return
			}

			client.conn.SetReadDeadline(time.Now().Add(readDeadline))

			if !client.CheckRateLimit() {
				s.log.Warn("rate limit exceeded",
					zap.String("client_id", client.ID()),
					zap.String("remote_addr", client.RemoteAddr()),
				)
				client.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, "Rate limit exceeded")
				return
			}

			// Unparseable frames answer with an ERROR event on this
			// connection only; the engine is not invoked and the
			// connection stays open.
			env, err := protocol.DecodeEnvelope(data)
			if err != nil {
				s.sendError(client, pairlink.ErrInvalidMessageFormat)
				continue
			}

			s.dispatch(s.engine.Handle(client.ID(), env))
		}
	}
}

// dispatch serializes and sends the engine's outbound events. Sends to closed
// connections are dropped, never retried.
func (s *Server) dispatch(outs []engine.Outbound) {
	for _, out := range outs {
		if out.Conn == nil {
			continue
		}
		frame, err := protocol.Encode(out.Type, out.Data)
		if err != nil {
			s.log.Error("encoding outbound event",
				zap.String("type", out.Type),
				zap.String("to", out.To),
				zap.Error(err),
			)
			continue
		}
		if err := out.Conn.Send(context.Background(), frame); err != nil {
			s.log.Debug("dropped outbound event",
				zap.String("type", out.Type),
				zap.String("to", out.To),
				zap.Error(err),
			)
		}
	}
}

func (s *Server) sendError(client *Client, message string) {
	frame, err := protocol.Encode(pairlink.EventError, protocol.ErrorPayload{Message: message})
	if err != nil {
		s.log.Error("encoding error event", zap.Error(err))
		return
	}
	if err := client.Send(context.Background(), frame); err != nil {
		s.log.Debug(fmt.Sprintf("dropped error event to %s", client.ID()), zap.Error(err))
	}
}
