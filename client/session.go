// Package client implements the client half of the pairlink protocol: a
// session controller that maintains a local view of connection status,
// message history and the partner's typing indicator, driven purely by
// received events, plus a WebSocket dialer that wires it to a server.
//
// The controller mirrors the server protocol exactly. It keeps its own wire
// types so that it depends only on the documented JSON envelope format, not
// on server internals.
package client

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the local connection status.
type Status string

const (
	// StatusDisconnected covers both "no connection" and "connected but
	// idle" (after QUEUE_JOINED or QUEUE_LEFT).
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusWaiting      Status = "waiting"
	StatusMatched      Status = "matched"
	// StatusPartnerDisconnected means the partner left the room; the local
	// participant chooses to wait for a new partner or disconnect.
	StatusPartnerDisconnected Status = "disconnected_partner"
)

const (
	defaultTypingIndicatorTimeout = 3 * time.Second
	defaultTypingDebounce         = time.Second
)

// Message is one entry of the local chat history.
type Message struct {
	ID      string
	Content string
	// Sent is true for messages sent locally, false for received ones.
	Sent      bool
	Timestamp int64 // Unix milliseconds
}

// Callbacks receive state changes. All callbacks are optional and are invoked
// from the goroutine that delivered the triggering event (or the typing
// timer), without internal locks held.
type Callbacks struct {
	OnStatus        func(Status)
	OnMessage       func(Message)
	OnPartnerTyping func(bool)
	OnError         func(message string)
}

// Options tune the session timers. Zero values select the defaults: a 3s
// typing indicator auto-clear and a 1s outbound typing debounce.
type Options struct {
	TypingIndicatorTimeout time.Duration
	TypingDebounce         time.Duration
}

// SendFunc delivers an outbound event envelope to the server.
type SendFunc func(eventType string, data any) error

// Session is the transport-independent session controller. Feed it received
// frames with HandleFrame and transport loss with HandleTransportClosed; it
// sends protocol events through the SendFunc it was created with.
type Session struct {
	mu   sync.Mutex
	send SendFunc
	cb   Callbacks
	opts Options

	status        Status
	userID        string
	roomID        string
	messages      []Message
	partnerTyping bool

	indicatorTimer *time.Timer // clears a stale partner typing indicator
	debounceTimer  *time.Timer // emits TYPING_STOP after input ceases
	typing         bool        // an unstopped TYPING_START is outstanding
}

// NewSession creates a session controller in the disconnected state.
func NewSession(send SendFunc, cb Callbacks, opts Options) *Session {
	if opts.TypingIndicatorTimeout <= 0 {
		opts.TypingIndicatorTimeout = defaultTypingIndicatorTimeout
	}
	if opts.TypingDebounce <= 0 {
		opts.TypingDebounce = defaultTypingDebounce
	}
	return &Session{
		send:   send,
		cb:     cb,
		opts:   opts,
		status: StatusDisconnected,
	}
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// UserID returns the server-assigned participant identifier, empty until
// QUEUE_JOINED arrives.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// RoomID returns the current room identifier, empty outside a room.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// History returns a copy of the local message history, oldest first.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// PartnerTyping reports whether the partner typing indicator is visible.
func (s *Session) PartnerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partnerTyping
}

// envelope mirrors the wire format {type, data}.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HandleFrame processes one received text frame. Unparseable frames and
// unknown event types are ignored; the server never depends on a client
// reaction to them.
func (s *Session) HandleFrame(frame []byte) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return
	}

	s.mu.Lock()
	var after []func()

	switch env.Type {
	case "QUEUE_JOINED":
		var data struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		s.userID = data.UserID
		after = append(after, s.setStatusLocked(StatusDisconnected))

	case "PARTNER_FOUND":
		var data struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		s.roomID = data.RoomID
		s.messages = nil
		after = append(after, s.clearPartnerTypingLocked())
		after = append(after, s.setStatusLocked(StatusMatched))

	case "MESSAGE_RECEIVED":
		var data struct {
			Content   string `json:"content"`
			Timestamp int64  `json:"timestamp"`
			MessageID string `json:"messageId"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		msg := Message{
			ID:        data.MessageID,
			Content:   data.Content,
			Sent:      false,
			Timestamp: data.Timestamp,
		}
		s.messages = append(s.messages, msg)
		if s.cb.OnMessage != nil {
			after = append(after, func() { s.cb.OnMessage(msg) })
		}

	case "PARTNER_TYPING":
		after = append(after, s.showPartnerTypingLocked())

	case "PARTNER_STOPPED_TYPING":
		after = append(after, s.clearPartnerTypingLocked())

	case "PARTNER_DISCONNECTED":
		s.roomID = ""
		after = append(after, s.clearPartnerTypingLocked())
		after = append(after, s.setStatusLocked(StatusPartnerDisconnected))

	case "QUEUE_LEFT":
		after = append(after, s.setStatusLocked(StatusDisconnected))

	case "ERROR":
		var data struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		if s.cb.OnError != nil {
			msg := data.Message
			after = append(after, func() { s.cb.OnError(msg) })
		}
	}

	s.mu.Unlock()
	for _, fn := range after {
		if fn != nil {
			fn()
		}
	}
}

// HandleConnecting marks the session as connecting. The transport calls this
// before dialing.
func (s *Session) HandleConnecting() {
	s.mu.Lock()
	notify := s.setStatusLocked(StatusConnecting)
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// HandleTransportClosed resets the session after the underlying connection
// closed: history, identifiers and typing state are all discarded.
func (s *Session) HandleTransportClosed() {
	s.mu.Lock()
	s.userID = ""
	s.roomID = ""
	s.messages = nil
	cleared := s.clearPartnerTypingLocked()
	s.stopTimersLocked()
	notify := s.setStatusLocked(StatusDisconnected)
	s.mu.Unlock()
	if cleared != nil {
		cleared()
	}
	if notify != nil {
		notify()
	}
}

// JoinQueue asks to be paired and enters the waiting state.
func (s *Session) JoinQueue() error {
	s.mu.Lock()
	notify := s.setStatusLocked(StatusWaiting)
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
	return s.send("JOIN_QUEUE", nil)
}

// LeaveQueue withdraws from the waiting queue. The status flips back to
// disconnected when the QUEUE_LEFT confirmation arrives.
func (s *Session) LeaveQueue() error {
	return s.send("LEAVE_QUEUE", nil)
}

// SendMessage sends a chat message and appends it to the local history
// immediately; the server never echoes it back. Whitespace-only content is
// ignored.
func (s *Session) SendMessage(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	s.mu.Lock()
	msg := Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sent:      true,
		Timestamp: time.Now().UnixMilli(),
	}
	s.messages = append(s.messages, msg)
	stop := s.stopTypingLocked()
	s.mu.Unlock()

	if s.cb.OnMessage != nil {
		s.cb.OnMessage(msg)
	}
	if stop {
		if err := s.send("TYPING_STOP", nil); err != nil {
			return err
		}
	}
	return s.send("SEND_MESSAGE", map[string]any{"content": content})
}

// Typing registers one keystroke. The first keystroke of a burst emits
// TYPING_START; each one re-arms the idle timer, and a single TYPING_STOP is
// emitted once input has ceased for the debounce interval.
func (s *Session) Typing() error {
	s.mu.Lock()
	start := !s.typing
	s.typing = true
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.opts.TypingDebounce, s.typingIdle)
	s.mu.Unlock()

	if start {
		return s.send("TYPING_START", nil)
	}
	return nil
}

// StopTyping emits TYPING_STOP immediately if a start is outstanding.
func (s *Session) StopTyping() error {
	s.mu.Lock()
	stop := s.stopTypingLocked()
	s.mu.Unlock()
	if stop {
		return s.send("TYPING_STOP", nil)
	}
	return nil
}

func (s *Session) typingIdle() {
	s.mu.Lock()
	stop := s.stopTypingLocked()
	s.mu.Unlock()
	if stop {
		s.send("TYPING_STOP", nil)
	}
}

// LeaveChat leaves the current room and returns to the idle state.
func (s *Session) LeaveChat() error {
	s.mu.Lock()
	s.roomID = ""
	s.messages = nil
	cleared := s.clearPartnerTypingLocked()
	notify := s.setStatusLocked(StatusDisconnected)
	s.mu.Unlock()
	if cleared != nil {
		cleared()
	}
	if notify != nil {
		notify()
	}
	return s.send("LEAVE_CHAT", nil)
}

// NextPartner leaves the current room and rejoins the queue in one step.
func (s *Session) NextPartner() error {
	s.mu.Lock()
	s.roomID = ""
	s.messages = nil
	cleared := s.clearPartnerTypingLocked()
	notify := s.setStatusLocked(StatusWaiting)
	s.mu.Unlock()
	if cleared != nil {
		cleared()
	}
	if notify != nil {
		notify()
	}
	return s.send("NEXT_PARTNER", nil)
}

// setStatusLocked updates the status and returns the callback to run after
// the lock is released, or nil when nothing changed.
func (s *Session) setStatusLocked(status Status) func() {
	if s.status == status {
		return nil
	}
	s.status = status
	if s.cb.OnStatus == nil {
		return nil
	}
	return func() { s.cb.OnStatus(status) }
}

// showPartnerTypingLocked shows the indicator and arms the auto-clear timer.
// A lost PARTNER_STOPPED_TYPING therefore cannot wedge the indicator on.
func (s *Session) showPartnerTypingLocked() func() {
	if s.indicatorTimer != nil {
		s.indicatorTimer.Stop()
	}
	s.indicatorTimer = time.AfterFunc(s.opts.TypingIndicatorTimeout, func() {
		s.mu.Lock()
		notify := s.clearPartnerTypingLocked()
		s.mu.Unlock()
		if notify != nil {
			notify()
		}
	})

	if s.partnerTyping {
		return nil
	}
	s.partnerTyping = true
	if s.cb.OnPartnerTyping == nil {
		return nil
	}
	return func() { s.cb.OnPartnerTyping(true) }
}

func (s *Session) clearPartnerTypingLocked() func() {
	if s.indicatorTimer != nil {
		s.indicatorTimer.Stop()
		s.indicatorTimer = nil
	}
	if !s.partnerTyping {
		return nil
	}
	s.partnerTyping = false
	if s.cb.OnPartnerTyping == nil {
		return nil
	}
	return func() { s.cb.OnPartnerTyping(false) }
}

// stopTypingLocked clears the outbound typing state and reports whether a
// TYPING_STOP should be sent.
func (s *Session) stopTypingLocked() bool {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	if !s.typing {
		return false
	}
	s.typing = false
	return true
}

func (s *Session) stopTimersLocked() {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.typing = false
}
