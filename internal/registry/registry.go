// Package registry holds the authoritative in-memory session state: connected
// participants, the FIFO waiting queue, active rooms and the transient
// per-room message buffers.
//
// The registry is the single source of truth and the only owner of these
// collections. Every operation takes the registry mutex, so each one appears
// atomic relative to the others. No operation performs I/O; callers send
// outbound events after the mutation completes, using the snapshots the
// registry returns.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pairlink/pairlink"
)

var (
	// ErrInvalidPairing is returned by PairRoom when either identifier is
	// unknown or both refer to the same participant. This is an engine bug,
	// not user input.
	ErrInvalidPairing = errors.New("invalid pairing")
	// ErrNoSuchRoom is returned by Record when the room no longer exists.
	ErrNoSuchRoom = errors.New("no such room")
)

// Participant is one connected session. While alive it is in exactly one of
// three states: idle, queued (InQueue set) or in-room (RoomID set). The two
// flags are never set together.
type Participant struct {
	ID          string
	Conn        pairlink.Conn
	InQueue     bool
	RoomID      string
	ConnectedAt time.Time
}

// Room is an active pairing of exactly two distinct participants.
type Room struct {
	ID        string
	FirstID   string
	SecondID  string
	CreatedAt time.Time
}

// PartnerOf returns the other member of the room. The second return is false
// when id is not a member at all.
func (r Room) PartnerOf(id string) (string, bool) {
	switch id {
	case r.FirstID:
		return r.SecondID, true
	case r.SecondID:
		return r.FirstID, true
	}
	return "", false
}

// Message is one chat message record, kept only while its room exists.
type Message struct {
	ID        string
	RoomID    string
	SenderID  string
	Content   string
	Timestamp time.Time
}

// Stats is a point-in-time count of registry contents.
type Stats struct {
	Participants int
	Queued       int
	Rooms        int
}

// Registry is the mutex-guarded session store.
type Registry struct {
	mu           sync.Mutex
	participants map[string]*Participant
	queue        []string
	rooms        map[string]Room
	messages     map[string][]Message
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		participants: make(map[string]*Participant),
		rooms:        make(map[string]Room),
		messages:     make(map[string][]Message),
	}
}

// Register creates a new idle participant for the connection, keyed by the
// connection's identifier. It always succeeds and returns a snapshot of the
// new participant.
func (r *Registry) Register(conn pairlink.Conn) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Participant{
		ID:          conn.ID(),
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
	r.participants[p.ID] = p
	return *p
}

// Unregister removes the participant and, as a side effect, any queue entry it
// holds. It does not tear down rooms; callers leave the room first. Returns
// false if the participant was already gone, which makes disconnect cleanup
// idempotent.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	r.removeFromQueueLocked(id)
	return true
}

// Get returns a snapshot of the participant.
func (r *Registry) Get(id string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Enqueue appends the participant to the queue tail iff it is registered and
// not already queued. Idempotent. A participant currently in a room is
// refused, preserving the invariant that queued and in-room are mutually
// exclusive.
func (r *Registry) Enqueue(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok || p.InQueue || p.RoomID != "" {
		return
	}
	p.InQueue = true
	r.queue = append(r.queue, id)
}

// DequeueFront removes and returns the longest-waiting queued participant.
// The second return is false when the queue is empty.
func (r *Registry) DequeueFront() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return "", false
	}
	id := r.queue[0]
	r.queue = r.queue[1:]
	if p, ok := r.participants[id]; ok {
		p.InQueue = false
	}
	return id, true
}

// RemoveFromQueue removes the participant from the queue if present. Returns
// false when it was not queued.
func (r *Registry) RemoveFromQueue(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeFromQueueLocked(id)
}

func (r *Registry) removeFromQueueLocked(id string) bool {
	for i, queued := range r.queue {
		if queued == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			if p, ok := r.participants[id]; ok {
				p.InQueue = false
			}
			return true
		}
	}
	return false
}

// QueueLen returns the current queue length.
func (r *Registry) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// PairRoom atomically pairs two distinct registered participants: both are
// removed from the queue if present, marked in-room with mutual room
// references, and a fresh room with an empty message buffer is stored.
func (r *Registry) PairRoom(firstID, secondID string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if firstID == secondID {
		return Room{}, ErrInvalidPairing
	}
	first, ok := r.participants[firstID]
	if !ok {
		return Room{}, ErrInvalidPairing
	}
	second, ok := r.participants[secondID]
	if !ok {
		return Room{}, ErrInvalidPairing
	}

	room := Room{
		ID:        uuid.NewString(),
		FirstID:   firstID,
		SecondID:  secondID,
		CreatedAt: time.Now(),
	}

	r.removeFromQueueLocked(firstID)
	r.removeFromQueueLocked(secondID)
	first.InQueue = false
	second.InQueue = false
	first.RoomID = room.ID
	second.RoomID = room.ID

	r.rooms[room.ID] = room
	delete(r.messages, room.ID)
	return room, nil
}

// CloseRoom tears the room down: both members (if still registered) become
// idle, the message buffer is discarded and the room is removed. No-op if the
// room does not exist. Destruction is unconditional and never partial.
func (r *Registry) CloseRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	for _, memberID := range []string{room.FirstID, room.SecondID} {
		if p, ok := r.participants[memberID]; ok && p.RoomID == roomID {
			p.RoomID = ""
		}
	}
	delete(r.messages, roomID)
	delete(r.rooms, roomID)
}

// RoomOf returns the room the participant is currently in.
func (r *Registry) RoomOf(id string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok || p.RoomID == "" {
		return Room{}, false
	}
	room, ok := r.rooms[p.RoomID]
	return room, ok
}

// Record appends a message to its room's transient buffer.
func (r *Registry) Record(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[msg.RoomID]; !ok {
		return ErrNoSuchRoom
	}
	r.messages[msg.RoomID] = append(r.messages[msg.RoomID], msg)
	return nil
}

// Messages returns a copy of the room's message buffer, oldest first.
func (r *Registry) Messages(roomID string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := r.messages[roomID]
	out := make([]Message, len(buf))
	copy(out, buf)
	return out
}

// Stats returns current registry counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Participants: len(r.participants),
		Queued:       len(r.queue),
		Rooms:        len(r.rooms),
	}
}
