// Package engine implements the matchmaking and relay logic: it consumes one
// inbound protocol event at a time, drives registry mutations and computes
// which outbound events go to which participant.
//
// The engine itself is stateless between events; all durable state lives in
// the registry. Handlers run under a single engine mutex so that compound
// transitions (the pairing decision, the leave-then-rejoin of NEXT_PARTNER)
// are not interleaved with other participants' events. Handlers never perform
// I/O; they return addressed outbound events built from snapshotted registry
// data and the caller sends them after the critical section ends.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pairlink/pairlink"
	"github.com/pairlink/pairlink/internal/protocol"
	"github.com/pairlink/pairlink/internal/registry"
)

// Outbound is one event addressed to a specific participant. Conn is the
// snapshotted connection handle taken while the registry lock was held; the
// caller serializes Data and writes it out, silently dropping the frame if
// the connection has since closed.
type Outbound struct {
	To   string
	Conn pairlink.Conn
	Type string
	Data any
}

// Engine interprets inbound events against the registry.
type Engine struct {
	mu  sync.Mutex
	reg *registry.Registry
	log *zap.Logger
}

// New creates an engine backed by the given registry.
func New(reg *registry.Registry, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{reg: reg, log: log}
}

// Connect registers the connection as a new idle participant and returns the
// QUEUE_JOINED confirmation carrying the assigned identifier.
func (e *Engine) Connect(conn pairlink.Conn) (registry.Participant, []Outbound) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.reg.Register(conn)
	e.log.Info("participant connected",
		zap.String("participant_id", p.ID),
		zap.String("remote_addr", conn.RemoteAddr()),
	)
	return p, []Outbound{{
		To:   p.ID,
		Conn: conn,
		Type: pairlink.EventQueueJoined,
		Data: protocol.QueueJoined{UserID: p.ID},
	}}
}

// Disconnect performs full cleanup for a dropped connection: leave the room
// (notifying the partner) if any, then unregister. Idempotent; a second call
// for the same participant produces no events and no duplicate notification.
func (e *Engine) Disconnect(id string) []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reg.Get(id); !ok {
		return nil
	}
	outs := e.leaveChat(id)
	e.reg.Unregister(id)
	e.log.Info("participant disconnected", zap.String("participant_id", id))
	return outs
}

// Handle processes one inbound event envelope from the given participant and
// returns the outbound events it produced. Unknown event types yield a single
// ERROR event to the sender; events from unregistered participants are
// dropped.
func (e *Engine) Handle(id string, env protocol.Envelope) []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.reg.Get(id)
	if !ok {
		return nil
	}

	switch env.Type {
	case pairlink.EventJoinQueue:
		return e.joinQueue(id)
	case pairlink.EventLeaveQueue:
		return e.leaveQueue(p)
	case pairlink.EventSendMessage:
		return e.sendMessage(p, env.Data)
	case pairlink.EventTypingStart:
		return e.relayToPartner(id, pairlink.EventPartnerTyping)
	case pairlink.EventTypingStop:
		return e.relayToPartner(id, pairlink.EventPartnerStoppedTyping)
	case pairlink.EventLeaveChat:
		return e.leaveChat(id)
	case pairlink.EventNextPartner:
		// Leave then rejoin as one compound step under the engine lock, so
		// the room is fully closed and the partner notified before the
		// pairing decision runs.
		outs := e.leaveChat(id)
		return append(outs, e.joinQueue(id)...)
	default:
		e.log.Debug("unknown event type",
			zap.String("participant_id", id),
			zap.String("type", env.Type),
		)
		return []Outbound{errorTo(p, pairlink.ErrUnknownMessageType)}
	}
}

// joinQueue pairs the requester with the longest-waiting queued participant,
// or leaves it waiting in the queue when nobody else is available. A stale
// queue head equal to the requester is treated as an empty queue.
func (e *Engine) joinQueue(id string) []Outbound {
	self, ok := e.reg.Get(id)
	if !ok {
		return nil
	}
	if self.RoomID != "" {
		// Already paired; the client is out of sync. Ignore rather than
		// leak the current room.
		e.log.Debug("join queue while in room",
			zap.String("participant_id", id),
			zap.String("room_id", self.RoomID),
		)
		return nil
	}

	candidateID, ok := e.reg.DequeueFront()
	if ok && candidateID != id {
		room, err := e.reg.PairRoom(candidateID, id)
		if err != nil {
			// Registry refused a pairing the engine believed valid. Internal
			// fault: log and abort the request, never surface to clients.
			e.log.Error("pairing failed",
				zap.String("participant_id", id),
				zap.String("candidate_id", candidateID),
				zap.Error(err),
			)
			return nil
		}

		e.log.Info("room created",
			zap.String("room_id", room.ID),
			zap.String("first_id", room.FirstID),
			zap.String("second_id", room.SecondID),
		)

		found := protocol.PartnerFound{RoomID: room.ID}
		outs := make([]Outbound, 0, 2)
		if candidate, ok := e.reg.Get(candidateID); ok {
			outs = append(outs, Outbound{To: candidate.ID, Conn: candidate.Conn, Type: pairlink.EventPartnerFound, Data: found})
		}
		outs = append(outs, Outbound{To: self.ID, Conn: self.Conn, Type: pairlink.EventPartnerFound, Data: found})
		return outs
	}

	// Queue empty, or it only held the requester itself: wait silently.
	e.reg.Enqueue(id)
	return nil
}

func (e *Engine) leaveQueue(p registry.Participant) []Outbound {
	e.reg.RemoveFromQueue(p.ID)
	return []Outbound{{To: p.ID, Conn: p.Conn, Type: pairlink.EventQueueLeft, Data: protocol.Empty{}}}
}

// sendMessage validates the payload, records the message in the room buffer
// and relays it to the partner only. The sender already holds local
// optimistic state, so nothing is echoed back.
func (e *Engine) sendMessage(p registry.Participant, data []byte) []Outbound {
	msg, err := protocol.DecodeSendMessage(data)
	if err != nil {
		return []Outbound{errorTo(p, pairlink.ErrInvalidMessageFormat)}
	}

	room, ok := e.reg.RoomOf(p.ID)
	if !ok {
		return []Outbound{errorTo(p, pairlink.ErrNotInRoom)}
	}

	record := registry.Message{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		SenderID:  p.ID,
		Content:   msg.Content,
		Timestamp: time.Now(),
	}
	if err := e.reg.Record(record); err != nil {
		return []Outbound{errorTo(p, pairlink.ErrNotInRoom)}
	}

	partnerID, _ := room.PartnerOf(p.ID)
	partner, ok := e.reg.Get(partnerID)
	if !ok {
		return nil
	}
	return []Outbound{{
		To:   partner.ID,
		Conn: partner.Conn,
		Type: pairlink.EventMessageReceived,
		Data: protocol.MessageReceived{
			Content:   record.Content,
			Timestamp: record.Timestamp.UnixMilli(),
			MessageID: record.ID,
		},
	}}
}

// relayToPartner forwards a typing indicator to the other room member.
// Without a room this is a no-op, not an error.
func (e *Engine) relayToPartner(id, eventType string) []Outbound {
	room, ok := e.reg.RoomOf(id)
	if !ok {
		return nil
	}
	partnerID, _ := room.PartnerOf(id)
	partner, ok := e.reg.Get(partnerID)
	if !ok {
		return nil
	}
	return []Outbound{{To: partner.ID, Conn: partner.Conn, Type: eventType, Data: protocol.Empty{}}}
}

// leaveChat notifies the partner and closes the room. No-op without a room.
func (e *Engine) leaveChat(id string) []Outbound {
	room, ok := e.reg.RoomOf(id)
	if !ok {
		return nil
	}

	var outs []Outbound
	partnerID, _ := room.PartnerOf(id)
	if partner, ok := e.reg.Get(partnerID); ok {
		outs = append(outs, Outbound{To: partner.ID, Conn: partner.Conn, Type: pairlink.EventPartnerDisconnected, Data: protocol.Empty{}})
	}

	e.reg.CloseRoom(room.ID)
	e.log.Info("room closed",
		zap.String("room_id", room.ID),
		zap.String("left_by", id),
	)
	return outs
}

func errorTo(p registry.Participant, message string) Outbound {
	return Outbound{
		To:   p.ID,
		Conn: p.Conn,
		Type: pairlink.EventError,
		Data: protocol.ErrorPayload{Message: message},
	}
}
