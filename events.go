package pairlink

// Client to server event types.
const (
	// EventJoinQueue asks to be paired with the longest-waiting participant,
	// or to wait in the queue if nobody is available.
	EventJoinQueue = "JOIN_QUEUE"
	// EventLeaveQueue withdraws from the waiting queue.
	EventLeaveQueue = "LEAVE_QUEUE"
	// EventSendMessage sends a chat message to the room partner.
	EventSendMessage = "SEND_MESSAGE"
	// EventTypingStart signals that the participant started typing.
	EventTypingStart = "TYPING_START"
	// EventTypingStop signals that the participant stopped typing.
	EventTypingStop = "TYPING_STOP"
	// EventLeaveChat leaves the current room.
	EventLeaveChat = "LEAVE_CHAT"
	// EventNextPartner leaves the current room and immediately rejoins the
	// queue, as one compound step.
	EventNextPartner = "NEXT_PARTNER"
)

// Server to client event types.
const (
	// EventQueueJoined confirms the connection and carries the assigned
	// participant identifier.
	EventQueueJoined = "QUEUE_JOINED"
	// EventPartnerFound tells both members of a fresh pairing the room id.
	EventPartnerFound = "PARTNER_FOUND"
	// EventMessageReceived delivers a partner's chat message.
	EventMessageReceived = "MESSAGE_RECEIVED"
	// EventPartnerTyping and EventPartnerStoppedTyping relay the partner's
	// typing indicator.
	EventPartnerTyping        = "PARTNER_TYPING"
	EventPartnerStoppedTyping = "PARTNER_STOPPED_TYPING"
	// EventPartnerDisconnected tells the remaining member that the partner
	// left the room or dropped the connection.
	EventPartnerDisconnected = "PARTNER_DISCONNECTED"
	// EventQueueLeft confirms a queue withdrawal.
	EventQueueLeft = "QUEUE_LEFT"
	// EventError reports a protocol error to the offending connection only.
	EventError = "ERROR"
)

// Standard error messages surfaced to clients in ERROR events.
const (
	ErrInvalidMessageFormat = "Invalid message format"
	ErrUnknownMessageType   = "Unknown message type"
	ErrNotInRoom            = "Not in a chat room"
)
