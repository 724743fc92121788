// Package protocol implements the JSON event envelope exchanged over each
// WebSocket connection.
//
// Every frame is a text frame holding one envelope {type, data}. The set of
// event kinds is closed: inbound payloads are decoded against a strict
// per-kind schema and anything non-conforming is rejected as a protocol
// error. Decoded payloads never reach the engine unvalidated.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// maxFrameSize bounds inbound frames. Chat content is capped at 500
// characters, so anything larger than this is garbage.
const maxFrameSize = 16 * 1024

// MaxContentLength is the maximum chat message content length in characters.
const MaxContentLength = 500

var validate = validator.New(validator.WithRequiredStructEnabled())

// Envelope is the {type, data} unit of wire communication. Data stays raw
// until the event type selects a payload schema.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses a raw text frame into an envelope. The payload is not
// validated here; per-kind decoding does that.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) > maxFrameSize {
		return Envelope{}, fmt.Errorf("frame size %d exceeds maximum %d bytes", len(data), maxFrameSize)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("envelope missing type")
	}
	return env, nil
}

// Encode serializes an outbound event envelope into a text frame.
func Encode(eventType string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Data: payload})
}

// SendMessage is the SEND_MESSAGE payload. Content must be between 1 and 500
// characters.
type SendMessage struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}

// DecodeSendMessage parses and validates a SEND_MESSAGE payload.
func DecodeSendMessage(data json.RawMessage) (SendMessage, error) {
	if len(data) == 0 {
		return SendMessage{}, errors.New("missing payload")
	}
	var msg SendMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SendMessage{}, fmt.Errorf("malformed payload: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return SendMessage{}, fmt.Errorf("invalid payload: %w", err)
	}
	return msg, nil
}

// QueueJoined is the QUEUE_JOINED payload carrying the assigned identifier.
type QueueJoined struct {
	UserID string `json:"userId"`
}

// PartnerFound is the PARTNER_FOUND payload carrying the new room identifier.
type PartnerFound struct {
	RoomID string `json:"roomId"`
}

// MessageReceived is the MESSAGE_RECEIVED payload delivered to the partner.
// Timestamp is Unix milliseconds.
type MessageReceived struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"messageId"`
}

// ErrorPayload is the ERROR payload.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Empty is the payload for events that carry no data, serialized as {}.
type Empty struct{}
