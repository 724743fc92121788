package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures outbound events instead of writing to a connection.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) send(eventType string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recorder) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(eventType string) int {
	n := 0
	for _, e := range r.sent() {
		if e == eventType {
			n++
		}
	}
	return n
}

func newTestSession(cb Callbacks) (*Session, *recorder) {
	rec := &recorder{}
	// Short timers keep the timing tests fast.
	s := NewSession(rec.send, cb, Options{
		TypingIndicatorTimeout: 40 * time.Millisecond,
		TypingDebounce:         20 * time.Millisecond,
	})
	return s, rec
}

func TestInitialState(t *testing.T) {
	s, _ := newTestSession(Callbacks{})
	assert.Equal(t, StatusDisconnected, s.Status())
	assert.Empty(t, s.UserID())
	assert.Empty(t, s.RoomID())
	assert.Empty(t, s.History())
	assert.False(t, s.PartnerTyping())
}

func TestQueueJoinedSetsUserID(t *testing.T) {
	s, _ := newTestSession(Callbacks{})
	s.HandleFrame([]byte(`{"type":"QUEUE_JOINED","data":{"userId":"u1"}}`))

	assert.Equal(t, "u1", s.UserID())
	assert.Equal(t, StatusDisconnected, s.Status())
}

func TestJoinQueueEntersWaiting(t *testing.T) {
	s, rec := newTestSession(Callbacks{})
	require.NoError(t, s.JoinQueue())

	assert.Equal(t, StatusWaiting, s.Status())
	assert.Equal(t, []string{"JOIN_QUEUE"}, rec.sent())
}

func TestPartnerFoundForcesMatchedAndClearsHistory(t *testing.T) {
	var statuses []Status
	s, _ := newTestSession(Callbacks{OnStatus: func(st Status) { statuses = append(statuses, st) }})

	require.NoError(t, s.SendMessage("stale"))
	require.NotEmpty(t, s.History())

	s.HandleFrame([]byte(`{"type":"PARTNER_FOUND","data":{"roomId":"r1"}}`))

	assert.Equal(t, StatusMatched, s.Status())
	assert.Equal(t, "r1", s.RoomID())
	assert.Empty(t, s.History())
	assert.Contains(t, statuses, StatusMatched)
}

func TestMessageReceivedAppendsToHistory(t *testing.T) {
	var got []Message
	s, _ := newTestSession(Callbacks{OnMessage: func(m Message) { got = append(got, m) }})

	s.HandleFrame([]byte(`{"type":"PARTNER_FOUND","data":{"roomId":"r1"}}`))
	s.HandleFrame([]byte(`{"type":"MESSAGE_RECEIVED","data":{"content":"hi","timestamp":1700000000000,"messageId":"m1"}}`))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "hi", history[0].Content)
	assert.False(t, history[0].Sent)
	assert.Equal(t, int64(1700000000000), history[0].Timestamp)

	require.Len(t, got, 1)
	assert.Equal(t, history[0], got[0])
}

func TestSendMessageLocalEcho(t *testing.T) {
	s, rec := newTestSession(Callbacks{})
	require.NoError(t, s.SendMessage("  hello  "))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
	assert.True(t, history[0].Sent)
	assert.NotEmpty(t, history[0].ID)

	assert.Equal(t, []string{"SEND_MESSAGE"}, rec.sent())
}

func TestSendMessageIgnoresWhitespace(t *testing.T) {
	s, rec := newTestSession(Callbacks{})
	require.NoError(t, s.SendMessage("   "))

	assert.Empty(t, s.History())
	assert.Empty(t, rec.sent())
}

func TestSendMessageStopsOutstandingTyping(t *testing.T) {
	s, rec := newTestSession(Callbacks{})
	require.NoError(t, s.Typing())
	require.NoError(t, s.SendMessage("hi"))

	assert.Equal(t, []string{"TYPING_START", "TYPING_STOP", "SEND_MESSAGE"}, rec.sent())
}

func TestPartnerTypingAutoClears(t *testing.T) {
	var indications []bool
	var mu sync.Mutex
	s, _ := newTestSession(Callbacks{OnPartnerTyping: func(v bool) {
		mu.Lock()
		indications = append(indications, v)
		mu.Unlock()
	}})

	s.HandleFrame([]byte(`{"type":"PARTNER_TYPING","data":{}}`))
	assert.True(t, s.PartnerTyping())

	// Without a stop event the indicator self-heals after the timeout.
	assert.Eventually(t, func() bool { return !s.PartnerTyping() }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, indications)
}

func TestPartnerStoppedTypingClearsImmediately(t *testing.T) {
	s, _ := newTestSession(Callbacks{})

	s.HandleFrame([]byte(`{"type":"PARTNER_TYPING","data":{}}`))
	require.True(t, s.PartnerTyping())

	s.HandleFrame([]byte(`{"type":"PARTNER_STOPPED_TYPING","data":{}}`))
	assert.False(t, s.PartnerTyping())
}

func TestTypingDebounce(t *testing.T) {
	s, rec := newTestSession(Callbacks{})

	// A burst of keystrokes emits a single start.
	require.NoError(t, s.Typing())
	require.NoError(t, s.Typing())
	require.NoError(t, s.Typing())
	assert.Equal(t, 1, rec.count("TYPING_START"))
	assert.Equal(t, 0, rec.count("TYPING_STOP"))

	// One stop after input ceases.
	assert.Eventually(t, func() bool { return rec.count("TYPING_STOP") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.count("TYPING_START"))

	// A fresh burst starts over.
	require.NoError(t, s.Typing())
	assert.Equal(t, 2, rec.count("TYPING_START"))
}

func TestPartnerDisconnected(t *testing.T) {
	s, _ := newTestSession(Callbacks{})
	s.HandleFrame([]byte(`{"type":"PARTNER_FOUND","data":{"roomId":"r1"}}`))
	s.HandleFrame([]byte(`{"type":"PARTNER_TYPING","data":{}}`))

	s.HandleFrame([]byte(`{"type":"PARTNER_DISCONNECTED","data":{}}`))

	assert.Equal(t, StatusPartnerDisconnected, s.Status())
	assert.Empty(t, s.RoomID())
	assert.False(t, s.PartnerTyping())
}

func TestQueueLeftReturnsToIdle(t *testing.T) {
	s, _ := newTestSession(Callbacks{})
	require.NoError(t, s.JoinQueue())
	require.Equal(t, StatusWaiting, s.Status())

	s.HandleFrame([]byte(`{"type":"QUEUE_LEFT","data":{}}`))
	assert.Equal(t, StatusDisconnected, s.Status())
}

func TestErrorCallback(t *testing.T) {
	var got string
	s, _ := newTestSession(Callbacks{OnError: func(msg string) { got = msg }})

	s.HandleFrame([]byte(`{"type":"ERROR","data":{"message":"Not in a chat room"}}`))
	assert.Equal(t, "Not in a chat room", got)
}

func TestLeaveChatResets(t *testing.T) {
	s, rec := newTestSession(Callbacks{})
	s.HandleFrame([]byte(`{"type":"PARTNER_FOUND","data":{"roomId":"r1"}}`))
	require.NoError(t, s.SendMessage("hi"))

	require.NoError(t, s.LeaveChat())

	assert.Equal(t, StatusDisconnected, s.Status())
	assert.Empty(t, s.RoomID())
	assert.Empty(t, s.History())
	assert.Contains(t, rec.sent(), "LEAVE_CHAT")
}

func TestNextPartnerEntersWaiting(t *testing.T) {
	s, rec := newTestSession(Callbacks{})
	s.HandleFrame([]byte(`{"type":"PARTNER_FOUND","data":{"roomId":"r1"}}`))

	require.NoError(t, s.NextPartner())

	assert.Equal(t, StatusWaiting, s.Status())
	assert.Empty(t, s.RoomID())
	assert.Contains(t, rec.sent(), "NEXT_PARTNER")
}

func TestTransportClosedResetsEverything(t *testing.T) {
	s, _ := newTestSession(Callbacks{})
	s.HandleFrame([]byte(`{"type":"QUEUE_JOINED","data":{"userId":"u1"}}`))
	s.HandleFrame([]byte(`{"type":"PARTNER_FOUND","data":{"roomId":"r1"}}`))
	s.HandleFrame([]byte(`{"type":"PARTNER_TYPING","data":{}}`))

	s.HandleTransportClosed()

	assert.Equal(t, StatusDisconnected, s.Status())
	assert.Empty(t, s.UserID())
	assert.Empty(t, s.RoomID())
	assert.Empty(t, s.History())
	assert.False(t, s.PartnerTyping())
}

func TestUnknownAndMalformedFramesIgnored(t *testing.T) {
	s, rec := newTestSession(Callbacks{})

	s.HandleFrame([]byte(`{"type":"BOGUS","data":{}}`))
	s.HandleFrame([]byte(`not json`))
	s.HandleFrame(nil)

	assert.Equal(t, StatusDisconnected, s.Status())
	assert.Empty(t, rec.sent())
}
