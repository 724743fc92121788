package e2e_test

import (
	"testing"
	"time"

	"github.com/pairlink/pairlink/client"
)

// watcher funnels session callbacks into channels for assertions.
type watcher struct {
	statuses chan client.Status
	messages chan client.Message
	typing   chan bool
	errors   chan string
}

func newWatcher() *watcher {
	return &watcher{
		statuses: make(chan client.Status, 16),
		messages: make(chan client.Message, 16),
		typing:   make(chan bool, 16),
		errors:   make(chan string, 16),
	}
}

func (w *watcher) callbacks() client.Callbacks {
	return client.Callbacks{
		OnStatus:        func(s client.Status) { w.statuses <- s },
		OnMessage:       func(m client.Message) { w.messages <- m },
		OnPartnerTyping: func(v bool) { w.typing <- v },
		OnError:         func(msg string) { w.errors <- msg },
	}
}

// waitStatus blocks until the given status is observed.
func waitStatus(t *testing.T, w *watcher, want client.Status) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-w.statuses:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", want)
		}
	}
}

func waitMessage(t *testing.T, w *watcher) client.Message {
	t.Helper()
	select {
	case msg := <-w.messages:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return client.Message{}
	}
}

func waitError(t *testing.T, w *watcher) string {
	t.Helper()
	select {
	case msg := <-w.errors:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error event")
		return ""
	}
}

func waitUserID(t *testing.T, c *client.Client) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if id := c.UserID(); id != "" {
			return id
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for QUEUE_JOINED")
	return ""
}
