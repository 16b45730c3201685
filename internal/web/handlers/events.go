package handlers

import (
	"sync"

	"github.com/kozaktomas/clock-in/internal/constants"
)

// Event types streamed to the kiosk.
const (
	EventSnapshot     = "snapshot"
	EventNotification = "notification"
	EventClosed       = "closed"
)

// SessionEvent is one server-sent event of a capture session.
type SessionEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for
// capture sessions. Slow listeners miss events rather than block the session.
type EventBroadcaster struct {
	listeners []chan SessionEvent
	closed    bool
	mu        sync.RWMutex
}

// AddListener adds an event listener. The channel of a closed broadcaster
// is returned already closed.
func (b *EventBroadcaster) AddListener() chan SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan SessionEvent, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event SessionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Close sends a final event and closes every listener.
func (b *EventBroadcaster) Close(final SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		select {
		case listener <- final:
		default:
		}
		close(listener)
	}
	b.listeners = nil
}
