package session

import (
	"sync"

	"github.com/google/uuid"
)

// Hub broadcasts session state to subscribers.
//
// Each subscriber holds at most one undelivered state; a newer state replaces
// an older one that has not been received yet. New subscribers receive the
// current state immediately. Hub is safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]chan State
	last   State
	closed bool
}

// NewHub returns a Hub whose current value is initial.
func NewHub(initial State) *Hub {
	return &Hub{
		subs: make(map[string]chan State),
		last: initial,
	}
}

// Subscribe registers a subscriber and returns its ID and state channel.
func (h *Hub) Subscribe() (string, <-chan State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan State, 1)
	id := uuid.NewString()
	if h.closed {
		close(ch)
		return id, ch
	}
	ch <- h.last
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[id]
	if !ok {
		return false
	}
	delete(h.subs, id)
	close(ch)
	return true
}

// Publish records st as the current state and delivers it to subscribers.
func (h *Hub) Publish(st State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.last = st
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

// Current returns the most recently published state.
func (h *Hub) Current() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Close closes every subscriber channel. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
