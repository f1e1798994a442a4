// Package hub fans serialized task events out to every live stream
// subscriber. The registry is the only structure in the system mutated from
// concurrent contexts; all membership changes go through Subscribe and
// Unsubscribe, never through the broadcast path directly.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/avelins/taskwire/internal/metrics"
	"github.com/avelins/taskwire/pkg/event"
)

// Subscriber is one live stream connection. The hub owns it for the duration
// of the connection; the transport layer only reads from Events.
type Subscriber struct {
	ch   chan []byte
	once sync.Once
}

// Events returns the channel carrying serialized event payloads. It is
// closed when the subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan []byte {
	return s.ch
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub holds the set of currently open subscribers and pushes every broadcast
// event to all of them. All methods are safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	buffer int
	closed bool
}

// New creates a hub. bufferSize is the per-subscriber channel depth; a
// minimum of 1 keeps sends non-blocking.
func New(bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		buffer: bufferSize,
	}
}

// Subscribe registers a new live subscriber. After the hub is closed the
// returned subscriber is already closed and receives nothing.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.close()
		return sub
	}

	h.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Unsubscribing a
// subscriber twice, or one the hub never held, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()

	// Closing after removal: no broadcast can reach the channel once the
	// subscriber left the registry, so the send/close race cannot occur.
	sub.close()
}

// Broadcast serializes rec once and pushes the payload to every registered
// subscriber. A subscriber whose buffer is full is dropped and deregistered
// instead of stalling the others. Returns the number of subscribers the
// payload was handed to.
func (h *Hub) Broadcast(rec event.Record) int {
	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Error("event serialization failed", "type", rec.Type, "error", err)
		return 0
	}

	var slow []*Subscriber
	delivered := 0

	h.mu.RLock()
	for sub := range h.subs {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.Unsubscribe(sub)
		metrics.SubscribersDropped.Inc()
	}
	metrics.EventsBroadcast.Inc()

	slog.Debug("event broadcast",
		"type", rec.Type,
		"id", rec.ID,
		"delivered", delivered,
		"dropped", len(slow))

	return delivered
}

// Len returns the number of currently registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drains the registry and closes every subscriber. Subsequent
// broadcasts deliver to nobody.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for sub := range h.subs {
		sub.close()
	}
	clear(h.subs)
}
