// Package hub fans state-change events out to any number of viewers. Each
// subscriber owns a bounded queue; a slow subscriber gets a gap in its
// stream, never a stall of the producer. The drop-on-full policy is a
// contract, not a shortcut: display consumers re-sync from /api/status.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dwalsh-mfg/barcode-verifier/constants"
)

// Event is one state change as delivered to subscribers.
type Event struct {
	Type constants.EventType `json:"event"`
	Data any                 `json:"data"`
}

type Hub struct {
	capacity int
	log      *slog.Logger

	mu     sync.Mutex
	subs   map[uuid.UUID]chan Event
	closed bool
}

type Option func(*Hub)

func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.capacity = n
		}
	}
}

func New(log *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		capacity: 50,
		log:      log,
		subs:     make(map[uuid.UUID]chan Event),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers a new viewer queue. The returned channel closes on
// Unsubscribe or hub shutdown.
func (h *Hub) Subscribe() (uuid.UUID, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	ch := make(chan Event, h.capacity)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	h.log.Info("subscriber connected", "subscriber_id", id, "subscribers", len(h.subs))
	return id, ch
}

// Unsubscribe removes the queue and closes its channel. Safe to call
// concurrently with Publish: both hold the hub mutex, so a publish never
// writes to a closed channel.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)
	h.log.Info("subscriber disconnected", "subscriber_id", id, "subscribers", len(h.subs))
}

// Publish offers the event to every subscriber queue without blocking.
// A full queue evicts its oldest buffered event to make room; if the
// queue is somehow still full the new event is dropped for that
// subscriber only.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
			continue
		default:
		}
		// Queue full: evict the oldest, then retry once.
		select {
		case <-ch:
			h.log.Debug("slow subscriber, evicted oldest event", "subscriber_id", id)
		default:
		}
		select {
		case ch <- evt:
		default:
			h.log.Debug("slow subscriber, event dropped", "subscriber_id", id, "event", evt.Type)
		}
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close shuts the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.log.Info("hub closed")
}
