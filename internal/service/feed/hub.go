package feed

import (
	"sync"
	"sync/atomic"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

// DropCounter is notified whenever a subscriber misses an event.
type DropCounter interface {
	FeedDropped()
}

// Hub fans committed mutation events out to live subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	buffer int
	drops  DropCounter

	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]chan message.Event
	dropped atomic.Uint64
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int, drops DropCounter) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		buffer: buffer,
		drops:  drops,
		subs:   make(map[uint64]chan message.Event),
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called once the subscriber is done; it closes the channel.
func (h *Hub) Subscribe() (<-chan message.Event, func()) {
	ch := make(chan message.Event, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers event to every subscriber with buffer space left.
func (h *Hub) Publish(event message.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
			if h.drops != nil {
				h.drops.FeedDropped()
			}
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
