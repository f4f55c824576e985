package app

import (
	"sync"

	"github.com/google/uuid"

	"storefront-service/internal/core/domain"
)

// subscriberBuffer is how many undelivered events a listener may lag
// behind before broadcasts to it are dropped.
const subscriberBuffer = 16

// subscriberHub is the engine-owned subscription list for state-change
// and completion notifications. Listeners come and go at runtime;
// teardown closes every channel exactly once.
type subscriberHub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]chan domain.EngineEvent
	closed bool
}

func newSubscriberHub() *subscriberHub {
	return &subscriberHub{
		subs: make(map[uuid.UUID]chan domain.EngineEvent),
	}
}

func (h *subscriberHub) subscribe() (<-chan domain.EngineEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.EngineEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := uuid.New()
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// broadcast delivers the event to every listener without blocking: a
// listener whose buffer is full misses the event instead of stalling a
// purchase.
func (h *subscriberHub) broadcast(ev domain.EngineEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *subscriberHub) closeAll() {
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
}
