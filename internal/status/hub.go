package status

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uncmorfi/reservation-service/internal/models"
)

const subscriberBuffer = 64

// Hub is the in-process publisher: it fans events out to any number of
// subscribers over buffered channels. A subscriber that falls behind
// loses events; the publishing side never blocks.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]chan Event),
	}
}

// Subscribe registers a new observer. The returned cancel func must be
// called when the observer goes away; the channel is closed by it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	id := uuid.New().String()

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

func (h *Hub) State(ctx context.Context, card string, st models.ReserveStatus) {
	h.broadcast(Event{Card: card, Type: EventState, State: st, Timestamp: time.Now()})
}

func (h *Hub) Attempt(ctx context.Context, card string, n int) {
	h.broadcast(Event{Card: card, Type: EventAttempt, Attempt: n, Timestamp: time.Now()})
}

func (h *Hub) Code(ctx context.Context, card string, code models.StatusCode) {
	h.broadcast(Event{Card: card, Type: EventCode, Code: code, Timestamp: time.Now()})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber, drop rather than stall the controller.
		}
	}
}
