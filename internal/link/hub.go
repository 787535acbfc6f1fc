package link

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses messages rather than stalling the link.
const subscriberBuffer = 64

// hub fans inbound messages out to subscribers. It is shared by every Link
// implementation.
type hub struct {
	mu          sync.Mutex
	subscribers map[string]chan Message
	closing     bool
}

func newHub() *hub {
	return &hub{subscribers: make(map[string]chan Message)}
}

func (h *hub) subscribe() (string, chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		// Closed links hand back a closed channel so readers never block.
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	return id, ch
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// publish offers msg to every subscriber without blocking and returns how
// many accepted it.
func (h *hub) publish(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return 0
	}
	delivered := 0
	for _, ch := range h.subscribers {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *hub) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// close closes all subscriber channels. It reports false if the hub was
// already closed.
func (h *hub) close() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.closing = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	return true
}
