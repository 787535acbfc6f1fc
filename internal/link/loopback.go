package link

import (
	"context"
	"net/http"
	"sync"
)

// LoopbackLink is an in-process link. Two ends created by NewLoopbackPair
// deliver to each other synchronously; it backs the "both" role in dev mode
// and the relay tests.
type LoopbackLink struct {
	localID string
	peer    *LoopbackLink
	hub     *hub
	stats   counters
	done    chan struct{}

	mu      sync.Mutex
	sendErr error
}

// NewLoopbackPair returns two connected ends named a and b.
func NewLoopbackPair(a, b string) (*LoopbackLink, *LoopbackLink) {
	left := &LoopbackLink{localID: a, hub: newHub(), done: make(chan struct{})}
	right := &LoopbackLink{localID: b, hub: newHub(), done: make(chan struct{})}
	left.peer = right
	right.peer = left
	return left, right
}

// FailSends makes every following Send fail with err. A nil err restores
// normal delivery.
func (l *LoopbackLink) FailSends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

func (l *LoopbackLink) LocalID() string { return l.localID }

func (l *LoopbackLink) Subscribe() (string, chan Message) { return l.hub.subscribe() }

func (l *LoopbackLink) Unsubscribe(id string) { l.hub.unsubscribe(id) }

func (l *LoopbackLink) Stats() Stats { return l.stats.snapshot() }

// Send hands the message to the peer. Messages for any node other than the
// peer are accepted and discarded, as a radio would.
func (l *LoopbackLink) Send(ctx context.Context, dest, path string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return l.stats.sendResult(err)
	}
	if l.hub.isClosing() {
		return l.stats.sendResult(ErrClosed)
	}
	l.mu.Lock()
	injected := l.sendErr
	l.mu.Unlock()
	if injected != nil {
		return l.stats.sendResult(injected)
	}

	if dest == l.peer.localID {
		l.peer.receive(Message{
			Source:  l.localID,
			Dest:    dest,
			Path:    path,
			Payload: append([]byte(nil), payload...),
		})
	}
	return l.stats.sendResult(nil)
}

func (l *LoopbackLink) receive(msg Message) {
	if l.hub.isClosing() {
		l.stats.dropped.Add(1)
		return
	}
	l.stats.received.Add(1)
	l.hub.publish(msg)
}

// Monitor blocks until ctx is done or the link is closed; delivery happens
// inside the peer's Send.
func (l *LoopbackLink) Monitor(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return nil
	}
}

func (l *LoopbackLink) Close() error {
	if l.hub.close() {
		close(l.done)
	}
	return nil
}

func (l *LoopbackLink) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, l)
}
