// Package link carries encoded sensor frames between two nodes. A Link is
// the transport collaborator of the relay: it sends a payload to a
// destination node under a message path, and hands inbound messages to any
// number of local subscribers.
//
// Delivery is best effort. Send reports whether the transport accepted the
// message; nothing is retried or acknowledged end to end.
package link

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	// ErrSendFailed wraps every transport-level send failure.
	ErrSendFailed = errors.New("link send failed")
	// ErrClosed is returned by operations on a closed link.
	ErrClosed = errors.New("link closed")
)

// SensorPath is the message path sensor frames travel under.
const SensorPath = "/sensor"

// Message is one inbound or outbound unit on a link.
type Message struct {
	Source  string
	Dest    string
	Path    string
	Payload []byte
}

// Link is the transport a relay sends frames over and receives them from.
type Link interface {
	// LocalID names this end of the link.
	LocalID() string
	// Send delivers payload to dest under path. A nil error means the
	// transport accepted the message, not that the peer received it.
	Send(ctx context.Context, dest, path string, payload []byte) error
	// Subscribe creates a channel receiving inbound messages addressed to
	// this node. The ID is used to unsubscribe.
	Subscribe() (string, chan Message)
	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(id string)
	// Monitor runs the inbound side until ctx is done or the transport
	// fails.
	Monitor(ctx context.Context) error
	// Stats returns the link counters.
	Stats() Stats
	// Close closes every subscriber channel and the underlying transport.
	Close() error

	// AttachAdminRoutes mounts debugging endpoints under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// Stats are cumulative link counters.
type Stats struct {
	Sent         uint64 `json:"sent"`
	SendFailures uint64 `json:"send_failures"`
	Received     uint64 `json:"received"`
	Dropped      uint64 `json:"dropped"`
}

type counters struct {
	sent, sendFailures, received, dropped atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sent:         c.sent.Load(),
		SendFailures: c.sendFailures.Load(),
		Received:     c.received.Load(),
		Dropped:      c.dropped.Load(),
	}
}

// sendResult updates the counters for a send outcome and normalises the
// error so callers can always match ErrSendFailed.
func (c *counters) sendResult(err error) error {
	if err == nil {
		c.sent.Add(1)
		return nil
	}
	c.sendFailures.Add(1)
	if errors.Is(err, ErrSendFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSendFailed, err)
}
