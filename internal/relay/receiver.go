package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/sensor.link/internal/codec"
	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/monitoring"
	"github.com/banshee-data/sensor.link/internal/sensor"
	"github.com/banshee-data/sensor.link/internal/timeutil"
)

// Meta describes where and when a reading arrived.
type Meta struct {
	Source     string
	Path       string
	ReceivedAt time.Time
}

// Sink consumes decoded readings.
type Sink func(sensor.Reading, Meta)

// Subscriber is the inbound half of a link.Link.
type Subscriber interface {
	Subscribe() (string, chan link.Message)
	Unsubscribe(id string)
}

// ReceiverStats are cumulative counters for one Receiver.
type ReceiverStats struct {
	Received     uint64 `json:"received"`
	Ignored      uint64 `json:"ignored"`
	Delivered    uint64 `json:"delivered"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// Receiver is the receiving side of the relay.
type Receiver struct {
	codec codec.FrameCodec
	clock timeutil.Clock
	path  string
	sink  Sink

	received, ignored, delivered, decodeErrors atomic.Uint64
}

// NewReceiver returns a Receiver decoding frames on link.SensorPath.
func NewReceiver(c codec.FrameCodec, clock timeutil.Clock, sink Sink) *Receiver {
	return &Receiver{
		codec: c,
		clock: clock,
		path:  link.SensorPath,
		sink:  sink,
	}
}

// WithPath overrides the message path frames are accepted on.
func (r *Receiver) WithPath(path string) *Receiver {
	r.path = path
	return r
}

// HandleMessage decodes one inbound message and delivers the reading. It
// reports false with a nil error for messages on other paths. Decode
// failures are returned and nothing is delivered.
func (r *Receiver) HandleMessage(msg link.Message) (bool, error) {
	r.received.Add(1)
	if msg.Path != r.path {
		r.ignored.Add(1)
		return false, nil
	}

	reading, err := r.codec.Decode(msg.Payload)
	if err != nil {
		r.decodeErrors.Add(1)
		return false, err
	}

	r.delivered.Add(1)
	r.sink(reading, Meta{Source: msg.Source, Path: msg.Path, ReceivedAt: r.clock.Now()})
	return true, nil
}

// Run subscribes to l and handles messages until ctx is done or the
// subscription is closed.
func (r *Receiver) Run(ctx context.Context, l Subscriber) error {
	id, c := l.Subscribe()
	defer l.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c:
			if !ok {
				return nil
			}
			if _, err := r.HandleMessage(msg); err != nil {
				monitoring.Logf("receiver: dropping frame from %s: %v", msg.Source, err)
				continue
			}
			monitoring.Debugf("received frame from %s (%d bytes)", msg.Source, len(msg.Payload))
		}
	}
}

// Stats returns a snapshot of the receiver counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Received:     r.received.Load(),
		Ignored:      r.ignored.Load(),
		Delivered:    r.delivered.Load(),
		DecodeErrors: r.decodeErrors.Load(),
	}
}
