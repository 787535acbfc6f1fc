// Package relay joins the pure pieces into the two halves of a sensor link.
// The Emitter gates samples through a Sampler, encodes them and sends them
// to the peer; the Receiver decodes inbound frames and hands readings to a
// Sink such as a Board.
package relay

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/sensor.link/internal/codec"
	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/monitoring"
	"github.com/banshee-data/sensor.link/internal/sampler"
	"github.com/banshee-data/sensor.link/internal/sensor"
)

// Sender is the outbound half of a link.Link.
type Sender interface {
	Send(ctx context.Context, dest, path string, payload []byte) error
}

// SendError reports a frame the sampler approved but the transport did not
// accept. It unwraps to the transport error, which matches
// link.ErrSendFailed.
type SendError struct {
	Type sensor.Type
	Dest string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s frame to %s: %v", e.Type, e.Dest, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// EmitterStats are cumulative counters for one Emitter.
type EmitterStats struct {
	Offered      uint64 `json:"offered"`
	Emitted      uint64 `json:"emitted"`
	Throttled    uint64 `json:"throttled"`
	Invalid      uint64 `json:"invalid"`
	SendFailures uint64 `json:"send_failures"`
}

// Emitter is the sending side of the relay.
type Emitter struct {
	sampler *sampler.Sampler
	codec   codec.FrameCodec
	sender  Sender
	dest    string
	path    string

	offered, emitted, throttled, invalid, sendFailures atomic.Uint64
}

// NewEmitter returns an Emitter that sends approved frames to dest under
// link.SensorPath.
func NewEmitter(s *sampler.Sampler, c codec.FrameCodec, sender Sender, dest string) *Emitter {
	return &Emitter{
		sampler: s,
		codec:   c,
		sender:  sender,
		dest:    dest,
		path:    link.SensorPath,
	}
}

// WithPath overrides the message path frames are sent under.
func (e *Emitter) WithPath(path string) *Emitter {
	e.path = path
	return e
}

// Offer runs one sample through the pipeline. It returns true when a frame
// was handed to the transport. A throttled sample returns (false, nil).
//
// Malformed readings fail with codec.ErrInvalidReading before the sampler
// is consulted, so they never consume a slot. A transport failure happens
// after approval; the slot stays consumed and the frame is not retried.
func (e *Emitter) Offer(ctx context.Context, s sensor.Sample) (bool, error) {
	e.offered.Add(1)

	r := s.Reading()
	if err := r.Validate(); err != nil {
		e.invalid.Add(1)
		return false, fmt.Errorf("%w: %v", codec.ErrInvalidReading, err)
	}

	if !e.sampler.ShouldEmit(r.Type(), s.TimestampNanos) {
		e.throttled.Add(1)
		return false, nil
	}

	frame, err := e.codec.Encode(r)
	if err != nil {
		e.invalid.Add(1)
		return false, err
	}

	if err := e.sender.Send(ctx, e.dest, e.path, frame); err != nil {
		e.sendFailures.Add(1)
		return false, &SendError{Type: r.Type(), Dest: e.dest, Err: err}
	}

	e.emitted.Add(1)
	monitoring.Debugf("emitted %s to %s (%d bytes)", r, e.dest, len(frame))
	return true, nil
}

// Run offers every sample from in until in is closed or ctx is done.
// Per-sample errors are logged and do not stop the loop.
func (e *Emitter) Run(ctx context.Context, in <-chan sensor.Sample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-in:
			if !ok {
				return nil
			}
			if _, err := e.Offer(ctx, s); err != nil {
				monitoring.Logf("emitter: %v", err)
			}
		}
	}
}

// Stats returns a snapshot of the emitter counters.
func (e *Emitter) Stats() EmitterStats {
	return EmitterStats{
		Offered:      e.offered.Load(),
		Emitted:      e.emitted.Load(),
		Throttled:    e.throttled.Load(),
		Invalid:      e.invalid.Load(),
		SendFailures: e.sendFailures.Load(),
	}
}

// Dest returns the node frames are sent to.
func (e *Emitter) Dest() string { return e.dest }

// Sampler returns the rate limiter gating this emitter.
func (e *Emitter) Sampler() *sampler.Sampler { return e.sampler }
