package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/sensor.link/internal/monitoring"
)

// SerialLink carries envelopes over a point-to-point serial line. Both ends
// share the wire, so inbound envelopes addressed to another node are dropped.
type SerialLink[T SerialPorter] struct {
	port    T
	localID string
	hub     *hub
	stats   counters
	writeMu sync.Mutex
}

// NewSerialLink wraps an already-open port.
func NewSerialLink[T SerialPorter](port T, localID string) *SerialLink[T] {
	return &SerialLink[T]{
		port:    port,
		localID: localID,
		hub:     newHub(),
	}
}

// NewRealSerialLink opens the serial device at path with the given options.
func NewRealSerialLink(path string, opts PortOptions, localID string) (*SerialLink[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	return NewSerialLink[serial.Port](port, localID), nil
}

func (s *SerialLink[T]) LocalID() string { return s.localID }

func (s *SerialLink[T]) Subscribe() (string, chan Message) { return s.hub.subscribe() }

func (s *SerialLink[T]) Unsubscribe(id string) { s.hub.unsubscribe(id) }

func (s *SerialLink[T]) Stats() Stats { return s.stats.snapshot() }

// Send writes one envelope to the port.
func (s *SerialLink[T]) Send(ctx context.Context, dest, path string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return s.stats.sendResult(err)
	}
	if s.hub.isClosing() {
		return s.stats.sendResult(ErrClosed)
	}

	data, err := EncodeEnvelope(Message{Dest: dest, Source: s.localID, Path: path, Payload: payload})
	if err != nil {
		return s.stats.sendResult(err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write(data)
	if err != nil {
		return s.stats.sendResult(err)
	}
	if n != len(data) {
		return s.stats.sendResult(fmt.Errorf("short write: %d of %d bytes", n, len(data)))
	}
	return s.stats.sendResult(nil)
}

// Monitor reads envelopes from the port and publishes those addressed to
// this node until ctx is done, the port fails, or the link is closed.
func (s *SerialLink[T]) Monitor(ctx context.Context) error {
	reader := bufio.NewReader(s.port)

	msgChan := make(chan Message)
	readErrChan := make(chan error, 1)

	// The blocking read runs on its own goroutine so the outer loop can
	// still observe cancellation.
	go func() {
		defer close(msgChan)
		for {
			msg, err := ReadEnvelope(reader)
			if errors.Is(err, ErrEnvelopeCorrupt) {
				s.stats.dropped.Add(1)
				monitoring.Debugf("serial link %s: %v", s.localID, err)
				continue
			}
			if err != nil {
				readErrChan <- err
				return
			}
			select {
			case msgChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErrChan:
			if s.hub.isClosing() {
				return nil
			}
			return fmt.Errorf("serial link read: %w", err)

		case msg, ok := <-msgChan:
			if !ok {
				select {
				case err := <-readErrChan:
					if s.hub.isClosing() {
						return nil
					}
					return fmt.Errorf("serial link read: %w", err)
				default:
					return ctx.Err()
				}
			}
			if s.hub.isClosing() {
				return nil
			}
			s.deliver(msg)
		}
	}
}

func (s *SerialLink[T]) deliver(msg Message) {
	if msg.Dest != s.localID {
		s.stats.dropped.Add(1)
		return
	}
	s.stats.received.Add(1)
	s.hub.publish(msg)
}

// Close closes every subscriber and the port. Closing twice is a no-op.
func (s *SerialLink[T]) Close() error {
	if !s.hub.close() {
		return nil
	}
	return s.port.Close()
}

func (s *SerialLink[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}
