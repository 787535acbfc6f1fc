// Package codec converts sensor readings to and from the binary frame sent
// over the link.
//
// Frame layout:
//
//	offset 0        tag (sensor.Type)
//	offset 1+4*i    component i, IEEE-754 float32, big-endian
//
// The frame length is always 1 + 4*arity(tag). Decoding fails closed: a
// frame with an unknown tag or the wrong length is an error, never a
// zero-valued reading.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/sensor.link/internal/sensor"
)

const (
	// TagSize is the size of the sensor type tag.
	TagSize = 1
	// ComponentSize is the encoded size of one float32 component.
	ComponentSize = 4
	// MaxFrameSize is the longest frame any defined sensor type produces.
	MaxFrameSize = TagSize + 3*ComponentSize
)

// Frame is an encoded sensor reading.
type Frame []byte

// Tag returns the sensor type tag, or false for an empty frame.
func (f Frame) Tag() (sensor.Type, bool) {
	if len(f) == 0 {
		return 0, false
	}
	return sensor.Type(f[0]), true
}

// layout is the registry entry for one sensor type: how many components it
// carries and how they move between a frame body and a float slice.
type layout struct {
	arity int
	put   func(body []byte, values []float32)
	get   func(body []byte) []float32
}

// registry is indexed by tag and built once from the sensor type table, so
// Encode and Decode dispatch through the same entry.
var registry = buildRegistry()

func buildRegistry() [sensor.Count]layout {
	var reg [sensor.Count]layout
	for _, t := range sensor.Types() {
		reg[t] = vectorLayout(t.Arity())
	}
	return reg
}

// vectorLayout returns the layout for a fixed-size vector of float32.
func vectorLayout(n int) layout {
	return layout{
		arity: n,
		put: func(body []byte, values []float32) {
			for i := 0; i < n; i++ {
				binary.BigEndian.PutUint32(body[i*ComponentSize:], math.Float32bits(values[i]))
			}
		},
		get: func(body []byte) []float32 {
			values := make([]float32, n)
			for i := range values {
				values[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*ComponentSize:]))
			}
			return values
		},
	}
}

func lookup(t sensor.Type) (layout, bool) {
	if !t.Valid() {
		return layout{}, false
	}
	return registry[t], true
}

// FrameLen returns the encoded length for a sensor type, or 0 for an
// undefined type.
func FrameLen(t sensor.Type) int {
	l, ok := lookup(t)
	if !ok {
		return 0
	}
	return TagSize + l.arity*ComponentSize
}

// Encode serialises a reading into a frame.
func Encode(r sensor.Reading) (Frame, error) {
	l, ok := lookup(r.Type())
	if !ok {
		return nil, fmt.Errorf("%w: undefined sensor type %d", ErrInvalidReading, uint8(r.Type()))
	}
	if r.Len() != l.arity {
		return nil, fmt.Errorf("%w: %s expects %d components, got %d", ErrInvalidReading, r.Type(), l.arity, r.Len())
	}

	frame := make(Frame, TagSize+l.arity*ComponentSize)
	frame[0] = byte(r.Type())
	l.put(frame[TagSize:], r.Values())
	return frame, nil
}

// Decode parses a frame produced by Encode.
func Decode(frame []byte) (sensor.Reading, error) {
	if len(frame) < TagSize {
		return sensor.Reading{}, &FrameError{Err: ErrTruncatedFrame}
	}

	t := sensor.Type(frame[0])
	l, ok := lookup(t)
	if !ok {
		return sensor.Reading{}, &FrameError{Tag: frame[0], Len: len(frame), Err: ErrUnknownSensorType}
	}

	want := TagSize + l.arity*ComponentSize
	if len(frame) != want {
		return sensor.Reading{}, &FrameError{Tag: frame[0], Len: len(frame), Want: want, Err: ErrTruncatedFrame}
	}

	return sensor.NewReading(t, l.get(frame[TagSize:])...), nil
}

// FrameCodec is the encode/decode pair the relay depends on.
type FrameCodec interface {
	Encode(sensor.Reading) (Frame, error)
	Decode([]byte) (sensor.Reading, error)
}

// Codec is the stateless FrameCodec backed by Encode and Decode.
type Codec struct{}

func (Codec) Encode(r sensor.Reading) (Frame, error)      { return Encode(r) }
func (Codec) Decode(frame []byte) (sensor.Reading, error) { return Decode(frame) }
