package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReading is returned by Encode when a reading's component
	// count does not match its type's arity, or its type is undefined.
	ErrInvalidReading = errors.New("invalid reading")
	// ErrUnknownSensorType is returned by Decode when the tag byte does not
	// name a defined sensor type.
	ErrUnknownSensorType = errors.New("unknown sensor type")
	// ErrTruncatedFrame is returned by Decode when the frame length does not
	// match the length implied by its tag.
	ErrTruncatedFrame = errors.New("truncated frame")
)

// FrameError describes a frame that failed to decode. It unwraps to one of
// the sentinel errors above.
type FrameError struct {
	Tag  byte
	Len  int
	Want int
	Err  error
}

func (e *FrameError) Error() string {
	switch {
	case e.Len == 0:
		return fmt.Sprintf("%v: empty frame", e.Err)
	case errors.Is(e.Err, ErrUnknownSensorType):
		return fmt.Sprintf("%v: tag %d", e.Err, e.Tag)
	default:
		return fmt.Sprintf("%v: tag %d frame has %d bytes, want %d", e.Err, e.Tag, e.Len, e.Want)
	}
}

func (e *FrameError) Unwrap() error { return e.Err }
