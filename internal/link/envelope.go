package link

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Envelope layout on byte-stream transports (serial):
//
//	Magic(1) | BodyLen(2, BE) | Body(BodyLen) | CRC32(4, BE, IEEE over Body)
//
// Body:
//
//	DestLen(1) | Dest | SrcLen(1) | Src | PathLen(1) | Path | Payload
const (
	EnvelopeMagic  byte = 0xA5
	MaxBodySize         = 1024
	envelopeHeader      = 3
	envelopeCRC         = 4
	maxFieldLen         = 255
)

var (
	// ErrEnvelopeCorrupt marks a damaged envelope. The stream is still
	// usable; the reader resynchronises on the next magic byte.
	ErrEnvelopeCorrupt = errors.New("corrupt envelope")
	// ErrEnvelopeTooLarge is returned when a message does not fit in
	// MaxBodySize or a field exceeds 255 bytes.
	ErrEnvelopeTooLarge = errors.New("envelope too large")
)

// EncodeEnvelope frames msg for a byte-stream transport.
func EncodeEnvelope(msg Message) ([]byte, error) {
	for _, field := range []string{msg.Dest, msg.Source, msg.Path} {
		if len(field) > maxFieldLen {
			return nil, fmt.Errorf("%w: field of %d bytes", ErrEnvelopeTooLarge, len(field))
		}
	}
	bodyLen := 3 + len(msg.Dest) + len(msg.Source) + len(msg.Path) + len(msg.Payload)
	if bodyLen > MaxBodySize {
		return nil, fmt.Errorf("%w: body of %d bytes", ErrEnvelopeTooLarge, bodyLen)
	}

	buf := make([]byte, envelopeHeader, envelopeHeader+bodyLen+envelopeCRC)
	buf[0] = EnvelopeMagic
	binary.BigEndian.PutUint16(buf[1:3], uint16(bodyLen))
	for _, field := range []string{msg.Dest, msg.Source, msg.Path} {
		buf = append(buf, byte(len(field)))
		buf = append(buf, field...)
	}
	buf = append(buf, msg.Payload...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf[envelopeHeader:]))
	return buf, nil
}

// DecodeEnvelope parses exactly one complete envelope.
func DecodeEnvelope(data []byte) (Message, error) {
	if len(data) < envelopeHeader+envelopeCRC || data[0] != EnvelopeMagic {
		return Message{}, fmt.Errorf("%w: bad header", ErrEnvelopeCorrupt)
	}
	bodyLen := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) != envelopeHeader+bodyLen+envelopeCRC {
		return Message{}, fmt.Errorf("%w: length %d does not match body %d", ErrEnvelopeCorrupt, len(data), bodyLen)
	}
	return decodeBody(data[envelopeHeader:envelopeHeader+bodyLen], binary.BigEndian.Uint32(data[envelopeHeader+bodyLen:]))
}

func decodeBody(body []byte, crc uint32) (Message, error) {
	if got := crc32.ChecksumIEEE(body); got != crc {
		return Message{}, fmt.Errorf("%w: crc %08x, want %08x", ErrEnvelopeCorrupt, got, crc)
	}

	var fields [3]string
	rest := body
	for i := range fields {
		if len(rest) < 1 || len(rest) < 1+int(rest[0]) {
			return Message{}, fmt.Errorf("%w: truncated field", ErrEnvelopeCorrupt)
		}
		n := int(rest[0])
		fields[i] = string(rest[1 : 1+n])
		rest = rest[1+n:]
	}

	return Message{
		Dest:    fields[0],
		Source:  fields[1],
		Path:    fields[2],
		Payload: append([]byte(nil), rest...),
	}, nil
}

// ReadEnvelope reads the next envelope from r, skipping any bytes before a
// magic byte. Nothing past the magic byte is consumed until the envelope
// validates, so a damaged envelope returns an error wrapping
// ErrEnvelopeCorrupt with r positioned one byte after its magic and the
// next call rescans from there. I/O errors from r are returned unchanged.
//
// r must buffer at least MaxBodySize+7 bytes; bufio's default size does.
func ReadEnvelope(r *bufio.Reader) (Message, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return Message{}, err
		}
		if b[0] == EnvelopeMagic {
			break
		}
		r.Discard(1)
	}

	header, err := r.Peek(envelopeHeader)
	if err != nil {
		return Message{}, skipMagic(r, err, "truncated header")
	}
	bodyLen := int(binary.BigEndian.Uint16(header[1:3]))
	if bodyLen < 3 || bodyLen > MaxBodySize {
		r.Discard(1)
		return Message{}, fmt.Errorf("%w: body length %d", ErrEnvelopeCorrupt, bodyLen)
	}

	total := envelopeHeader + bodyLen + envelopeCRC
	data, err := r.Peek(total)
	if err != nil {
		return Message{}, skipMagic(r, err, fmt.Sprintf("truncated body of %d bytes", bodyLen))
	}
	msg, err := decodeBody(data[envelopeHeader:envelopeHeader+bodyLen], binary.BigEndian.Uint32(data[envelopeHeader+bodyLen:]))
	if err != nil {
		r.Discard(1)
		return Message{}, err
	}
	r.Discard(total)
	return msg, nil
}

// skipMagic handles a short Peek. At end of stream the bytes after the
// magic may still hold a complete envelope, so only the magic is dropped.
func skipMagic(r *bufio.Reader, err error, what string) error {
	if !errors.Is(err, io.EOF) {
		return err
	}
	r.Discard(1)
	return fmt.Errorf("%w: %s", ErrEnvelopeCorrupt, what)
}
