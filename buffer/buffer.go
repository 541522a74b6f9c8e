// Package buffer implements the owned, growable byte buffer that every
// message codec and the channel wrapper build their serialization on top
// of: append/clear/truncate/compare plus the one length-prefixed framing
// contract used throughout libpico.
package buffer

import (
	"encoding/binary"
	"fmt"
)

const lengthPrefixSize = 4

// ErrShortFrame is returned by ReadLengthPrefixed when fewer bytes remain
// in the source than the frame's declared length.
var ErrShortFrame = &FrameError{Message: "short frame: declared length exceeds available data"}

// ErrShortHeader is returned when fewer than 4 bytes remain for the length
// prefix itself.
var ErrShortHeader = &FrameError{Message: "short frame: not enough bytes for length prefix"}

// FrameError is the typed error category for framing failures.
type FrameError struct {
	Message string
}

func (e *FrameError) Error() string { return e.Message }

// Buffer is a growable byte buffer with an explicit write cursor,
// mirroring the operations named by the owning spec: new, append,
// append_string, append_buffer, clear, equals, truncate, copy_to_string,
// sprintf, get_pos, get_size, set_min_size.
type Buffer struct {
	data []byte
}

// New returns a Buffer pre-sized to hold at least initialCapacity bytes
// without reallocating.
func New(initialCapacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, initialCapacity)}
}

// Append appends raw bytes, growing the underlying storage by doubling
// when capacity is exhausted.
func (b *Buffer) Append(p []byte) {
	b.growFor(len(p))
	b.data = append(b.data, p...)
}

// AppendString appends the bytes of s.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// AppendBuffer appends the contents of another Buffer.
func (b *Buffer) AppendBuffer(other *Buffer) {
	b.Append(other.Bytes())
}

// Sprintf appends the formatted string, matching the spec's named
// sprintf operation.
func (b *Buffer) Sprintf(format string, args ...interface{}) {
	b.AppendString(fmt.Sprintf(format, args...))
}

// Clear resets the buffer to zero length without releasing capacity.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
}

// Truncate shrinks the buffer to the first n bytes. It is a no-op if n
// is greater than or equal to the current size.
func (b *Buffer) Truncate(n int) {
	if n < len(b.data) {
		b.data = b.data[:n]
	}
}

// Equals reports whether two buffers hold identical bytes.
func (b *Buffer) Equals(other *Buffer) bool {
	if len(b.data) != len(other.data) {
		return false
	}
	for i := range b.data {
		if b.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// CopyToString returns the buffer's contents as a string.
func (b *Buffer) CopyToString() string {
	return string(b.data)
}

// GetPos returns the current write cursor, which for this append-only
// buffer is always equal to GetSize.
func (b *Buffer) GetPos() int {
	return len(b.data)
}

// GetSize returns the number of bytes currently stored.
func (b *Buffer) GetSize() int {
	return len(b.data)
}

// SetMinSize ensures the underlying storage can hold at least n bytes
// without reallocating, without changing the buffer's logical size.
func (b *Buffer) SetMinSize(n int) {
	if cap(b.data) >= n {
		return
	}
	grown := make([]byte, len(b.data), n)
	copy(grown, b.data)
	b.data = grown
}

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's storage and must not be retained across further mutation.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) growFor(extra int) {
	need := len(b.data) + extra
	if cap(b.data) >= need {
		return
	}
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = 16
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// AppendLengthPrefixed appends a 4-byte big-endian length followed by x,
// the one framing primitive the message codecs and the channel wrapper
// rely on (spec: append_buffer_lengthprepend).
func AppendLengthPrefixed(b *Buffer, x []byte) {
	var hdr [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(x)))
	b.Append(hdr[:])
	b.Append(x)
}

// ReadLengthPrefixed reads a 4-byte big-endian length from src at offset,
// then that many bytes, returning the payload and the offset immediately
// following it (spec: copy_lengthprepend).
func ReadLengthPrefixed(src []byte, offset int) (payload []byte, newOffset int, err error) {
	if offset < 0 || offset+lengthPrefixSize > len(src) {
		return nil, offset, ErrShortHeader
	}
	n := binary.BigEndian.Uint32(src[offset : offset+lengthPrefixSize])
	start := offset + lengthPrefixSize
	end := start + int(n)
	if end < start || end > len(src) {
		return nil, offset, ErrShortFrame
	}
	return src[start:end], end, nil
}
