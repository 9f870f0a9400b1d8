// Package wire provides a read cursor over the launchpad program's binary
// log payloads. Integers are little-endian; strings carry a one-byte length
// prefix. All amounts stay uint64 end to end; values above 2^53 cannot be
// represented exactly in float64, so conversion is left to callers that
// actually need it.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrShortBuffer is returned when a read would run past the end of the buffer.
var ErrShortBuffer = errors.New("wire: read past end of buffer")

// Reader is a mutable read position over an immutable byte sequence.
// It is not safe for concurrent use; create one Reader per buffer.
type Reader struct {
	buf    []byte
	offset int
}

// NewReader creates a Reader positioned at the start of buf.
// The Reader does not copy buf; callers must not mutate it while reading.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.offset
}

// Offset reports the current read position.
func (r *Reader) Offset() int {
	return r.offset
}

// ReadBytes returns the next n bytes and advances the cursor.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, r.Remaining())
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// ReadByte returns the next byte and advances the cursor by one.
func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, fmt.Errorf("%w: need 1 byte, have 0", ErrShortBuffer)
	}
	b := r.buf[r.offset]
	r.offset++
	return b, nil
}

// ReadUint64 reads an 8-byte little-endian unsigned integer.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadString reads a one-byte length prefix followed by that many UTF-8 bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("wire: string at offset %d is not valid UTF-8", r.offset-int(n))
	}
	return string(b), nil
}
