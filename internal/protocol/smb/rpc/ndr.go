package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// NDR20 marshalling helpers for the subset of constructs used by SRVSVC:
// 32-bit scalars, unique pointers (referent ids), conformant varying
// UTF-16LE strings and conformant byte arrays.
//
// Reference: [C706] Chapter 14 (Transfer Syntax NDR)

// ErrShortBuffer is returned when a stub ends before the decoder expects it to.
var ErrShortBuffer = errors.New("ndr: short buffer")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// firstReferentID is the first referent id handed out by an Encoder.
// Windows starts at 0x00020000 and increments by 4.
const firstReferentID uint32 = 0x00020000

// =============================================================================
// Encoder
// =============================================================================

// Encoder builds NDR stub data.
type Encoder struct {
	buf     []byte
	nextRef uint32
}

// NewEncoder creates an encoder with an empty buffer.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256), nextRef: firstReferentID}
}

// Bytes returns the encoded stub.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Uint32 appends a little-endian uint32.
func (e *Encoder) Uint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// Align pads the buffer with zero bytes to a multiple of n.
func (e *Encoder) Align(n int) {
	for len(e.buf)%n != 0 {
		e.buf = append(e.buf, 0)
	}
}

// Pointer appends a unique pointer: a fresh referent id when present, or 0.
func (e *Encoder) Pointer(present bool) {
	if !present {
		e.Uint32(0)
		return
	}
	e.Uint32(e.nextRef)
	e.nextRef += 4
}

// String appends a null-terminated conformant varying UTF-16LE string.
func (e *Encoder) String(s string) {
	encoded, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// Invalid UTF-8 is replaced rather than rejected.
		encoded, _ = utf16le.NewEncoder().Bytes([]byte(string([]rune(s))))
	}
	units := uint32(len(encoded)/2) + 1

	e.Uint32(units) // MaxCount
	e.Uint32(0)     // Offset
	e.Uint32(units) // ActualCount
	e.buf = append(e.buf, encoded...)
	e.buf = append(e.buf, 0, 0)
	e.Align(4)
}

// UniqueString appends a unique pointer followed by its string referent.
// Only valid where the referent is not deferred (top-level parameters).
func (e *Encoder) UniqueString(s string) {
	e.Pointer(true)
	e.String(s)
}

// ByteArray appends a conformant array of bytes.
func (e *Encoder) ByteArray(b []byte) {
	e.Uint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	e.Align(4)
}

// =============================================================================
// Decoder
// =============================================================================

// Decoder reads NDR stub data. The first error is sticky: once a read fails
// every later read returns a zero value and Err reports the failure.
type Decoder struct {
	data []byte
	off  int
	err  error
}

// NewDecoder creates a decoder over the given stub.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error {
	return d.err
}

// Offset returns the current read position.
func (d *Decoder) Offset() int {
	return d.off
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || d.off+n > len(d.data) {
		d.fail(fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, d.off, len(d.data)-d.off))
		return false
	}
	return true
}

// Uint32 reads a little-endian uint32.
func (d *Decoder) Uint32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

// Align skips padding up to a multiple of n.
func (d *Decoder) Align(n int) {
	pad := (n - d.off%n) % n
	if pad == 0 || d.err != nil {
		return
	}
	// Trailing padding may be omitted at the very end of a stub.
	if d.off+pad > len(d.data) {
		d.off = len(d.data)
		return
	}
	d.off += pad
}

// Pointer reads a unique pointer and reports whether a referent follows.
func (d *Decoder) Pointer() bool {
	return d.Uint32() != 0
}

// String reads a conformant varying UTF-16LE string, dropping the terminator.
func (d *Decoder) String() string {
	maxCount := d.Uint32()
	offset := d.Uint32()
	actual := d.Uint32()
	if d.err != nil {
		return ""
	}
	if offset != 0 || actual > maxCount {
		d.fail(fmt.Errorf("ndr: invalid string header max=%d offset=%d actual=%d", maxCount, offset, actual))
		return ""
	}
	if uint64(actual)*2 > uint64(d.Remaining()) {
		d.fail(fmt.Errorf("%w: string of %d units at offset %d", ErrShortBuffer, actual, d.off))
		return ""
	}

	raw := d.data[d.off : d.off+int(actual)*2]
	d.off += int(actual) * 2
	d.Align(4)

	for len(raw) >= 2 && raw[len(raw)-2] == 0 && raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-2]
	}
	s, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		d.fail(fmt.Errorf("ndr: decode string: %w", err))
		return ""
	}
	return string(s)
}

// ByteArray reads a conformant byte array.
func (d *Decoder) ByteArray() []byte {
	n := d.Uint32()
	if !d.need(int(n)) {
		return nil
	}
	b := d.data[d.off : d.off+int(n)]
	d.off += int(n)
	d.Align(4)
	return b
}
