package buf

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrShortBuffer is returned when a read or write would run past the end of
// the buffer's backing region.
var ErrShortBuffer = errors.New("buf: short buffer")

// ErrInvalidString is returned by WriteStringFast's general path when s is
// not valid UTF-8.
var ErrInvalidString = errors.New("buf: invalid utf-8 string")

// Buffer is a contiguous mutable byte region with a cursor, used as the
// in-memory mirror of the on-disk log payload. Typed reads/writes are
// little-endian. Growth is the caller's responsibility (see
// internal/engine's capacity policy); Buffer never reallocates on its own.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer wraps an existing byte slice. The slice is used directly, not
// copied; callers that need isolation should copy first.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the full backing slice.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the length of the backing slice.
func (b *Buffer) Len() int { return len(b.data) }

// Pos returns the current cursor position.
func (b *Buffer) Pos() int { return b.pos }

// Seek moves the cursor to an absolute offset.
func (b *Buffer) Seek(off int) { b.pos = off }

// Grow replaces the backing slice, preserving existing bytes up to
// min(len(old), len(newData)). Used when the engine reallocates to a larger
// capacity.
func (b *Buffer) Grow(newData []byte) {
	n := copy(newData, b.data)
	_ = n
	b.data = newData
}

func (b *Buffer) require(n int) error {
	if b.pos < 0 || b.pos+n > len(b.data) {
		return ErrShortBuffer
	}

	return nil
}

// ReadU8 reads one byte and advances the cursor.
func (b *Buffer) ReadU8() (byte, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}

	v := b.data[b.pos]
	b.pos++

	return v, nil
}

// WriteU8 writes one byte at the cursor and advances it.
func (b *Buffer) WriteU8(v byte) error {
	if err := b.require(1); err != nil {
		return err
	}

	b.data[b.pos] = v
	b.pos++

	return nil
}

// ReadU16 reads a little-endian uint16.
func (b *Buffer) ReadU16() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint16(b.data[b.pos:])
	b.pos += 2

	return v, nil
}

// WriteU16 writes a little-endian uint16.
func (b *Buffer) WriteU16(v uint16) error {
	if err := b.require(2); err != nil {
		return err
	}

	binary.LittleEndian.PutUint16(b.data[b.pos:], v)
	b.pos += 2

	return nil
}

// ReadI32 reads a little-endian int32.
func (b *Buffer) ReadI32() (int32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}

	v := int32(binary.LittleEndian.Uint32(b.data[b.pos:]))
	b.pos += 4

	return v, nil
}

// WriteI32 writes a little-endian int32.
func (b *Buffer) WriteI32(v int32) error {
	if err := b.require(4); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(b.data[b.pos:], uint32(v))
	b.pos += 4

	return nil
}

// ReadI64 reads a little-endian int64.
func (b *Buffer) ReadI64() (int64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}

	v := int64(binary.LittleEndian.Uint64(b.data[b.pos:]))
	b.pos += 8

	return v, nil
}

// WriteI64 writes a little-endian int64.
func (b *Buffer) WriteI64(v int64) error {
	if err := b.require(8); err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(b.data[b.pos:], uint64(v))
	b.pos += 8

	return nil
}

// ReadF32 reads a little-endian IEEE-754 float32, preserving exact bit
// patterns (including NaN payloads).
func (b *Buffer) ReadF32() (float32, error) {
	v, err := b.ReadI32()
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(uint32(v)), nil
}

// WriteF32 writes a little-endian IEEE-754 float32 bit-exactly.
func (b *Buffer) WriteF32(v float32) error {
	return b.WriteI32(int32(math.Float32bits(v)))
}

// ReadF64 reads a little-endian IEEE-754 float64 bit-exactly.
func (b *Buffer) ReadF64() (float64, error) {
	v, err := b.ReadI64()
	if err != nil {
		return 0, err
	}

	return math.Float64frombits(uint64(v)), nil
}

// WriteF64 writes a little-endian IEEE-754 float64 bit-exactly.
func (b *Buffer) WriteF64(v float64) error {
	return b.WriteI64(int64(math.Float64bits(v)))
}

// ReadBytes reads n raw bytes without copying the backing array view.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if err := b.require(n); err != nil {
		return nil, err
	}

	v := b.data[b.pos : b.pos+n]
	b.pos += n

	return v, nil
}

// WriteBytes copies raw bytes at the cursor.
func (b *Buffer) WriteBytes(v []byte) error {
	if err := b.require(len(v)); err != nil {
		return err
	}

	copy(b.data[b.pos:], v)
	b.pos += len(v)

	return nil
}

// WriteStringFast writes a UTF-8 string, taking a coincidence fast path when
// the string's UTF-16 code unit count equals its UTF-8 byte count and it
// holds no invalid byte (pure ASCII): every rune is known single-byte, so
// the bytes can be copied without a further validity check. An invalid byte
// also counts as one code unit, so such strings are sent on to the general
// path. Any other string takes the general path, which
// validates UTF-8 first since the backing region is also used to stage
// not-yet-decrypted ciphertext and must never silently carry an invalid
// string into the log.
func WriteStringFast(b *Buffer, s string) error {
	if utf16Len(s) == len(s) && !strings.ContainsRune(s, utf8.RuneError) {
		return b.WriteBytes([]byte(s))
	}

	if !utf8.ValidString(s) {
		return ErrInvalidString
	}

	return b.WriteBytes([]byte(s))
}

// utf16Len returns the UTF-16 code unit length of s, matching the source
// platform's notion of "string length" used to decide the fast path.
func utf16Len(s string) int {
	n := 0

	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}

	return n
}

// ReadString reads n bytes and returns them as a string. Bytes that are not
// valid UTF-8 are returned as is, not rejected.
func (b *Buffer) ReadString(n int) (string, error) {
	raw, err := b.ReadBytes(n)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(raw) {
		return string(raw), nil // tolerate: ciphertext may not be valid UTF-8 pre-decrypt
	}

	return string(raw), nil
}
