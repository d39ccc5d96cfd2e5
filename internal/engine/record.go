package engine

import (
	"fmt"
	"math"

	"github.com/WizzXu/FastKV/internal/cipher"
	"github.com/WizzXu/FastKV/internal/entry"
)

// encodeFixedValue serializes a fixed-width value to its on-disk bytes,
// applying the cipher's format-preserving integer transform when active.
// Booleans are never encrypted (spec.md §9).
func encodeFixedValue(t entry.Type, v any, c cipher.Cipher) ([]byte, error) {
	switch t {
	case entry.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected bool, got %T", ErrInvalidArgument, v)
		}

		if b {
			return []byte{1}, nil
		}

		return []byte{0}, nil

	case entry.Int, entry.Float:
		var bits uint32

		switch t {
		case entry.Int:
			n, ok := v.(int32)
			if !ok {
				return nil, fmt.Errorf("%w: expected int32, got %T", ErrInvalidArgument, v)
			}

			bits = uint32(n)
		case entry.Float:
			f, ok := v.(float32)
			if !ok {
				return nil, fmt.Errorf("%w: expected float32, got %T", ErrInvalidArgument, v)
			}

			bits = float32bits(f)
		}

		if c != nil {
			enc, err := c.EncryptI32(int32(bits))
			if err != nil {
				return nil, err
			}

			bits = uint32(enc)
		}

		return u32le(bits), nil

	case entry.Long, entry.Double:
		var bits uint64

		switch t {
		case entry.Long:
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("%w: expected int64, got %T", ErrInvalidArgument, v)
			}

			bits = uint64(n)
		case entry.Double:
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("%w: expected float64, got %T", ErrInvalidArgument, v)
			}

			bits = float64bits(f)
		}

		if c != nil {
			enc, err := c.EncryptI64(int64(bits))
			if err != nil {
				return nil, err
			}

			bits = uint64(enc)
		}

		return u64le(bits), nil

	default:
		return nil, fmt.Errorf("%w: not a fixed-width type: %d", ErrInvalidArgument, t)
	}
}

func float32bits(f float32) uint32 { return math.Float32bits(f) }

func float64bits(f float64) uint64 { return math.Float64bits(f) }

// buildFixedRecord builds the full on-disk record bytes for a fixed-width
// entry: info | keySize | key | value.
func buildFixedRecord(t entry.Type, keyBytes, valueBytes []byte, deleted bool) []byte {
	out := make([]byte, 0, 2+len(keyBytes)+len(valueBytes))
	out = append(out, infoByte(t, deleted, false))
	out = append(out, byte(len(keyBytes)))
	out = append(out, keyBytes...)
	out = append(out, valueBytes...)

	return out
}

// buildVariableRecord builds the full on-disk record bytes for a
// variable-length entry: info | keySize | key | valueSize(2) | value.
// value is either the inline payload or, when external is true, the
// NAME_SIZE-byte sidecar filename.
func buildVariableRecord(t entry.Type, keyBytes, value []byte, external bool) []byte {
	out := make([]byte, 0, 4+len(keyBytes)+len(value))
	out = append(out, infoByte(t, false, external))
	out = append(out, byte(len(keyBytes)))
	out = append(out, keyBytes...)
	out = append(out, byte(len(value)), byte(len(value)>>8))
	out = append(out, value...)

	return out
}

// encryptKey applies the active cipher to a UTF-8 key and validates the
// post-encryption length against spec.md §1's 255-byte Non-goal ceiling.
func encryptKey(c cipher.Cipher, key string) ([]byte, error) {
	raw := []byte(key)

	if c != nil {
		enc, err := c.Encrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("engine: key encrypt: %w", err)
		}

		raw = enc
	}

	if len(raw) == 0 || len(raw) > MaxKeySize {
		return nil, fmt.Errorf("%w: key size %d out of range [1,%d]", ErrInvalidArgument, len(raw), MaxKeySize)
	}

	return raw, nil
}
