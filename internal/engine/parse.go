package engine

import (
	"fmt"

	"github.com/WizzXu/FastKV/internal/buf"
	"github.com/WizzXu/FastKV/internal/cipher"
	"github.com/WizzXu/FastKV/internal/codec"
	"github.com/WizzXu/FastKV/internal/entry"
	"github.com/WizzXu/FastKV/internal/segment"
)

// parseResult is everything parseImage reconstructs from a candidate file
// image, per spec.md §4.5.
type parseResult struct {
	dataEnd     int
	checksum    uint64
	index       map[string]entry.Entry
	invalids    *segment.Tracker
	needRewrite bool
}

// parseImage validates and walks a candidate file image, rebuilding the
// in-memory index. Any violation of spec.md §4.5 steps 1-6 causes the whole
// image to be rejected with ErrCorrupt; callers should then try the
// alternate file (dual-file mode) or initialize empty.
func parseImage(data []byte, c cipher.Cipher, reg *codec.Registry) (*parseResult, error) {
	fileLen := len(data)
	if fileLen == 0 || fileLen >= MaxFileSize {
		return nil, fmt.Errorf("%w: file length %d out of range", ErrCorrupt, fileLen)
	}

	if fileLen < HeaderSize {
		return nil, fmt.Errorf("%w: file shorter than header", ErrCorrupt)
	}

	dataSize, hadEncrypted, storedChecksum := readHeader(data)
	if dataSize < 0 || dataSize > fileLen-HeaderSize {
		return nil, fmt.Errorf("%w: dataSize %d exceeds available bytes", ErrCorrupt, dataSize)
	}

	dataEnd := HeaderSize + dataSize

	payload := data[HeaderSize:dataEnd]
	if buf.Checksum(payload) != storedChecksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	res := &parseResult{
		dataEnd:  dataEnd,
		checksum: storedChecksum,
		index:    make(map[string]entry.Entry),
		invalids: segment.New(),
	}

	pos := HeaderSize

	for pos < dataEnd {
		recStart := pos

		info := data[pos]
		pos++

		t, deleted, external := decodeInfo(info)
		if !deleted && !entry.Valid(t) {
			return nil, fmt.Errorf("%w: unknown record type %d at offset %d", ErrCorrupt, info, recStart)
		}

		if pos >= dataEnd {
			return nil, fmt.Errorf("%w: truncated record at offset %d", ErrCorrupt, recStart)
		}

		keySize := int(data[pos])
		pos++

		if keySize == 0 {
			return nil, fmt.Errorf("%w: zero key size at offset %d", ErrCorrupt, recStart)
		}

		if pos+keySize > dataEnd {
			return nil, fmt.Errorf("%w: truncated key at offset %d", ErrCorrupt, recStart)
		}

		keyBytes := data[pos : pos+keySize]
		pos += keySize

		fixedSize, isFixed := entry.FixedSize(t)

		var valueSize int
		var valueOffset int
		var isExternal bool

		if isFixed {
			if pos+fixedSize > dataEnd {
				return nil, fmt.Errorf("%w: truncated fixed value at offset %d", ErrCorrupt, recStart)
			}

			valueOffset = pos
			valueSize = fixedSize
			pos += fixedSize
		} else {
			if pos+2 > dataEnd {
				return nil, fmt.Errorf("%w: truncated value size at offset %d", ErrCorrupt, recStart)
			}

			valueSize = int(data[pos]) | int(data[pos+1])<<8
			pos += 2

			isExternal = external

			width := valueSize
			if isExternal {
				width = NameSize
			}

			if pos+width > dataEnd {
				return nil, fmt.Errorf("%w: truncated variable value at offset %d", ErrCorrupt, recStart)
			}

			valueOffset = pos
			pos += width
		}

		if deleted {
			res.invalids.CountInvalid(recStart, pos)
			continue
		}

		key, err := decryptKey(c, hadEncrypted, keyBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: key decrypt failed at offset %d: %v", ErrCorrupt, recStart, err)
		}

		e := entry.Entry{
			Type:      t,
			Offset:    valueOffset,
			Start:     recStart,
			ValueSize: valueSize,
			External:  isExternal,
		}

		if isFixed {
			v, err := decodeFixedValue(t, data[valueOffset:valueOffset+valueSize], c, hadEncrypted)
			if err != nil {
				return nil, fmt.Errorf("%w: fixed value decode failed at offset %d: %v", ErrCorrupt, recStart, err)
			}

			e.Value = v
		} else if t == entry.Object && !isExternal {
			raw := data[valueOffset : valueOffset+valueSize]
			if hadEncrypted && c != nil {
				plain, err := c.Decrypt(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: object decrypt failed at offset %d: %v", ErrCorrupt, recStart, err)
				}

				raw = plain
			}

			if len(raw) < 1 {
				return nil, fmt.Errorf("%w: truncated object payload at offset %d", ErrCorrupt, recStart)
			}

			tagSize := int(raw[0])
			if 1+tagSize > len(raw) {
				return nil, fmt.Errorf("%w: truncated object tag at offset %d", ErrCorrupt, recStart)
			}

			tag := string(raw[1 : 1+tagSize])
			encoded := raw[1+tagSize:]

			e.Tag = tag

			// Per spec.md §4.5 step 5 and §9 (open question): an unknown
			// or failing codec leaves the slot absent from the index
			// without tombstoning the on-disk record, so a later Open
			// with the encoder available can recover it.
			dec, ok := reg.Lookup(tag)
			if !ok {
				continue
			}

			v, decErr := dec.Decode(encoded)
			if decErr != nil {
				continue
			}

			e.Value = v
		}

		res.index[key] = e
	}

	if pos != dataEnd {
		return nil, fmt.Errorf("%w: trailing bytes after last record (pos=%d, dataEnd=%d)", ErrCorrupt, pos, dataEnd)
	}

	if !hadEncrypted && c != nil && dataEnd != HeaderSize {
		res.needRewrite = true
	}

	return res, nil
}

func decryptKey(c cipher.Cipher, hadEncrypted bool, raw []byte) (string, error) {
	if !hadEncrypted || c == nil {
		return string(raw), nil
	}

	plain, err := c.Decrypt(raw)
	if err != nil {
		return "", err
	}

	return string(plain), nil
}

func decodeFixedValue(t entry.Type, raw []byte, c cipher.Cipher, hadEncrypted bool) (any, error) {
	plain := raw

	if hadEncrypted && c != nil && t != entry.Boolean {
		switch t {
		case entry.Int, entry.Float:
			v := int32(leUint32(raw))

			dv, err := c.DecryptI32(v)
			if err != nil {
				return nil, err
			}

			plain = u32le(uint32(dv))
		case entry.Long, entry.Double:
			v := int64(leUint64(raw))

			dv, err := c.DecryptI64(v)
			if err != nil {
				return nil, err
			}

			plain = u64le(uint64(dv))
		}
	}

	b := buf.NewBuffer(plain)

	switch t {
	case entry.Boolean:
		v, err := b.ReadU8()
		return v != 0, err
	case entry.Int:
		v, err := b.ReadI32()
		return v, err
	case entry.Float:
		v, err := b.ReadF32()
		return v, err
	case entry.Long:
		v, err := b.ReadI64()
		return v, err
	case entry.Double:
		v, err := b.ReadF64()
		return v, err
	default:
		return nil, fmt.Errorf("engine: not a fixed-width type: %d", t)
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func u64le(v uint64) []byte {
	out := make([]byte, 8)
	for i := range out {
		out[i] = byte(v)
		v >>= 8
	}

	return out
}
