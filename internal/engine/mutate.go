package engine

import (
	"fmt"

	"github.com/WizzXu/FastKV/internal/buf"
	"github.com/WizzXu/FastKV/internal/codec"
	"github.com/WizzXu/FastKV/internal/entry"
)

// growTo ensures the backing storage can hold at least required bytes,
// applying the doubling/fixed-increment growth policy (spec.md §4.4) rather
// than growing to the exact byte count on every append.
func (e *Engine) growTo(required int) error {
	if required <= len(e.data) {
		return nil
	}

	next, err := newCapacity(len(e.data), required)
	if err != nil {
		return err
	}

	data, err := e.backend.ensureCapacity(next)
	if err != nil {
		return err
	}

	e.data = data

	return nil
}

// appendRecord grows storage as needed, copies rec to the end of the live
// payload, folds its checksum contribution in, and durably records the new
// dataEnd (spec.md §4.6 "append").
func (e *Engine) appendRecord(rec []byte) (start int, err error) {
	start = e.dataEnd
	newEnd := start + len(rec)

	if err := e.growTo(newEnd); err != nil {
		return 0, err
	}

	copy(e.data[start:newEnd], rec)
	e.checksum ^= checksumContribution(rec, start)
	e.dataEnd = newEnd

	if err := e.writeHeaderAndFlush(start, newEnd); err != nil {
		return 0, err
	}

	return start, nil
}

// overwriteInPlace replaces the bytes at [offset, offset+len(next)) without
// moving any other record, updating the checksum via the XOR-linearity
// property: the old contribution is removed, the new one folded in
// (spec.md §4.1, §4.6 "in-place update").
func (e *Engine) overwriteInPlace(offset int, next []byte) error {
	old := make([]byte, len(next))
	copy(old, e.data[offset:offset+len(next)])
	copy(e.data[offset:offset+len(next)], next)

	e.checksum ^= checksumContribution(old, offset) ^ checksumContribution(next, offset)

	return e.writeHeaderAndFlush(offset, offset+len(next))
}

// tombstoneRecord flips a record's DeleteMask bit and tracks [start, end) as
// reclaimable (spec.md §4.6 "tombstone").
func (e *Engine) tombstoneRecord(start, end int) error {
	old := e.data[start]
	next := old | DeleteMask
	e.data[start] = next

	e.checksum ^= checksumContribution([]byte{old}, start) ^ checksumContribution([]byte{next}, start)
	e.invalids.CountInvalid(start, end)

	if err := e.writeHeaderAndFlush(start, start+1); err != nil {
		return err
	}

	return nil
}

// onDiskWidth returns the number of value bytes a live entry occupies on
// disk: the fixed width for fixed-width types, or ValueSize (which is
// NAME_SIZE for external entries) otherwise.
func onDiskWidth(en entry.Entry) int {
	if sz, ok := entry.FixedSize(en.Type); ok {
		return sz
	}

	return en.ValueSize
}

// removeIndexEntry tombstones en's on-disk record and drops it (and any
// cached blob state) from the in-memory index. Safe to call for fixed or
// variable, inline or external entries.
func (e *Engine) removeIndexEntry(key string, en entry.Entry) error {
	end := en.Offset + onDiskWidth(en)
	if err := e.tombstoneRecord(en.Start, end); err != nil {
		return err
	}

	delete(e.index, key)

	if en.External {
		filename := string(e.data[en.Offset : en.Offset+NameSize])
		e.blobs.RemoveExternal(filename)
		e.blobs.RemoveBigValue(key)
		e.asyncWriter.Enqueue(key, func() error {
			e.deleteSidecarFile(filename)
			return nil
		})
	}

	return nil
}

// putFixed implements Put for a fixed-width type: in place when an existing
// entry of the same type occupies the slot (fixed widths never change size
// for a given type), tombstone-and-append otherwise (spec.md §4.6).
func (e *Engine) putFixed(key string, t entry.Type, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	valBytes, err := encodeFixedValue(t, value, e.cipher)
	if err != nil {
		return err
	}

	if existing, ok := e.index[key]; ok {
		if existing.Type == t {
			if err := e.overwriteInPlace(existing.Offset, valBytes); err != nil {
				return err
			}

			existing.Value = value
			e.index[key] = existing

			return nil
		}

		if err := e.removeIndexEntry(key, existing); err != nil {
			return err
		}
	}

	keyBytes, err := encryptKey(e.cipher, key)
	if err != nil {
		return err
	}

	rec := buildFixedRecord(t, keyBytes, valBytes, false)

	start, err := e.appendRecord(rec)
	if err != nil {
		return err
	}

	e.index[key] = entry.Entry{
		Type:   t,
		Start:  start,
		Offset: start + 2 + len(keyBytes),
		Value:  value,
	}

	return e.maybeGC()
}

// variablePut carries the pieces putVariable needs in order to both build
// the on-disk record and populate the caches/index on success.
type variablePut struct {
	key     string
	typ     entry.Type
	tag     string // only meaningful for Object
	decoded any    // the caller-facing decoded value, cached for external entries
	plain   []byte // plaintext encoded bytes, before cipher and before spill
}

// putVariable implements Put for String/Array/Object: encrypts the payload,
// decides inline vs. external spill against internalLimit, and either
// overwrites in place (size unchanged) or tombstones-and-appends (spec.md
// §4.6, §4.7).
func (e *Engine) putVariable(p variablePut) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	stored := p.plain

	if e.cipher != nil {
		enc, err := e.cipher.Encrypt(p.plain)
		if err != nil {
			return fmt.Errorf("engine: value encrypt: %w", err)
		}

		stored = enc
	}

	external := len(stored) >= e.internalLimit

	var recordValue []byte
	var valueSize int
	var filename string

	if external {
		name, err := randomFilename()
		if err != nil {
			return err
		}

		filename = name
		recordValue = []byte(filename)
		valueSize = NameSize
	} else {
		if len(stored) > MaxValueSize {
			return fmt.Errorf("%w: value size %d exceeds max %d", ErrDataTooLarge, len(stored), MaxValueSize)
		}

		recordValue = stored
		valueSize = len(stored)
	}

	existing, exists := e.index[p.key]
	sameSlot := exists && existing.Type == p.typ && existing.External == external && onDiskWidth(existing) == valueSize

	var newStart, newOffset int

	if sameSlot {
		if err := e.overwriteInPlace(existing.Offset, recordValue); err != nil {
			return err
		}

		newStart, newOffset = existing.Start, existing.Offset
	} else {
		if exists {
			if err := e.removeIndexEntry(p.key, existing); err != nil {
				return err
			}
		}

		keyBytes, err := encryptKey(e.cipher, p.key)
		if err != nil {
			return err
		}

		rec := buildVariableRecord(p.typ, keyBytes, recordValue, external)

		start, err := e.appendRecord(rec)
		if err != nil {
			return err
		}

		newStart = start
		newOffset = start + 2 + len(keyBytes) + 2
	}

	if external {
		e.blobs.PutExternal(filename, stored)
		e.blobs.PutBigValue(p.key, p.decoded)

		e.asyncWriter.Enqueue(p.key, func() error {
			return e.writeSidecarFile(filename, stored)
		})
	} else {
		e.blobs.RemoveBigValue(p.key)
	}

	e.index[p.key] = entry.Entry{
		Type:      p.typ,
		Start:     newStart,
		Offset:    newOffset,
		ValueSize: valueSize,
		External:  external,
		Tag:       p.tag,
	}

	return e.maybeGC()
}

// PutBool sets a BOOLEAN value.
func (e *Engine) PutBool(key string, v bool) error { return e.putFixed(key, entry.Boolean, v) }

// PutInt32 sets an INT value.
func (e *Engine) PutInt32(key string, v int32) error { return e.putFixed(key, entry.Int, v) }

// PutFloat32 sets a FLOAT value.
func (e *Engine) PutFloat32(key string, v float32) error { return e.putFixed(key, entry.Float, v) }

// PutInt64 sets a LONG value.
func (e *Engine) PutInt64(key string, v int64) error { return e.putFixed(key, entry.Long, v) }

// PutFloat64 sets a DOUBLE value.
func (e *Engine) PutFloat64(key string, v float64) error { return e.putFixed(key, entry.Double, v) }

// PutString sets a STRING value.
func (e *Engine) PutString(key, v string) error {
	bb := buf.NewBuffer(make([]byte, len(v)))
	if err := buf.WriteStringFast(bb, v); err != nil {
		return fmt.Errorf("engine: encode string value: %w", err)
	}

	return e.putVariable(variablePut{key: key, typ: entry.String, decoded: v, plain: bb.Bytes()})
}

// PutBytes sets an ARRAY value (an opaque byte blob).
func (e *Engine) PutBytes(key string, v []byte) error {
	return e.putVariable(variablePut{key: key, typ: entry.Array, decoded: v, plain: v})
}

// PutObject encodes v with the encoder registered under tag and stores it
// as an OBJECT value: {tagSize byte, tag, encoded bytes}.
func (e *Engine) PutObject(key, tag string, v any) error {
	enc, ok := e.reg.Lookup(tag)
	if !ok {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, codec.MissingEncoderError(tag))
	}

	encoded, err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("engine: object encode: %w", err)
	}

	if len(tag) > 0xFF {
		return fmt.Errorf("%w: object tag %q too long", ErrInvalidArgument, tag)
	}

	payload := make([]byte, 0, 1+len(tag)+len(encoded))
	payload = append(payload, byte(len(tag)))
	payload = append(payload, tag...)
	payload = append(payload, encoded...)

	return e.putVariable(variablePut{key: key, typ: entry.Object, tag: tag, decoded: v, plain: payload})
}

func (e *Engine) maybeGC() error {
	if !e.invalids.ShouldGC(e.dataEnd) {
		return nil
	}

	return e.runGC()
}
