package engine

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/WizzXu/FastKV/internal/buf"
	"github.com/WizzXu/FastKV/internal/entry"
)

// Export/Import implement a backup snapshot format independent of the
// on-disk log layout, grounded on the teacher's own cache_binary.go: a
// short magic+version header followed by a stream of explicitly sized
// records, rather than a generic object-serialization library.
const (
	exportMagic      = "FKV1"
	exportVersion    = byte(1)
	exportHeaderSize = 8
)

// Export writes every live key as one record each, in sorted key order for
// deterministic output: {keySize(1) key type(1) payloadSize(4) payload}.
// An entry that can't currently be decoded (e.g. an OBJECT whose encoder
// isn't registered) is silently omitted, matching GetAll's behavior.
func (e *Engine) Export(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	header := make([]byte, exportHeaderSize)
	copy(header, exportMagic)
	header[4] = exportVersion

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("engine: export header: %w", err)
	}

	keys := make([]string, 0, len(e.index))
	for k := range e.index {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, key := range keys {
		rec, ok, err := e.buildExportRecord(key, e.index[key])
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("engine: export key %q: %w", key, err)
		}
	}

	return nil
}

func (e *Engine) buildExportRecord(key string, en entry.Entry) ([]byte, bool, error) {
	if len(key) == 0 || len(key) > 0xFF {
		return nil, false, fmt.Errorf("%w: export key %q has invalid length", ErrInvalidArgument, key)
	}

	var payload []byte

	switch en.Type {
	case entry.Boolean, entry.Int, entry.Float, entry.Long, entry.Double:
		p, err := encodeExportFixed(en.Type, en.Value)
		if err != nil {
			return nil, false, err
		}

		payload = p
	case entry.String:
		v, ok, err := e.decodeEntryValue(key, en)
		if err != nil || !ok {
			return nil, false, err
		}

		payload = []byte(v.(string))
	case entry.Array:
		v, ok, err := e.decodeEntryValue(key, en)
		if err != nil || !ok {
			return nil, false, err
		}

		payload = v.([]byte)
	case entry.Object:
		// Exported verbatim as {tagSize, tag, encoded} — the same shape
		// decodeEntryValue parses on read — so Import can hand it straight
		// to the registry without round-tripping through a decoded Go
		// value at all.
		plain, err := e.decryptedValueBytes(en)
		if err != nil {
			return nil, false, err
		}

		payload = plain
	default:
		return nil, false, fmt.Errorf("%w: unknown entry type %d for key %q", ErrCorrupt, en.Type, key)
	}

	out := make([]byte, 0, 1+len(key)+1+4+len(payload))
	out = append(out, byte(len(key)))
	out = append(out, key...)
	out = append(out, byte(en.Type))

	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(payload)))
	out = append(out, sizeBuf...)
	out = append(out, payload...)

	return out, true, nil
}

func encodeExportFixed(t entry.Type, v any) ([]byte, error) {
	size, _ := entry.FixedSize(t)
	b := buf.NewBuffer(make([]byte, size))

	var err error

	switch t {
	case entry.Boolean:
		val, _ := v.(bool)

		bv := byte(0)
		if val {
			bv = 1
		}

		err = b.WriteU8(bv)
	case entry.Int:
		val, _ := v.(int32)
		err = b.WriteI32(val)
	case entry.Float:
		val, _ := v.(float32)
		err = b.WriteF32(val)
	case entry.Long:
		val, _ := v.(int64)
		err = b.WriteI64(val)
	case entry.Double:
		val, _ := v.(float64)
		err = b.WriteF64(val)
	default:
		return nil, fmt.Errorf("%w: not a fixed-width type: %d", ErrInvalidArgument, t)
	}

	if err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decodeExportFixed(t entry.Type, payload []byte) (any, error) {
	b := buf.NewBuffer(payload)

	switch t {
	case entry.Boolean:
		v, err := b.ReadU8()
		return v != 0, err
	case entry.Int:
		return b.ReadI32()
	case entry.Float:
		return b.ReadF32()
	case entry.Long:
		return b.ReadI64()
	case entry.Double:
		return b.ReadF64()
	default:
		return nil, fmt.Errorf("%w: not a fixed-width type: %d", ErrInvalidArgument, t)
	}
}

// Import reads a stream written by Export and replays it as puts, skipping
// keys already present unless overwrite is true.
func (e *Engine) Import(r io.Reader, overwrite bool) error {
	header := make([]byte, exportHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("engine: import header: %w", err)
	}

	if string(header[:4]) != exportMagic {
		return fmt.Errorf("%w: bad export magic", ErrCorrupt)
	}

	if header[4] != exportVersion {
		return fmt.Errorf("%w: unsupported export version %d", ErrCorrupt, header[4])
	}

	for {
		if err := e.importOneRecord(r, overwrite); err != nil {
			if err == io.EOF {
				return nil
			}

			return err
		}
	}
}

func (e *Engine) importOneRecord(r io.Reader, overwrite bool) error {
	prefix := make([]byte, 2)
	if _, err := io.ReadFull(r, prefix[:1]); err != nil {
		return err // io.EOF at a record boundary is the normal end-of-stream
	}

	keySize := int(prefix[0])

	rest := make([]byte, keySize+1+4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return fmt.Errorf("engine: import record: %w", err)
	}

	key := string(rest[:keySize])
	typ := entry.Type(rest[keySize])
	payloadSize := binary.LittleEndian.Uint32(rest[keySize+1:])

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("engine: import record %q: %w", key, err)
	}

	if !overwrite && e.Contains(key) {
		return nil
	}

	return e.putImportedRecord(key, typ, payload)
}

func (e *Engine) putImportedRecord(key string, typ entry.Type, payload []byte) error {
	switch typ {
	case entry.Boolean, entry.Int, entry.Float, entry.Long, entry.Double:
		v, err := decodeExportFixed(typ, payload)
		if err != nil {
			return err
		}

		return e.putFixed(key, typ, v)
	case entry.String:
		s, err := buf.NewBuffer(payload).ReadString(len(payload))
		if err != nil {
			return err
		}

		return e.PutString(key, s)
	case entry.Array:
		return e.PutBytes(key, payload)
	case entry.Object:
		if len(payload) < 1 {
			return fmt.Errorf("%w: truncated object payload for key %q", ErrCorrupt, key)
		}

		tagSize := int(payload[0])
		if 1+tagSize > len(payload) {
			return fmt.Errorf("%w: truncated object tag for key %q", ErrCorrupt, key)
		}

		tag := string(payload[1 : 1+tagSize])

		dec, ok := e.reg.Lookup(tag)
		if !ok {
			return nil // unregistered encoder: tolerate, matches decodeEntryValue
		}

		v, err := dec.Decode(payload[1+tagSize:])
		if err != nil {
			return nil
		}

		return e.PutObject(key, tag, v)
	default:
		return fmt.Errorf("%w: unknown entry type %d for key %q", ErrCorrupt, typ, key)
	}
}
