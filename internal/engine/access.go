package engine

import (
	"fmt"

	"github.com/WizzXu/FastKV/internal/buf"
	"github.com/WizzXu/FastKV/internal/entry"
)

// rawValueBytes returns en's stored bytes (encrypted, if the store is
// encrypted) from inline storage or, for an external entry, the blob cache
// or sidecar file.
func (e *Engine) rawValueBytes(en entry.Entry) ([]byte, error) {
	if !en.External {
		return e.data[en.Offset : en.Offset+en.ValueSize], nil
	}

	filename := string(e.data[en.Offset : en.Offset+NameSize])

	return e.readExternalValue(filename)
}

func (e *Engine) decryptedValueBytes(en entry.Entry) ([]byte, error) {
	raw, err := e.rawValueBytes(en)
	if err != nil {
		return nil, err
	}

	if e.cipher == nil {
		return raw, nil
	}

	plain, err := e.cipher.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("engine: value decrypt: %w", err)
	}

	return plain, nil
}

func (e *Engine) getFixed(key string, t entry.Type) (any, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, false, ErrClosed
	}

	en, ok := e.index[key]
	if !ok || en.Type != t {
		return nil, false, nil
	}

	return en.Value, true, nil
}

// GetBool returns v and ok=true if key holds a live BOOLEAN value.
func (e *Engine) GetBool(key string) (bool, bool, error) {
	v, ok, err := e.getFixed(key, entry.Boolean)
	if !ok || err != nil {
		return false, ok, err
	}

	return v.(bool), true, nil
}

// GetInt32 returns v and ok=true if key holds a live INT value.
func (e *Engine) GetInt32(key string) (int32, bool, error) {
	v, ok, err := e.getFixed(key, entry.Int)
	if !ok || err != nil {
		return 0, ok, err
	}

	return v.(int32), true, nil
}

// GetFloat32 returns v and ok=true if key holds a live FLOAT value.
func (e *Engine) GetFloat32(key string) (float32, bool, error) {
	v, ok, err := e.getFixed(key, entry.Float)
	if !ok || err != nil {
		return 0, ok, err
	}

	return v.(float32), true, nil
}

// GetInt64 returns v and ok=true if key holds a live LONG value.
func (e *Engine) GetInt64(key string) (int64, bool, error) {
	v, ok, err := e.getFixed(key, entry.Long)
	if !ok || err != nil {
		return 0, ok, err
	}

	return v.(int64), true, nil
}

// GetFloat64 returns v and ok=true if key holds a live DOUBLE value.
func (e *Engine) GetFloat64(key string) (float64, bool, error) {
	v, ok, err := e.getFixed(key, entry.Double)
	if !ok || err != nil {
		return 0, ok, err
	}

	return v.(float64), true, nil
}

// GetString returns v and ok=true if key holds a live STRING value,
// resolving external storage and the big-value cache as needed.
func (e *Engine) GetString(key string) (string, bool, error) {
	v, ok, err := e.getVariable(key, entry.String)
	if !ok || err != nil {
		return "", ok, err
	}

	return v.(string), true, nil
}

// GetBytes returns v and ok=true if key holds a live ARRAY value.
func (e *Engine) GetBytes(key string) ([]byte, bool, error) {
	v, ok, err := e.getVariable(key, entry.Array)
	if !ok || err != nil {
		return nil, ok, err
	}

	return v.([]byte), true, nil
}

// GetObject returns the decoded value and ok=true if key holds a live
// OBJECT value and a decoder is registered for its tag.
func (e *Engine) GetObject(key string) (any, bool, error) {
	return e.getVariable(key, entry.Object)
}

// getVariable looks up key, requires it to hold a live value of type t,
// decodes it via decodeEntryValue, and caches the result for external
// entries so a repeated read doesn't re-touch the sidecar file.
func (e *Engine) getVariable(key string, t entry.Type) (any, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, false, ErrClosed
	}

	en, ok := e.index[key]
	if !ok || en.Type != t {
		return nil, false, nil
	}

	v, ok, err := e.decodeEntryValue(key, en)
	if err != nil || !ok {
		return nil, ok, err
	}

	if en.External {
		e.blobs.PutBigValue(key, v)
	}

	return v, true, nil
}

// Contains reports whether key holds a live value of any type.
func (e *Engine) Contains(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.index[key]

	return ok
}

// Remove tombstones key's record, if present. Removing a key that doesn't
// exist is a no-op, matching spec.md §7's "missing key is not an error"
// stance.
func (e *Engine) Remove(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	en, ok := e.index[key]
	if !ok {
		return nil
	}

	if err := e.removeIndexEntry(key, en); err != nil {
		return err
	}

	return e.maybeGC()
}

// Keys returns every live key. Order is unspecified.
func (e *Engine) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.index))
	for k := range e.index {
		out = append(out, k)
	}

	return out
}

// Count returns the number of live keys.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.index)
}

// decodeEntryValue resolves any live entry's decoded value, used by GetAll
// to share logic with the single-key typed getters.
func (e *Engine) decodeEntryValue(key string, en entry.Entry) (any, bool, error) {
	switch en.Type {
	case entry.Boolean, entry.Int, entry.Float, entry.Long, entry.Double:
		return en.Value, true, nil
	case entry.String:
		if en.External {
			if cached, ok := e.blobs.GetBigValue(key); ok {
				return cached, true, nil
			}
		}

		plain, err := e.decryptedValueBytes(en)
		if err != nil {
			return nil, false, err
		}

		v, err := buf.NewBuffer(plain).ReadString(len(plain))
		if err != nil {
			return nil, false, fmt.Errorf("engine: decode string value for key %q: %w", key, err)
		}

		return v, true, nil
	case entry.Array:
		if en.External {
			if cached, ok := e.blobs.GetBigValue(key); ok {
				return cached, true, nil
			}
		}

		plain, err := e.decryptedValueBytes(en)
		if err != nil {
			return nil, false, err
		}

		return append([]byte(nil), plain...), true, nil
	case entry.Object:
		if en.Value != nil {
			return en.Value, true, nil
		}

		if en.External {
			if cached, ok := e.blobs.GetBigValue(key); ok {
				return cached, true, nil
			}
		}

		plain, err := e.decryptedValueBytes(en)
		if err != nil {
			return nil, false, err
		}

		if len(plain) < 1 {
			return nil, false, fmt.Errorf("%w: truncated object payload for key %q", ErrCorrupt, key)
		}

		tagSize := int(plain[0])
		if 1+tagSize > len(plain) {
			return nil, false, fmt.Errorf("%w: truncated object tag for key %q", ErrCorrupt, key)
		}

		tag := string(plain[1 : 1+tagSize])

		dec, ok := e.reg.Lookup(tag)
		if !ok {
			return nil, false, nil
		}

		v, err := dec.Decode(plain[1+tagSize:])
		if err != nil {
			return nil, false, nil
		}

		return v, true, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown entry type %d for key %q", ErrCorrupt, en.Type, key)
	}
}

// GetAll decodes and returns every live key's value, resolving external
// storage as needed (spec.md §6, "getAll() -> Map<String, Any>"). A value
// that fails to decode (e.g. an object whose encoder isn't registered) is
// silently omitted, matching the single-key getters' "absent" behavior.
func (e *Engine) GetAll() (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	out := make(map[string]any, len(e.index))

	for key, en := range e.index {
		v, ok, err := e.decodeEntryValue(key, en)
		if err != nil {
			e.log.Warnf("getAll: omitting key %q: %v", key, err)
			continue
		}

		if ok {
			out[key] = v
		}
	}

	return out, nil
}

// Clear tombstones every live record and runs GC immediately, leaving an
// empty payload.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	for key, en := range e.index {
		if err := e.removeIndexEntry(key, en); err != nil {
			return err
		}
	}

	e.invalids.Merge()
	if e.invalids.Len() == 0 {
		return nil
	}

	return e.runGC()
}

// Stat reports point-in-time size and occupancy metrics, a supplemented
// operation for callers that want visibility without reaching into the
// store's internals.
type Stat struct {
	LiveKeys      int
	DataSize      int
	TotalCapacity int
	InvalidBytes  int
	InvalidRanges int
}

// Stat returns the current size/occupancy snapshot.
func (e *Engine) Stat() Stat {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stat{
		LiveKeys:      len(e.index),
		DataSize:      e.dataEnd,
		TotalCapacity: len(e.data),
		InvalidBytes:  e.invalids.InvalidBytes(),
		InvalidRanges: e.invalids.Len(),
	}
}
