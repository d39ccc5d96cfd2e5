// Package fastkv is an embedded, single-process, file-persisted key-value
// store for typed primitives and variable-length blobs, built around a
// persistent append-and-compact log engine (see internal/engine).
package fastkv

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/WizzXu/FastKV/internal/codec"
	"github.com/WizzXu/FastKV/internal/engine"
)

// Store is the public handle to an open key-value store.
type Store struct {
	eng    *engine.Engine
	clock  Clock
	logger Logger
}

// Open opens or creates the store backed by files named <name>.* under
// dir, applying any Options (spec.md §6, "open(path, name, encoders?,
// cipher?, mode) -> Store").
func Open(dir, name string, opts ...Option) (*Store, error) {
	cfg := config{mode: engine.ModeAsyncMmap, clock: systemClock{}}
	for _, o := range opts {
		o(&cfg)
	}

	eng, err := engine.Open(engine.Options{
		Dir:           dir,
		Name:          name,
		Mode:          cfg.mode,
		Cipher:        cfg.cipher,
		Registry:      cfg.registry,
		InternalLimit: cfg.internalLimit,
		Logger:        cfg.logger,
	})
	if err != nil {
		return nil, err
	}

	return &Store{eng: eng, clock: cfg.clock, logger: cfg.logger}, nil
}

// Close releases the store's file handles.
func (s *Store) Close() error { return s.eng.Close() }

// Contains reports whether key holds a live value.
func (s *Store) Contains(key string) bool { return s.eng.Contains(key) }

// Remove deletes key, if present. A missing key is not an error (spec.md §7).
func (s *Store) Remove(key string) error { return s.guardWrite(s.eng.Remove(key)) }

// Clear removes every key.
func (s *Store) Clear() error { return s.guardWrite(s.eng.Clear()) }

// Keys returns every live key, in unspecified order.
func (s *Store) Keys() []string { return s.eng.Keys() }

// Count returns the number of live keys.
func (s *Store) Count() int { return s.eng.Count() }

// Stat is a point-in-time size/occupancy snapshot, timestamped by the
// Store's Clock (the system clock by default, or whatever WithClock
// installed).
type Stat struct {
	engine.Stat
	At time.Time
}

// Stat returns a point-in-time size/occupancy snapshot.
func (s *Store) Stat() Stat {
	return Stat{Stat: s.eng.Stat(), At: s.clock.Now()}
}

// CompactNow forces an immediate garbage-collection pass, regardless of the
// usual tombstone thresholds.
func (s *Store) CompactNow() error { return s.guardWrite(s.eng.CompactNow()) }

// guardWrite implements spec.md §7's error-propagation boundary: argument
// faults and a closed store are raised to the caller; everything else
// (I/O failures) is logged and treated as best-effort, since the mutation
// already landed in memory regardless of whether it reached disk.
func (s *Store) guardWrite(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, engine.ErrInvalidArgument) || errors.Is(err, engine.ErrDataTooLarge) || errors.Is(err, engine.ErrClosed) {
		return err
	}

	if s.logger != nil {
		s.logger.Errorf("write best-effort failure: %v", err)
	}

	return nil
}

// GetBool returns the live BOOLEAN value for key, or def if absent/wrong
// type (spec.md §6, "get<T>(key[, default]) -> T").
func (s *Store) GetBool(key string, def bool) bool {
	v, ok, _ := s.eng.GetBool(key)
	if !ok {
		return def
	}

	return v
}

// PutBool sets a BOOLEAN value.
func (s *Store) PutBool(key string, v bool) error { return s.guardWrite(s.eng.PutBool(key, v)) }

// GetInt32 returns the live INT value for key, or def if absent/wrong type.
func (s *Store) GetInt32(key string, def int32) int32 {
	v, ok, _ := s.eng.GetInt32(key)
	if !ok {
		return def
	}

	return v
}

// PutInt32 sets an INT value.
func (s *Store) PutInt32(key string, v int32) error { return s.guardWrite(s.eng.PutInt32(key, v)) }

// GetFloat32 returns the live FLOAT value for key, or def if absent/wrong type.
func (s *Store) GetFloat32(key string, def float32) float32 {
	v, ok, _ := s.eng.GetFloat32(key)
	if !ok {
		return def
	}

	return v
}

// PutFloat32 sets a FLOAT value.
func (s *Store) PutFloat32(key string, v float32) error {
	return s.guardWrite(s.eng.PutFloat32(key, v))
}

// GetInt64 returns the live LONG value for key, or def if absent/wrong type.
func (s *Store) GetInt64(key string, def int64) int64 {
	v, ok, _ := s.eng.GetInt64(key)
	if !ok {
		return def
	}

	return v
}

// PutInt64 sets a LONG value.
func (s *Store) PutInt64(key string, v int64) error { return s.guardWrite(s.eng.PutInt64(key, v)) }

// GetFloat64 returns the live DOUBLE value for key, or def if absent/wrong type.
func (s *Store) GetFloat64(key string, def float64) float64 {
	v, ok, _ := s.eng.GetFloat64(key)
	if !ok {
		return def
	}

	return v
}

// PutFloat64 sets a DOUBLE value.
func (s *Store) PutFloat64(key string, v float64) error {
	return s.guardWrite(s.eng.PutFloat64(key, v))
}

// GetString returns the live STRING value for key, or def if absent/wrong type.
func (s *Store) GetString(key, def string) string {
	v, ok, _ := s.eng.GetString(key)
	if !ok {
		return def
	}

	return v
}

// PutString sets a STRING value.
func (s *Store) PutString(key, v string) error { return s.guardWrite(s.eng.PutString(key, v)) }

// GetBytes returns the live ARRAY value for key, or def if absent/wrong type.
func (s *Store) GetBytes(key string, def []byte) []byte {
	v, ok, _ := s.eng.GetBytes(key)
	if !ok {
		return def
	}

	return v
}

// PutBytes sets an ARRAY value.
func (s *Store) PutBytes(key string, v []byte) error { return s.guardWrite(s.eng.PutBytes(key, v)) }

// GetStringSet returns the live Set<String> OBJECT value for key, or def if
// absent/wrong type/undecodable.
func (s *Store) GetStringSet(key string, def map[string]struct{}) map[string]struct{} {
	v, ok, _ := s.eng.GetObject(key)
	if !ok {
		return def
	}

	set, ok := v.(map[string]struct{})
	if !ok {
		return def
	}

	return set
}

// PutStringSet sets a Set<String> OBJECT value using the built-in
// string-set codec.
func (s *Store) PutStringSet(key string, v map[string]struct{}) error {
	return s.guardWrite(s.eng.PutObject(key, codec.StringSetEncoder{}.Tag(), v))
}

// GetObject returns the live OBJECT value decoded by the codec registered
// under tag, or def if absent/wrong type/tag/undecodable.
func (s *Store) GetObject(key string, def any) any {
	v, ok, _ := s.eng.GetObject(key)
	if !ok {
		return def
	}

	return v
}

// PutObject encodes v with the codec registered under tag and stores it as
// an OBJECT value.
func (s *Store) PutObject(key, tag string, v any) error {
	return s.guardWrite(s.eng.PutObject(key, tag, v))
}

// GetAll decodes and returns every live key's value (spec.md §6).
func (s *Store) GetAll() (map[string]any, error) {
	return s.eng.GetAll()
}

// PutAll is a batch put: each value's Go type selects its on-disk DataType,
// except map[string]struct{}/[]string (stored as the built-in Set<String>
// OBJECT) and any other type, which requires a tag in encoders naming a
// registered codec (spec.md §6, "putAll(values, encoders) batch").
func (s *Store) PutAll(values map[string]any, encoders map[string]string) error {
	for key, v := range values {
		if err := s.putAny(key, v, encoders[key]); err != nil {
			return fmt.Errorf("fastkv: putAll key %q: %w", key, err)
		}
	}

	return nil
}

func (s *Store) putAny(key string, v any, tag string) error {
	switch val := v.(type) {
	case bool:
		return s.PutBool(key, val)
	case int32:
		return s.PutInt32(key, val)
	case int:
		return s.PutInt32(key, int32(val))
	case int64:
		return s.PutInt64(key, val)
	case float32:
		return s.PutFloat32(key, val)
	case float64:
		return s.PutFloat64(key, val)
	case string:
		return s.PutString(key, val)
	case []byte:
		return s.PutBytes(key, val)
	case map[string]struct{}:
		return s.PutStringSet(key, val)
	case []string:
		set := make(map[string]struct{}, len(val))
		for _, e := range val {
			set[e] = struct{}{}
		}

		return s.PutStringSet(key, set)
	default:
		if tag == "" {
			return fmt.Errorf("%w: value of type %T needs an encoder tag", engine.ErrInvalidArgument, v)
		}

		return s.PutObject(key, tag, v)
	}
}

// Export writes a point-in-time snapshot of every live key/value to w as a
// magic-tagged stream of explicitly sized records (see internal/engine's
// Export), so backup tooling can consume it without depending on the
// on-disk log format directly.
func (s *Store) Export(w io.Writer) error {
	return s.eng.Export(w)
}
