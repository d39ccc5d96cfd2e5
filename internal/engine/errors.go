package engine

import "errors"

// Error classification, mirroring spec.md §7 and the teacher's
// pkg/slotcache error taxonomy (rebuild-class vs operational).
var (
	// ErrCorrupt indicates the candidate image failed parse/integrity
	// checks (bad header, checksum mismatch, unknown record type,
	// truncated record). The image must be rejected and recovery must
	// fall back to the alternate file or an empty store.
	ErrCorrupt = errors.New("engine: corrupt")

	// ErrInvalidArgument reports a programmer error at the boundary:
	// empty/nil key, oversize key, missing/invalid encoder tag.
	ErrInvalidArgument = errors.New("engine: invalid argument")

	// ErrDataTooLarge reports a dataSize/value size that would overflow
	// the 28-bit dataSize field or the 256MiB file size ceiling.
	ErrDataTooLarge = errors.New("engine: data too large")

	// ErrKeyNotFound is not returned by the engine's lookups, which report
	// a missing key with ok=false; public accessors turn that into the
	// caller-supplied default.
	ErrKeyNotFound = errors.New("engine: key not found")

	// ErrClosed is returned by any operation on a closed Engine.
	ErrClosed = errors.New("engine: closed")
)
