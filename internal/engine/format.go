// Package engine implements the persistent log engine: the on-disk binary
// format, parse/recover, append/in-place update, tombstone GC, the
// external-file spill path, and the encryption-upgrade rewrite. This is the
// nucleus described in spec.md §4.5–§4.10.
package engine

import (
	"encoding/binary"

	"github.com/WizzXu/FastKV/internal/entry"
)

const (
	// HeaderSize is the fixed 12-byte file header: packedSize (4) + checksum (8).
	HeaderSize = 12

	// dataSizeMask extracts the 28 low bits of packedSize that hold dataSize.
	dataSizeMask = 0x0FFFFFFF

	// encryptedBit is bit 30 of packedSize, set iff the payload is encrypted.
	encryptedBit = 1 << 30

	// DeleteMask marks a record as a tombstone (high bit of the info byte).
	DeleteMask = 0x80

	// ExternalMask marks a variable-length record's value as a sidecar
	// filename rather than an inline payload.
	ExternalMask = 0x40

	// typeMask isolates the DataType bits of the info byte.
	typeMask = 0x3F

	// NameSize is the fixed length, in ASCII bytes, of a sidecar filename.
	NameSize = 32

	// MaxDataSize is the exclusive upper bound on dataSize (28-bit field).
	MaxDataSize = 1 << 28

	// MaxFileSize is the largest accepted candidate file image (spec.md §4.5 step 1).
	MaxFileSize = 256 << 20

	// MaxKeySize is the largest allowed post-encryption key length (spec.md §1 Non-goals).
	MaxKeySize = 255

	// MaxValueSize is the largest allowed inline variable-length value (spec.md §3 invariant 7).
	MaxValueSize = 0xFFFF

	// DefaultInternalLimit is the default threshold at or above which a
	// variable-length value is spilled to a sidecar file (spec.md §4.7).
	DefaultInternalLimit = 4 * 1024
)

// packHeader encodes dataSize and the encrypted flag into the packedSize word.
func packHeader(dataSize int, encrypted bool) uint32 {
	v := uint32(dataSize) & dataSizeMask
	if encrypted {
		v |= encryptedBit
	}

	return v
}

// unpackHeader decodes packedSize into dataSize and the encrypted flag.
func unpackHeader(packed uint32) (dataSize int, encrypted bool) {
	return int(packed & dataSizeMask), packed&encryptedBit != 0
}

// writeHeader encodes the 12-byte file header into buf[0:12].
func writeHeader(buf []byte, dataSize int, encrypted bool, checksum uint64) {
	binary.LittleEndian.PutUint32(buf[0:4], packHeader(dataSize, encrypted))
	binary.LittleEndian.PutUint64(buf[4:12], checksum)
}

// readHeader decodes the 12-byte file header from buf[0:12].
func readHeader(buf []byte) (dataSize int, encrypted bool, checksum uint64) {
	packed := binary.LittleEndian.Uint32(buf[0:4])
	dataSize, encrypted = unpackHeader(packed)
	checksum = binary.LittleEndian.Uint64(buf[4:12])

	return dataSize, encrypted, checksum
}

// infoByte builds the 1-byte record tag.
func infoByte(t entry.Type, deleted, external bool) byte {
	v := byte(t) & typeMask
	if deleted {
		v |= DeleteMask
	}

	if external {
		v |= ExternalMask
	}

	return v
}

// decodeInfo splits an info byte into its type and flags.
func decodeInfo(b byte) (t entry.Type, deleted, external bool) {
	return entry.Type(b & typeMask), b&DeleteMask != 0, b&ExternalMask != 0
}
