// Package cipher declares the symmetric transform interface the log engine
// delegates to for keys, values, and external blobs. It intentionally has
// no concrete implementation: callers supply their own (spec.md §4.1,
// "Cipher adapter").
package cipher

// Cipher is an optional symmetric transform applied to key bytes, variable
// value bytes, and external blob bytes. Fixed-width integer encryption
// (EncryptI32/EncryptI64) must be length-preserving, because the record
// layout assumes TYPE_SIZE[type] bytes regardless of whether a cipher is
// active (spec.md §9). Booleans are never encrypted.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)

	// EncryptI32/DecryptI32 and EncryptI64/DecryptI64 apply a
	// format-preserving transform to fixed-width integers so the
	// on-disk width never changes.
	EncryptI32(v int32) (int32, error)
	DecryptI32(v int32) (int32, error)
	EncryptI64(v int64) (int64, error)
	DecryptI64(v int64) (int64, error)
}
