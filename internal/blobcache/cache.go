// Package blobcache implements the two caches described in spec.md §4.7 and
// the "External-blob cache" component in §2: recently written raw bytes
// keyed by sidecar file name, and decoded large values keyed by user key.
//
// Both are bounded LRU caches rather than true weak/soft references (Go has
// no public soft-reference API); per spec.md §9 ("Weak caches"), correctness
// never depends on retention, only on recency-biased eviction, so a bounded
// LRU is a faithful substitute. Grounded on the opencoff/go-bbhash DBReader's
// use of an LRU for opportunistically cached records.
package blobcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the default entry capacity for both caches.
const DefaultSize = 256

// Cache holds the raw-bytes-by-filename and decoded-value-by-key caches.
type Cache struct {
	external *lru.Cache[string, []byte]
	bigValue *lru.Cache[string, any]
}

// New creates a Cache with the given per-cache capacity. size <= 0 uses
// DefaultSize.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}

	ext, _ := lru.New[string, []byte](size)
	big, _ := lru.New[string, any](size)

	return &Cache{external: ext, bigValue: big}
}

// PutExternal caches the raw (possibly still-encrypted) bytes written to a
// sidecar file, keyed by file name, so a read racing the async writer
// doesn't need to touch disk.
func (c *Cache) PutExternal(name string, raw []byte) {
	c.external.Add(name, raw)
}

// GetExternal returns the cached raw bytes for a sidecar file name, if
// still resident.
func (c *Cache) GetExternal(name string) ([]byte, bool) {
	return c.external.Get(name)
}

// RemoveExternal evicts a sidecar file name's cached raw bytes, used once
// the async writer's work is superseded or the key is removed.
func (c *Cache) RemoveExternal(name string) {
	c.external.Remove(name)
}

// PutBigValue caches the fully decoded value for a user key, so an
// immediate read-after-write of a large value doesn't need to re-read or
// re-decode the sidecar file.
func (c *Cache) PutBigValue(key string, v any) {
	c.bigValue.Add(key, v)
}

// GetBigValue returns the cached decoded value for a user key, if still
// resident.
func (c *Cache) GetBigValue(key string) (any, bool) {
	return c.bigValue.Get(key)
}

// RemoveBigValue evicts a user key's cached decoded value, used on
// overwrite or remove.
func (c *Cache) RemoveBigValue(key string) {
	c.bigValue.Remove(key)
}
