// Package codec implements the tag->codec registry for OBJECT values
// (spec.md §4.2/§9, "Encoder registry") and the built-in string-set codec.
package codec

import "fmt"

// Encoder encodes/decodes a user object value. Tag identifies the codec in
// the on-disk OBJECT payload's {tagSize, tag, encoded} triplet, so a
// reopened store can pick the right codec for each record.
type Encoder interface {
	Tag() string
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Registry maps tag -> Encoder. The zero value is usable; NewRegistry
// additionally registers the built-in string-set codec.
type Registry struct {
	byTag map[string]Encoder
}

// NewRegistry returns a registry with the built-in string-set codec
// registered, matching the source's default of always supporting
// Set<String> values without caller setup.
func NewRegistry() *Registry {
	r := &Registry{byTag: make(map[string]Encoder)}
	r.Register(StringSetEncoder{})

	return r
}

// Register adds or replaces the codec for its tag.
func (r *Registry) Register(e Encoder) {
	if r.byTag == nil {
		r.byTag = make(map[string]Encoder)
	}

	r.byTag[e.Tag()] = e
}

// Lookup returns the encoder for tag, or ok=false if none is registered.
//
// Per spec.md §4.5 step 5 and §9 (open question): an unknown tag at parse
// time is NOT an error in itself — the caller should leave the record's
// slot absent from the index rather than tombstoning it, so a later Open
// with the encoder registered can recover it.
func (r *Registry) Lookup(tag string) (Encoder, bool) {
	e, ok := r.byTag[tag]
	return e, ok
}

// MissingEncoderError returns an error suitable for raising to the caller on Put when
// no encoder is registered for v's requested tag.
func MissingEncoderError(tag string) error {
	return fmt.Errorf("codec: no encoder registered for tag %q", tag)
}
