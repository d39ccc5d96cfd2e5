package fastkv

import "io"

// Import reads a snapshot stream previously written by Export and replays
// it as puts, skipping keys already present unless overwrite is true.
func (s *Store) Import(r io.Reader, overwrite bool) error {
	return s.guardWrite(s.eng.Import(r, overwrite))
}
