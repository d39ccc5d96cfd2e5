package engine

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomFilename generates a NAME_SIZE-character ASCII sidecar file name
// (spec.md §4.7).
func randomFilename() (string, error) {
	buf := make([]byte, NameSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("engine: generate sidecar name: %w", err)
	}

	out := make([]byte, NameSize)
	for i, b := range buf {
		out[i] = nameAlphabet[int(b)%len(nameAlphabet)]
	}

	return string(out), nil
}

func (e *Engine) sidecarPath(filename string) string {
	return filepath.Join(sidecarDir(e.dir, e.name), filename)
}

func (e *Engine) writeSidecarFile(filename string, data []byte) error {
	dir := sidecarDir(e.dir, e.name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("engine: create sidecar dir: %w", err)
	}

	if err := os.WriteFile(e.sidecarPath(filename), data, 0o600); err != nil {
		return fmt.Errorf("engine: write sidecar %s: %w", filename, err)
	}

	return nil
}

func (e *Engine) readSidecarFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(e.sidecarPath(filename))
	if err != nil {
		return nil, fmt.Errorf("engine: read sidecar %s: %w", filename, err)
	}

	return data, nil
}

func (e *Engine) deleteSidecarFile(filename string) {
	if err := os.Remove(e.sidecarPath(filename)); err != nil && !os.IsNotExist(err) {
		e.log.Errorf("delete sidecar %s: %v", filename, err)
	}
}

// readExternalValue resolves an external entry's raw (possibly still
// encrypted) bytes: the blob cache first, falling back to the sidecar file
// (spec.md §4.7, "Read path for external entries").
func (e *Engine) readExternalValue(filename string) ([]byte, error) {
	if raw, ok := e.blobs.GetExternal(filename); ok {
		return raw, nil
	}

	return e.readSidecarFile(filename)
}
