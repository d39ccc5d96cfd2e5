package engine

import (
	"os"

	"github.com/WizzXu/FastKV/internal/mmapfile"
)

// backend abstracts the durability discipline (spec.md §4.10). The engine's
// in-memory buffer is always the source of truth for reads; backend only
// governs how (and whether) mutations are made durable.
type backend interface {
	// bytes returns the current backing slice. For mmap-based backends
	// this *is* the mapped memory; for the blocking backend it's a plain
	// heap slice mirrored to disk on flush.
	bytes() []byte

	// ensureCapacity grows the backing storage to at least n bytes,
	// preserving existing content, and returns the (possibly new) slice.
	ensureCapacity(n int) ([]byte, error)

	// flush persists the header and the dirty range [start, end) to
	// durable storage. For ModeAsyncMmap this is a no-op.
	flush(start, end int) error

	// truncateTo shrinks backing storage to n bytes.
	truncateTo(n int) error

	close() error
}

// blockingBackend implements ModeSyncBlocking: a plain in-memory slice,
// persisted via pwrite+fsync on every flush.
type blockingBackend struct {
	file *mmapfile.File
	data []byte
}

func openBlockingBackend(path string, initialSize int) (*blockingBackend, error) {
	f, err := mmapfile.OpenOrCreate(path, int64(initialSize), 0o600)
	if err != nil {
		return nil, err
	}

	size, err := f.Size()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	data := make([]byte, size)
	if size > 0 {
		if err := f.PRead(data, 0); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return &blockingBackend{file: f, data: data}, nil
}

func (b *blockingBackend) bytes() []byte { return b.data }

func (b *blockingBackend) ensureCapacity(n int) ([]byte, error) {
	if n <= len(b.data) {
		return b.data, nil
	}

	grown := make([]byte, n)
	copy(grown, b.data)
	b.data = grown

	if err := b.file.Truncate(int64(n)); err != nil {
		return nil, err
	}

	return b.data, nil
}

func (b *blockingBackend) flush(start, end int) error {
	if end > len(b.data) {
		end = len(b.data)
	}

	if start < 0 {
		start = 0
	}

	if start < end {
		if err := b.file.PWrite(b.data[start:end], int64(start)); err != nil {
			return err
		}
	}

	return b.file.Sync()
}

func (b *blockingBackend) truncateTo(n int) error {
	b.data = b.data[:n]
	return b.file.Truncate(int64(n))
}

func (b *blockingBackend) close() error { return b.file.Close() }

// mmapBackend implements ModeAsyncMmap: the backing region is memory
// mapped; mutations are visible to other mappings of the same inode
// immediately, with no explicit flush required.
type mmapBackend struct {
	file *mmapfile.File
	data []byte
}

func openMmapBackend(path string, initialSize int) (*mmapBackend, error) {
	f, err := mmapfile.OpenOrCreate(path, int64(initialSize), 0o600)
	if err != nil {
		return nil, err
	}

	size, err := f.Size()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if size < int64(initialSize) {
		size = int64(initialSize)
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	data, err := f.Mmap(int(size))
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &mmapBackend{file: f, data: data}, nil
}

func (b *mmapBackend) bytes() []byte { return b.data }

func (b *mmapBackend) ensureCapacity(n int) ([]byte, error) {
	if n <= len(b.data) {
		return b.data, nil
	}

	if err := b.file.Unmap(); err != nil {
		return nil, err
	}

	if err := b.file.Truncate(int64(n)); err != nil {
		return nil, err
	}

	data, err := b.file.Mmap(n)
	if err != nil {
		return nil, err
	}

	b.data = data

	return b.data, nil
}

func (b *mmapBackend) flush(start, end int) error {
	// Non-sync mode: dirty pages are left to the OS page cache. Callers
	// that need a hard durability point should use ModeSyncBlocking or
	// ModeDualFile instead.
	return nil
}

func (b *mmapBackend) truncateTo(n int) error {
	if err := b.file.Unmap(); err != nil {
		return err
	}

	if err := b.file.Truncate(int64(n)); err != nil {
		return err
	}

	data, err := b.file.Mmap(n)
	if err != nil {
		return err
	}

	b.data = data

	return nil
}

func (b *mmapBackend) close() error { return b.file.Close() }

// dualBackend implements ModeDualFile: two mmap images (A and B). Writes go
// to both; flush msyncs both. On open, a corrupt image is repaired from its
// intact sibling (see openDualFileAndRecover in engine.go).
type dualBackend struct {
	a, b *mmapBackend
}

func (d *dualBackend) bytes() []byte { return d.a.data }

func (d *dualBackend) ensureCapacity(n int) ([]byte, error) {
	if _, err := d.a.ensureCapacity(n); err != nil {
		return nil, err
	}

	if _, err := d.b.ensureCapacity(n); err != nil {
		return nil, err
	}

	copy(d.b.data, d.a.data)

	return d.a.data, nil
}

func (d *dualBackend) flush(start, end int) error {
	if end > len(d.a.data) {
		end = len(d.a.data)
	}

	if start < end {
		copy(d.b.data[start:end], d.a.data[start:end])
	}

	if err := d.a.file.Sync(); err != nil {
		return err
	}

	return d.b.file.Sync()
}

func (d *dualBackend) truncateTo(n int) error {
	if err := d.a.truncateTo(n); err != nil {
		return err
	}

	return d.b.truncateTo(n)
}

func (d *dualBackend) close() error {
	errA := d.a.close()
	errB := d.b.close()

	if errA != nil {
		return errA
	}

	return errB
}

// fileExists reports whether path names a regular, readable file.
func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func openBackend(mode Mode, dir, name string, initialSize int) (backend, string, error) {
	switch mode {
	case ModeSyncBlocking:
		b, err := openBlockingBackend(pathC(dir, name), initialSize)
		return b, pathC(dir, name), err
	case ModeDualFile:
		a, err := openMmapBackend(pathA(dir, name), initialSize)
		if err != nil {
			return nil, "", err
		}

		b, err := openMmapBackend(pathB(dir, name), initialSize)
		if err != nil {
			_ = a.close()
			return nil, "", err
		}

		return &dualBackend{a: a, b: b}, pathA(dir, name), nil
	default:
		b, err := openMmapBackend(pathA(dir, name), initialSize)
		return b, pathA(dir, name), err
	}
}
