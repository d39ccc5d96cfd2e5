package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/WizzXu/FastKV/internal/cipher"
	"github.com/WizzXu/FastKV/internal/entry"
	"github.com/WizzXu/FastKV/internal/segment"
)

// rewriteWithCipher performs the one-time encryption-upgrade rewrite
// (spec.md §4.9): every live record parsed from a pre-existing unencrypted
// image is re-encoded under c into a fresh image built in a sibling
// workspace, which then atomically replaces the real backing file(s).
// Runs once, immediately after Open's parse, only when that parse set
// needRewriteAfterParse (an unencrypted image opened with a cipher now
// configured).
func (e *Engine) rewriteWithCipher(c cipher.Cipher) error {
	workDir := tempRewriteDir(e.dir, e.name)
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return fmt.Errorf("engine: create rewrite workspace: %w", err)
	}

	defer os.RemoveAll(workDir)

	oldData := e.data
	oldIndex := e.index
	oldSidecarDir := sidecarDir(e.dir, e.name)

	keys := make([]string, 0, len(oldIndex))
	for k := range oldIndex {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	newData := make([]byte, HeaderSize, HeaderSize+len(oldData))
	newIndex := make(map[string]entry.Entry, len(oldIndex))

	var checksum uint64

	dataEnd := HeaderSize

	for _, key := range keys {
		en := oldIndex[key]

		keyBytes, err := encryptKey(c, key)
		if err != nil {
			return fmt.Errorf("engine: rewrite key %q: %w", key, err)
		}

		_, isFixed := entry.FixedSize(en.Type)

		var rec []byte
		var valueSize int
		var external bool

		if isFixed {
			valBytes, err := encodeFixedValue(en.Type, en.Value, c)
			if err != nil {
				return fmt.Errorf("engine: rewrite key %q: %w", key, err)
			}

			rec = buildFixedRecord(en.Type, keyBytes, valBytes, false)
		} else {
			plain, err := e.oldPlainBytes(oldData, oldSidecarDir, en)
			if err != nil {
				return fmt.Errorf("engine: rewrite key %q: %w", key, err)
			}

			stored := plain
			if c != nil {
				stored, err = c.Encrypt(plain)
				if err != nil {
					return fmt.Errorf("engine: rewrite key %q encrypt: %w", key, err)
				}
			}

			external = len(stored) >= e.internalLimit

			var recVal []byte

			if external {
				name, err := randomFilename()
				if err != nil {
					return err
				}

				if err := os.WriteFile(filepath.Join(workDir, name), stored, 0o600); err != nil {
					return fmt.Errorf("engine: rewrite sidecar for key %q: %w", key, err)
				}

				recVal = []byte(name)
				valueSize = NameSize
			} else {
				recVal = stored
				valueSize = len(stored)
			}

			rec = buildVariableRecord(en.Type, keyBytes, recVal, external)
		}

		start := dataEnd
		offset := start + 2 + len(keyBytes)

		if !isFixed {
			offset += 2
		}

		checksum ^= checksumContribution(rec, start)
		newData = append(newData, rec...)
		dataEnd += len(rec)

		newIndex[key] = entry.Entry{
			Type:      en.Type,
			Start:     start,
			Offset:    offset,
			ValueSize: valueSize,
			External:  external,
			Tag:       en.Tag,
			Value:     en.Value,
		}
	}

	writeHeader(newData, dataEnd-HeaderSize, c != nil && dataEnd > HeaderSize, checksum)

	if err := e.backend.close(); err != nil {
		return fmt.Errorf("engine: close pre-rewrite backend: %w", err)
	}

	if e.mode == ModeDualFile {
		if err := atomicReplaceFile(pathA(e.dir, e.name), newData); err != nil {
			return err
		}

		if err := atomicReplaceFile(pathB(e.dir, e.name), newData); err != nil {
			return err
		}
	} else if err := atomicReplaceFile(e.backendPath, newData); err != nil {
		return err
	}

	if err := os.RemoveAll(oldSidecarDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("engine: clear old sidecar dir: %w", err)
	}

	if err := moveSidecarFiles(workDir, oldSidecarDir); err != nil {
		return err
	}

	b, path, err := openBackend(e.mode, e.dir, e.name, len(newData))
	if err != nil {
		return fmt.Errorf("engine: reopen backend after rewrite: %w", err)
	}

	e.backend = b
	e.backendPath = path
	e.data = b.bytes()
	e.dataEnd = dataEnd
	e.checksum = checksum
	e.index = newIndex
	e.invalids = segment.New()
	e.needRewriteAfterParse = false

	e.log.Debugf("encryption upgrade rewrite finished: %d keys", len(newIndex))

	return nil
}

// oldPlainBytes returns a pre-rewrite entry's plaintext payload: since the
// image being rewritten was, by definition, not yet encrypted, no decrypt
// step applies here regardless of the new cipher.
func (e *Engine) oldPlainBytes(oldData []byte, oldSidecarDir string, en entry.Entry) ([]byte, error) {
	if !en.External {
		return oldData[en.Offset : en.Offset+en.ValueSize], nil
	}

	name := string(oldData[en.Offset : en.Offset+NameSize])

	if raw, ok := e.blobs.GetExternal(name); ok {
		return raw, nil
	}

	data, err := os.ReadFile(filepath.Join(oldSidecarDir, name))
	if err != nil {
		return nil, fmt.Errorf("engine: read pre-rewrite sidecar %s: %w", name, err)
	}

	return data, nil
}
