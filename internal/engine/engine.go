package engine

import (
	"fmt"
	"os"
	"sync"

	"github.com/WizzXu/FastKV/internal/blobcache"
	"github.com/WizzXu/FastKV/internal/blobwriter"
	"github.com/WizzXu/FastKV/internal/buf"
	"github.com/WizzXu/FastKV/internal/cipher"
	"github.com/WizzXu/FastKV/internal/codec"
	"github.com/WizzXu/FastKV/internal/entry"
	"github.com/WizzXu/FastKV/internal/segment"
)

// Options configures Open.
type Options struct {
	Dir           string
	Name          string
	Mode          Mode
	Cipher        cipher.Cipher
	Registry      *codec.Registry // defaults to codec.NewRegistry() if nil
	InternalLimit int             // defaults to DefaultInternalLimit if <= 0
	Logger        Logger
}

// Engine is the persistent log engine: the on-disk binary format,
// in-memory index, append/in-place update, checksum maintenance, tombstone
// GC, external-value spill, and the encryption-upgrade rewrite.
//
// All exported methods acquire mu for their duration (spec.md §5): readers
// and writers never run concurrently.
type Engine struct {
	mu sync.Mutex

	dir, name string
	mode      Mode
	backend   backend
	backendPath string

	data     []byte
	dataEnd  int
	checksum uint64

	index    map[string]entry.Entry
	invalids *segment.Tracker

	cipher cipher.Cipher
	reg    *codec.Registry

	blobs         *blobcache.Cache
	asyncWriter   *blobwriter.Writer
	internalLimit int

	needRewriteAfterParse bool

	log    Logger
	closed bool
}

// Open opens or creates the store's backing file(s), parsing and
// recovering the in-memory index, and performing the one-time
// encryption-upgrade rewrite if needed (spec.md §4.5, §4.9).
func Open(opts Options) (*Engine, error) {
	if opts.Dir == "" || opts.Name == "" {
		return nil, fmt.Errorf("%w: dir and name are required", ErrInvalidArgument)
	}

	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("engine: create dir: %w", err)
	}

	if err := cleanStaleRewriteWorkspace(opts.Dir, opts.Name); err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = codec.NewRegistry()
	}

	limit := opts.InternalLimit
	if limit <= 0 {
		limit = DefaultInternalLimit
	}

	e := &Engine{
		dir:           opts.Dir,
		name:          opts.Name,
		mode:          opts.Mode,
		cipher:        opts.Cipher,
		reg:           reg,
		blobs:         blobcache.New(blobcache.DefaultSize),
		internalLimit: limit,
		log:           orNoop(opts.Logger),
	}
	e.asyncWriter = blobwriter.New(func(key string, err error) {
		e.log.Errorf("sidecar write failed for key %q: %v", key, err)
	})

	if err := e.openAndRecover(); err != nil {
		return nil, err
	}

	if e.needRewriteAfterParse {
		if err := e.rewriteWithCipher(e.cipher); err != nil {
			return nil, fmt.Errorf("engine: encryption upgrade rewrite: %w", err)
		}
	}

	return e, nil
}

func (e *Engine) openAndRecover() error {
	switch e.mode {
	case ModeDualFile:
		return e.openDualFileAndRecover()
	default:
		return e.openSingleAndRecover()
	}
}

func (e *Engine) openSingleAndRecover() error {
	b, path, err := openBackend(e.mode, e.dir, e.name, HeaderSize)
	if err != nil {
		return err
	}

	e.backend = b
	e.backendPath = path
	e.data = b.bytes()

	if len(e.data) < HeaderSize {
		if _, err := b.ensureCapacity(HeaderSize); err != nil {
			return err
		}

		e.data = b.bytes()
	}

	if err := e.initOrParse(); err != nil {
		return err
	}

	return nil
}

// openDualFileAndRecover implements the dual-file recovery contract
// (spec.md §4.5 "Dual-file recovery"): try A; on rejection reset and try
// B; if both fail, initialize empty. The intact image (or the freshly
// initialized one) becomes both A and B going forward.
func (e *Engine) openDualFileAndRecover() error {
	a, err := openMmapBackend(pathA(e.dir, e.name), HeaderSize)
	if err != nil {
		return err
	}

	b, err := openMmapBackend(pathB(e.dir, e.name), HeaderSize)
	if err != nil {
		_ = a.close()
		return err
	}

	e.backend = &dualBackend{a: a, b: b}
	e.backendPath = pathA(e.dir, e.name)

	resA, errA := parseImage(a.bytes(), e.cipher, e.reg)
	if errA == nil {
		e.adoptParse(resA, a.bytes())
		// A is authoritative: bring B up to date with it.
		return e.resyncSibling(sideA)
	}

	e.log.Warnf("dual-file: image A rejected (%v), trying B", errA)

	resB, errB := parseImage(b.bytes(), e.cipher, e.reg)
	if errB == nil {
		e.adoptParse(resB, b.bytes())
		// B is authoritative: bring A up to date with it, never the reverse
		// (spec.md §4.5/§8 scenario 6 — the corrupt side must never
		// overwrite the intact one).
		return e.resyncSibling(sideB)
	}

	e.log.Errorf("dual-file: both images rejected (A: %v, B: %v); initializing empty", errA, errB)

	return e.initEmpty()
}

// side names which backend file held the parse that is now authoritative.
type side int

const (
	sideA side = iota
	sideB
)

// resyncSibling copies the authoritative side's bytes onto the other side,
// so both files agree after recovery. The direction is determined by which
// side actually parsed clean — copying the wrong way would silently
// destroy the only valid image.
func (e *Engine) resyncSibling(authoritative side) error {
	d := e.backend.(*dualBackend)

	var src, dst *mmapBackend
	if authoritative == sideA {
		src, dst = d.a, d.b
	} else {
		src, dst = d.b, d.a
	}

	if _, err := dst.ensureCapacity(len(src.data)); err != nil {
		return err
	}

	copy(dst.data, src.data)

	return dst.file.Sync()
}

func (e *Engine) initOrParse() error {
	if len(e.data) < HeaderSize {
		return e.initEmpty()
	}

	// A freshly created file is all zeros, which decodes as dataSize=0,
	// encrypted=false, checksum=0: a valid empty image. Try to parse; any
	// rejection (e.g. a non-empty but corrupt single-file image) falls
	// back to empty, since there is no sibling to recover from outside
	// dual-file mode.
	res, err := parseImage(e.data, e.cipher, e.reg)
	if err != nil {
		e.log.Errorf("parse failed, initializing empty: %v", err)
		return e.initEmpty()
	}

	e.adoptParse(res, e.data)

	return nil
}

func (e *Engine) adoptParse(res *parseResult, data []byte) {
	e.data = data
	e.dataEnd = res.dataEnd
	e.checksum = res.checksum
	e.index = res.index
	e.invalids = res.invalids
	e.needRewriteAfterParse = res.needRewrite
}

func (e *Engine) initEmpty() error {
	data, err := e.backend.ensureCapacity(HeaderSize)
	if err != nil {
		return err
	}

	e.data = data
	e.dataEnd = HeaderSize
	e.checksum = 0
	e.index = make(map[string]entry.Entry)
	e.invalids = segment.New()
	e.needRewriteAfterParse = false

	writeHeader(e.data, 0, false, 0)

	return e.backend.flush(0, HeaderSize)
}

// Close releases the backend's file handles. Pending async sidecar writes
// are not waited on; see spec.md §9 (open question) for the chosen
// semantics (documented in this module's consumer, DESIGN.md).
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	return e.backend.close()
}

// checksumContribution returns the checksum contribution of data as if it
// sat at absolute file offset absOffset, correctly realigned to the
// payload's 8-byte word grid (spec.md §4.1).
func checksumContribution(data []byte, absOffset int) uint64 {
	rel := absOffset - HeaderSize
	return buf.ShiftCheckSum(buf.Checksum(data), rel)
}

func (e *Engine) writeHeaderAndFlush(start, end int) error {
	writeHeader(e.data, e.dataEnd-HeaderSize, e.hasEncryptedPayload(), e.checksum)

	if start > 0 {
		start = 0
	}

	return e.backend.flush(start, end)
}

func (e *Engine) hasEncryptedPayload() bool {
	return e.cipher != nil && e.dataEnd > HeaderSize
}
