package fastkv

import (
	"time"

	"github.com/WizzXu/FastKV/internal/cipher"
	"github.com/WizzXu/FastKV/internal/codec"
	"github.com/WizzXu/FastKV/internal/engine"
)

// Mode re-exports the engine's durability discipline selector so callers
// don't need to import the internal package directly.
type Mode = engine.Mode

const (
	ModeAsyncMmap    = engine.ModeAsyncMmap
	ModeSyncBlocking = engine.ModeSyncBlocking
	ModeDualFile     = engine.ModeDualFile
)

// Logger is the structured-logging seam a Store reports parse/GC/I-O
// events through. A nil Logger (the default) discards everything.
type Logger = engine.Logger

// Clock is a monotonic time seam, injectable for deterministic tests
// (spec.md supplement: "WithClock").
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures Open.
type Option func(*config)

type config struct {
	mode          engine.Mode
	cipher        cipher.Cipher
	registry      *codec.Registry
	internalLimit int
	logger        engine.Logger
	clock         Clock
}

// WithMode selects the durability discipline (default ModeAsyncMmap).
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithCipher installs a symmetric cipher. Opening a previously unencrypted
// store with a cipher triggers the one-time encryption-upgrade rewrite.
func WithCipher(ci cipher.Cipher) Option {
	return func(c *config) { c.cipher = ci }
}

// WithRegistry installs the codec registry used to encode/decode OBJECT
// values. Defaults to a registry with only the built-in string-set codec.
func WithRegistry(r *codec.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithInternalLimit overrides the byte threshold at or above which a
// variable-length value is spilled to a sidecar file.
func WithInternalLimit(n int) Option {
	return func(c *config) { c.internalLimit = n }
}

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithClock installs a Clock, used to stamp diagnostics. Defaults to the
// system clock.
func WithClock(cl Clock) Option {
	return func(c *config) { c.clock = cl }
}
