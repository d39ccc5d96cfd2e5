// Package config loads the optional kvlog.hujson sidecar configuration
// file used by cmd/fastkv, following the teacher's JSONC-via-hujson
// config-loading pattern.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the default config file name, looked for in the
// working directory.
const ConfigFileName = "kvlog.hujson"

// Config holds the CLI tool's persistent settings.
type Config struct {
	Dir           string `json:"dir"`
	Name          string `json:"name"`
	Mode          string `json:"mode,omitempty"` // "mmap", "sync", or "dual"
	InternalLimit int    `json:"internal_limit,omitempty"` //nolint:tagliatelle
}

var errDirEmpty = errors.New("config: dir must not be empty")

// Default returns the zero-value-resistant baseline config.
func Default() Config {
	return Config{Dir: ".", Name: "store", Mode: "mmap"}
}

// Load reads and parses path (HuJSON: JSON with comments and trailing
// commas). A missing file is not an error; Load returns Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid HuJSON in %s: %w", path, err)
	}

	var fileCfg Config
	if err := json.Unmarshal(standardized, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid JSON in %s: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir is Load(filepath.Join(dir, ConfigFileName)).
func LoadFromDir(dir string) (Config, error) {
	return Load(filepath.Join(dir, ConfigFileName))
}

func merge(base, overlay Config) Config {
	if overlay.Dir != "" {
		base.Dir = overlay.Dir
	}

	if overlay.Name != "" {
		base.Name = overlay.Name
	}

	if overlay.Mode != "" {
		base.Mode = overlay.Mode
	}

	if overlay.InternalLimit != 0 {
		base.InternalLimit = overlay.InternalLimit
	}

	return base
}

func validate(cfg Config) error {
	if cfg.Dir == "" {
		return errDirEmpty
	}

	switch cfg.Mode {
	case "mmap", "sync", "dual":
	default:
		return fmt.Errorf("config: unknown mode %q, want mmap/sync/dual", cfg.Mode)
	}

	return nil
}
