package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hujson"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	contents := `{
		// trailing comment support via hujson
		"name": "mystore",
		"mode": "dual",
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	require.Equal(t, ".", cfg.Dir)
	require.Equal(t, "mystore", cfg.Name)
	require.Equal(t, "dual", cfg.Mode)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	require.NoError(t, os.WriteFile(path, []byte(`{"mode": "bogus"}`), 0o644))

	_, err := LoadFromDir(dir)
	require.Error(t, err)
}

func TestLoadIgnoresEmptyDirOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	require.NoError(t, os.WriteFile(path, []byte(`{"dir": ""}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ".", cfg.Dir, "empty overlay value must not clobber the default")
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
