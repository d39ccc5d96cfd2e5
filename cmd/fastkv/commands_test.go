package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WizzXu/FastKV/config"
)

func TestOpenStoreHonoursConfigMode(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Mode = "sync"

	st, err := openStore(cfg)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.PutString("k", "v"))
	require.Equal(t, "v", st.GetString("k", ""))
}

func TestOpenStoreRejectsUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Mode = "bogus"

	_, err := openStore(cfg)
	require.Error(t, err)
}

func TestCmdPutGuessesType(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()

	st, err := openStore(cfg)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, cmdPut(st, []string{"n", "42"}))
	require.Equal(t, int64(42), st.GetInt64("n", 0))

	require.NoError(t, cmdPut(st, []string{"s", "hello"}))
	require.Equal(t, "hello", st.GetString("s", ""))

	require.NoError(t, cmdRemove(st, []string{"n"}))
	require.False(t, st.Contains("n"))
}
