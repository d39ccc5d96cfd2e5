package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, opts Options) *Engine {
	t.Helper()

	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}

	if opts.Name == "" {
		opts.Name = "store"
	}

	e, err := Open(opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = e.Close() })

	return e
}

func TestPutGetRoundTripAllTypes(t *testing.T) {
	e := openTest(t, Options{})

	require.NoError(t, e.PutBool("b", true))
	require.NoError(t, e.PutInt32("i", 42))
	require.NoError(t, e.PutFloat32("f", 3.5))
	require.NoError(t, e.PutInt64("l", -9000))
	require.NoError(t, e.PutFloat64("d", 1.25))
	require.NoError(t, e.PutString("s", "hello world"))
	require.NoError(t, e.PutBytes("a", []byte{1, 2, 3}))

	b, ok, err := e.GetBool("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, b)

	i, ok, err := e.GetInt32("i")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(42), i)

	f, ok, err := e.GetFloat32("f")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float32(3.5), f)

	l, ok, err := e.GetInt64("l")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(-9000), l)

	d, ok, err := e.GetFloat64("d")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.25, d)

	s, ok, err := e.GetString("s")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello world", s)

	by, ok, err := e.GetBytes("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, by)
}

func TestOverwriteSameTypeReusesSlot(t *testing.T) {
	e := openTest(t, Options{})

	require.NoError(t, e.PutInt32("k", 1))
	before := e.dataEnd

	require.NoError(t, e.PutInt32("k", 2))
	require.Equal(t, before, e.dataEnd, "overwriting a fixed-width value in place must not grow dataEnd")

	v, ok, err := e.GetInt32("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(2), v)
}

func TestRemoveTombstonesAndGCReclaims(t *testing.T) {
	e := openTest(t, Options{})

	for i := 0; i < 200; i++ {
		require.NoError(t, e.PutString("k", "some moderately sized value to tombstone repeatedly"))
		require.NoError(t, e.Remove("k"))
	}

	require.False(t, e.Contains("k"))
	require.Equal(t, 0, e.Count())
	require.Less(t, e.dataEnd, HeaderSize+200*56, "GC must have reclaimed tombstoned records")
}

func TestReopenRecoversIndex(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(Options{Dir: dir, Name: "store"})
	require.NoError(t, err)

	require.NoError(t, e1.PutString("greeting", "hi"))
	require.NoError(t, e1.PutInt64("count", 7))
	require.NoError(t, e1.Close())

	e2, err := Open(Options{Dir: dir, Name: "store"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = e2.Close() })

	s, ok, err := e2.GetString("greeting")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hi", s)

	n, ok, err := e2.GetInt64("count")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(7), n)
}

func TestExternalValueSpillAboveInternalLimit(t *testing.T) {
	e := openTest(t, Options{InternalLimit: 8})

	big := make([]byte, 64)
	for i := range big {
		big[i] = byte(i)
	}

	require.NoError(t, e.PutBytes("big", big))

	en := e.index["big"]
	require.True(t, en.External, "value above InternalLimit must spill to a sidecar file")

	got, ok, err := e.GetBytes("big")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big, got)
}

func TestCompactNowShrinksInvalidBytes(t *testing.T) {
	e := openTest(t, Options{})

	for i := 0; i < 50; i++ {
		require.NoError(t, e.PutString("churn", "012345678901234567890123456789"))
		require.NoError(t, e.Remove("churn"))
	}

	require.NoError(t, e.PutString("survivor", "kept"))

	require.NoError(t, e.CompactNow())

	stat := e.Stat()
	require.Equal(t, 0, stat.InvalidBytes)
	require.Equal(t, 0, stat.InvalidRanges)
	require.Equal(t, 1, stat.LiveKeys)

	v, ok, err := e.GetString("survivor")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "kept", v)
}

func TestPutInvalidArgumentRejectsEmptyKey(t *testing.T) {
	e := openTest(t, Options{})

	err := e.PutString("", "x")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDualFileRecoversFromCorruptA(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(Options{Dir: dir, Name: "store", Mode: ModeDualFile})
	require.NoError(t, err)

	require.NoError(t, e1.PutString("greeting", "hi"))
	require.NoError(t, e1.PutInt64("count", 7))
	require.NoError(t, e1.Close())

	corruptChecksum(t, pathA(dir, "store"))

	e2, err := Open(Options{Dir: dir, Name: "store", Mode: ModeDualFile})
	require.NoError(t, err)

	t.Cleanup(func() { _ = e2.Close() })

	s, ok, err := e2.GetString("greeting")
	require.NoError(t, err)
	require.True(t, ok, "B's intact image must be the one recovery adopts")
	require.Equal(t, "hi", s)

	n, ok, err := e2.GetInt64("count")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(7), n)

	require.NoError(t, e2.Close())

	// B was authoritative: A must now have been overwritten with B's good
	// bytes, not the reverse.
	aBytes, err := os.ReadFile(pathA(dir, "store"))
	require.NoError(t, err)

	bBytes, err := os.ReadFile(pathB(dir, "store"))
	require.NoError(t, err)

	require.Equal(t, bBytes, aBytes, "A must be resynced from B, not B corrupted from A")
}

func TestDualFileRecoversFromCorruptB(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(Options{Dir: dir, Name: "store", Mode: ModeDualFile})
	require.NoError(t, err)

	require.NoError(t, e1.PutString("greeting", "hi"))
	require.NoError(t, e1.Close())

	corruptChecksum(t, pathB(dir, "store"))

	e2, err := Open(Options{Dir: dir, Name: "store", Mode: ModeDualFile})
	require.NoError(t, err)

	t.Cleanup(func() { _ = e2.Close() })

	s, ok, err := e2.GetString("greeting")
	require.NoError(t, err)
	require.True(t, ok, "A's intact image must be the one recovery adopts")
	require.Equal(t, "hi", s)
}

func corruptChecksum(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), HeaderSize)

	data[4] ^= 0xFF

	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestPutVariableTypeChangeSameSizeSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	e1, err := Open(Options{Dir: dir, Name: "store"})
	require.NoError(t, err)

	require.NoError(t, e1.PutString("k", "AB"))
	require.NoError(t, e1.PutBytes("k", []byte{'A', 'B'}))

	by, ok, err := e1.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{'A', 'B'}, by)

	require.NoError(t, e1.Close())

	e2, err := Open(Options{Dir: dir, Name: "store"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = e2.Close() })

	by2, ok, err := e2.GetBytes("k")
	require.NoError(t, err)
	require.True(t, ok, "reopen must recover the ARRAY type, not the stale STRING info byte")
	require.Equal(t, []byte{'A', 'B'}, by2)

	_, ok, err = e2.GetString("k")
	require.NoError(t, err)
	require.False(t, ok, "the record must no longer decode as STRING after the type change")
}

func TestClosedEngineRejectsOperations(t *testing.T) {
	e := openTest(t, Options{})
	require.NoError(t, e.Close())

	err := e.PutString("k", "v")
	require.ErrorIs(t, err, ErrClosed)
}
