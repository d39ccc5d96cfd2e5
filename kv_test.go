package fastkv

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	st, err := Open(t.TempDir(), "store", opts...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = st.Close() })

	return st
}

func TestStoreTypedPutGetDefaults(t *testing.T) {
	st := openTestStore(t)

	require.Equal(t, "fallback", st.GetString("missing", "fallback"))

	require.NoError(t, st.PutString("name", "kvlog"))
	require.Equal(t, "kvlog", st.GetString("name", "fallback"))

	require.NoError(t, st.PutInt64("count", 99))
	require.Equal(t, int64(99), st.GetInt64("count", 0))

	require.NoError(t, st.PutBool("flag", true))
	require.True(t, st.GetBool("flag", false))
}

func TestStoreStringSetRoundTrip(t *testing.T) {
	st := openTestStore(t)

	set := map[string]struct{}{"a": {}, "b": {}}
	require.NoError(t, st.PutStringSet("tags", set))

	got := st.GetStringSet("tags", nil)
	require.Equal(t, set, got)
}

func TestStoreRemoveAndClear(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.PutString("a", "1"))
	require.NoError(t, st.PutString("b", "2"))
	require.Equal(t, 2, st.Count())

	require.NoError(t, st.Remove("a"))
	require.False(t, st.Contains("a"))

	require.NoError(t, st.Clear())
	require.Equal(t, 0, st.Count())
}

func TestStorePutAllTypedValues(t *testing.T) {
	st := openTestStore(t)

	err := st.PutAll(map[string]any{
		"s": "hi",
		"n": int64(5),
		"f": 2.5,
		"b": true,
	}, nil)
	require.NoError(t, err)

	require.Equal(t, "hi", st.GetString("s", ""))
	require.Equal(t, int64(5), st.GetInt64("n", 0))
	require.Equal(t, 2.5, st.GetFloat64("f", 0))
	require.True(t, st.GetBool("b", false))
}

func TestStorePutAllUntaggedObjectFails(t *testing.T) {
	st := openTestStore(t)

	err := st.PutAll(map[string]any{"x": struct{ N int }{N: 1}}, nil)
	require.Error(t, err)
}

func TestStoreStatUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := openTestStore(t, WithClock(fixedClock{t: fixed}))

	require.NoError(t, st.PutString("k", "v"))

	stat := st.Stat()
	require.True(t, stat.At.Equal(fixed))
	require.Equal(t, 1, stat.LiveKeys)
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	src := openTestStore(t)

	require.NoError(t, src.PutString("s", "hello"))
	require.NoError(t, src.PutInt64("n", 42))
	require.NoError(t, src.PutBool("b", true))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := openTestStore(t)
	require.NoError(t, dst.Import(&buf, false))

	require.Equal(t, "hello", dst.GetString("s", ""))
	require.Equal(t, int64(42), dst.GetInt64("n", 0))
	require.True(t, dst.GetBool("b", false))
}

func TestStoreImportSkipsExistingUnlessOverwrite(t *testing.T) {
	src := openTestStore(t)
	require.NoError(t, src.PutString("k", "new"))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := openTestStore(t)
	require.NoError(t, dst.PutString("k", "original"))

	require.NoError(t, dst.Import(&buf, false))
	require.Equal(t, "original", dst.GetString("k", ""))

	buf.Reset()
	require.NoError(t, src.Export(&buf))
	require.NoError(t, dst.Import(&buf, true))
	require.Equal(t, "new", dst.GetString("k", ""))
}
