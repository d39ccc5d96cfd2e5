package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WizzXu/FastKV/internal/codec"
)

func TestExportImportRoundTripAllTypes(t *testing.T) {
	src := openTest(t, Options{})

	require.NoError(t, src.PutBool("b", true))
	require.NoError(t, src.PutInt32("i", 7))
	require.NoError(t, src.PutFloat32("f", 1.5))
	require.NoError(t, src.PutInt64("l", -100))
	require.NoError(t, src.PutFloat64("d", 2.75))
	require.NoError(t, src.PutString("s", "hello"))
	require.NoError(t, src.PutBytes("a", []byte{9, 8, 7}))
	require.NoError(t, src.PutObject("set", codec.StringSetEncoder{}.Tag(), map[string]struct{}{"x": {}, "y": {}}))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	require.Equal(t, exportMagic, string(buf.Bytes()[:4]))

	dst := openTest(t, Options{})
	require.NoError(t, dst.Import(&buf, false))

	b, ok, err := dst.GetBool("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, b)

	i, ok, err := dst.GetInt32("i")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(7), i)

	f, ok, err := dst.GetFloat32("f")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float32(1.5), f)

	l, ok, err := dst.GetInt64("l")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(-100), l)

	d, ok, err := dst.GetFloat64("d")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2.75, d)

	s, ok, err := dst.GetString("s")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", s)

	a, ok, err := dst.GetBytes("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{9, 8, 7}, a)

	v, ok, err := dst.GetObject("set")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]struct{}{"x": {}, "y": {}}, v)
}

func TestImportSkipsExistingUnlessOverwrite(t *testing.T) {
	src := openTest(t, Options{})
	require.NoError(t, src.PutString("k", "new"))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := openTest(t, Options{})
	require.NoError(t, dst.PutString("k", "original"))

	require.NoError(t, dst.Import(&buf, false))
	s, _, _ := dst.GetString("k")
	require.Equal(t, "original", s)

	buf.Reset()
	require.NoError(t, src.Export(&buf))
	require.NoError(t, dst.Import(&buf, true))
	s, _, _ = dst.GetString("k")
	require.Equal(t, "new", s)
}
