package blobwriter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueuePreservesOrderPerKey(t *testing.T) {
	w := New(nil)

	var order []int

	done := make(chan struct{})

	w.Enqueue("k", func() error {
		order = append(order, 1)
		return nil
	})
	w.Enqueue("k", func() error {
		order = append(order, 2)
		return nil
	})
	w.Enqueue("k", func() error {
		order = append(order, 3)
		close(done)
		return nil
	})

	<-done
	w.Wait("k")

	require.Equal(t, []int{1, 2, 3}, order)
}

func TestEnqueueReportsErrors(t *testing.T) {
	var gotKey string
	var gotErr error

	done := make(chan struct{})

	w := New(func(key string, err error) {
		gotKey, gotErr = key, err
		close(done)
	})

	w.Enqueue("bad", func() error { return assertErr })
	<-done

	require.Equal(t, "bad", gotKey)
	require.ErrorIs(t, gotErr, assertErr)
}

var assertErr = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
