package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeSortsAndCoalescesAdjacent(t *testing.T) {
	tr := New()
	tr.CountInvalid(0, 1)
	tr.CountInvalid(1, 2)
	tr.CountInvalid(4, 5)
	tr.CountInvalid(3, 4)

	tr.Merge()

	require.Equal(t, []Segment{{Start: 0, End: 2}, {Start: 3, End: 5}}, tr.Segments())
}

func TestMergeIsIdempotent(t *testing.T) {
	tr := New()
	tr.CountInvalid(10, 20)
	tr.CountInvalid(20, 30)
	tr.CountInvalid(50, 60)

	tr.Merge()
	first := append([]Segment(nil), tr.Segments()...)

	tr.Merge()

	require.Equal(t, first, tr.Segments())
}

func TestInvalidBytesTracksRunningTotal(t *testing.T) {
	tr := New()
	tr.CountInvalid(0, 10)
	tr.CountInvalid(20, 25)

	require.Equal(t, 15, tr.InvalidBytes())
	require.Equal(t, 2, tr.Len())
}

func TestShouldGCKeyCountThreshold(t *testing.T) {
	tr := New()
	for i := 0; i < BaseGCKeysThreshold; i++ {
		tr.CountInvalid(i*10, i*10+1)
	}

	require.True(t, tr.ShouldGC(1000))
}

func TestShouldGCByteThresholdScalesWithDataEnd(t *testing.T) {
	tr := New()
	tr.CountInvalid(0, 5000)

	require.True(t, tr.ShouldGC(8000), "5000 invalid bytes exceeds the 4KiB threshold below 16KiB dataEnd")
	require.False(t, New().ShouldGC(8000))
}

func TestResetClearsState(t *testing.T) {
	tr := New()
	tr.CountInvalid(0, 10)
	tr.Reset()

	require.Zero(t, tr.Len())
	require.Zero(t, tr.InvalidBytes())
}
