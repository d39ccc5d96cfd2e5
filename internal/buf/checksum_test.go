package buf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumZeroPadsFinalPartialWord(t *testing.T) {
	full := Checksum([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	padded := Checksum([]byte{1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0})
	require.Equal(t, full, padded, "a zero-padded final word of zero bytes contributes nothing")
}

func TestChecksumLinearityUnderInPlaceMutation(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4, 5, 6, 7, 8}
	before := Checksum(payload)

	region := append([]byte(nil), payload[4:8]...)
	oldSum := Checksum(region)

	payload[4] = 0xFF
	payload[5] = 0x01
	newRegion := payload[4:8]
	newSum := Checksum(newRegion)

	after := Checksum(payload)

	require.Equal(t, after, before^ShiftCheckSum(oldSum, 4)^ShiftCheckSum(newSum, 4))
}

func TestShiftCheckSumRotatesByAlignment(t *testing.T) {
	c := Checksum([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.Equal(t, c, ShiftCheckSum(c, 0))
	require.NotEqual(t, c, ShiftCheckSum(c, 3))
}
