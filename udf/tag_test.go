package udf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealDescriptorRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out := sealDescriptor(42, 99, body)
	require.Len(t, out, tagSize+len(body))

	gotTagID := getU16(out, 0)
	require.EqualValues(t, 42, gotTagID)
	require.EqualValues(t, 2, getU16(out, 2)) // DescriptorVersion
	require.EqualValues(t, 0, out[5])          // reserved
	require.EqualValues(t, 1, getU16(out, 6))  // TagSerialNumber
	require.EqualValues(t, len(body), getU16(out, 10))
	require.EqualValues(t, 99, getU32(out, 12))

	wantCRC := crcITUT(body)
	require.EqualValues(t, wantCRC, getU16(out, 8))

	var sum uint8
	for i := 0; i < 4; i++ {
		sum += out[i]
	}
	for i := 5; i < 16; i++ {
		sum += out[i]
	}
	require.EqualValues(t, sum, out[4])
}

func TestSealDescriptorEmptyBody(t *testing.T) {
	out := sealDescriptor(7, 0, nil)
	require.Len(t, out, tagSize)
	require.EqualValues(t, 0, getU16(out, 10))
}
