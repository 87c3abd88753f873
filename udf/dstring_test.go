package udf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutDStringWithLength(t *testing.T) {
	buf := make([]byte, 32)
	putDStringWithLength(buf, 0, 32, "MYVOLUME")
	require.EqualValues(t, 8, buf[0], "marker byte")
	require.Equal(t, "MYVOLUME", string(buf[1:9]))
	require.EqualValues(t, len("MYVOLUME")+1, buf[31], "stored length byte")
}

func TestPutDStringWithLengthEmpty(t *testing.T) {
	buf := make([]byte, 32)
	putDStringWithLength(buf, 0, 32, "")
	for i, b := range buf {
		require.Zerof(t, b, "byte %d should be zero for an empty d-string", i)
	}
}

func TestPutDStringWithLengthTruncates(t *testing.T) {
	buf := make([]byte, 8)
	long := "0123456789"
	putDStringWithLength(buf, 0, 8, long)
	require.EqualValues(t, 8, buf[0])
	require.Equal(t, long[:6], string(buf[1:7]))
	require.EqualValues(t, 7, buf[7])
}

func TestPutDStringTrailingLength(t *testing.T) {
	buf := make([]byte, 16)
	putDStringTrailingLength(buf, 0, 16, "root")
	require.EqualValues(t, 8, buf[0])
	require.Equal(t, "root", string(buf[1:5]))
	for _, b := range buf[5:] {
		require.Zero(t, b)
	}
}
