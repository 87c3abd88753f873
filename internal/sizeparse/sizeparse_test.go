package sizeparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyMeansNoLimit(t *testing.T) {
	n, err := Parse("")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestParseBareNumber(t *testing.T) {
	n, err := Parse("12345")
	require.NoError(t, err)
	require.EqualValues(t, 12345, n)
}

func TestParseSuffixes(t *testing.T) {
	cases := map[string]uint64{
		"1KB": 1024,
		"1MB": 1024 * 1024,
		"1GB": 1024 * 1024 * 1024,
	}
	for in, want := range cases {
		n, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, want, n, in)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-a-size")
	require.Error(t, err)
}
