package udf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundUp4(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 2: 4, 3: 4, 4: 4, 5: 8, 38: 40, 39: 40, 40: 40, 41: 44}
	for in, want := range cases {
		require.Equal(t, want, roundUp4(in), "roundUp4(%d)", in)
	}
}

func TestFidSizeParentEntry(t *testing.T) {
	require.Equal(t, 40, fidSize(0))
}

func TestFidSizeSingleCharName(t *testing.T) {
	// "A" packs to a 2-byte FileIdentifier (marker + 1 char).
	require.Equal(t, 40, fidSize(2))
}

func TestFidSizeLongerName(t *testing.T) {
	name := "somewhatlongername.txt"
	require.Equal(t, roundUp4(38+len(name)+1), fidSize(len(name)+1))
}

func TestBuildFIDParentEntry(t *testing.T) {
	fid := buildFID(10, FileCharacteristicParent, 5, SectorSize, "")
	require.Len(t, fid, fidSize(0))
	require.EqualValues(t, FileCharacteristicParent, fid[tagSize+2])
	require.EqualValues(t, 0, fid[tagSize+3])
}

func TestBuildFIDWithName(t *testing.T) {
	fid := buildFID(10, 0, 7, SectorSize, "A")
	require.Len(t, fid, fidSize(2))
	require.EqualValues(t, 2, fid[tagSize+3], "LengthOfFileIdentifier")
	require.EqualValues(t, 8, fid[tagSize+22], "OSTA compressed Unicode marker")
	require.Equal(t, "A", string(fid[tagSize+23:tagSize+24]))
}

func TestChildDirCount(t *testing.T) {
	b := &Builder{tree: &Tree{
		Children: map[uint64][]uint64{0: {1, 2, 3}},
		Nodes: map[uint64]*FileNode{
			1: {ID: 1, IsDir: true},
			2: {ID: 2, IsDir: false},
			3: {ID: 3, IsDir: true},
		},
	}}
	require.Equal(t, 2, b.childDirCount(0))
}
