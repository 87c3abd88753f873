package udf

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T, dir string) *Image {
	t.Helper()
	opts := DefaultOptions()
	opts.VolumeLabel = "TESTVOL"
	builder := NewBuilder(opts)
	img, err := builder.Build(context.Background(), dir, filepath.Join(t.TempDir(), "out.iso"))
	require.NoError(t, err)
	return img
}

// S1: an empty source directory produces recognition sectors, a VDS,
// an LVID, an anchor, and a 40-byte root directory body (one parent
// FID), terminating before sector 300.
func TestScenarioS1EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	img := buildFixture(t, dir)

	require.Equal(t, 0, img.Tree.FileCount())
	require.Less(t, img.HighestEnd, uint32(300))

	rootExt := findExtent(t, img, img.PartitionStart+3)
	gap, ok := img.SingleSectorGaps[rootExt.Start]
	require.True(t, ok)
	require.Equal(t, fidSize(0), gap.End)
}

// S2: a single 3-byte file "A" containing "abc" embeds inside its
// File Entry; no separate content extent is allocated, and the root
// directory body is exactly one parent FID plus one child FID.
func TestScenarioS2SingleEmbeddedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A"), []byte("abc"), 0o644))
	img := buildFixture(t, dir)

	require.Equal(t, 1, img.Tree.FileCount())
	fileID := img.Tree.Order[0]
	require.Equal(t, "A", img.Tree.Nodes[fileID].Name)

	_, hasContentExtent := img.ContentRange[fileID]
	require.False(t, hasContentExtent, "a 3-byte file must embed, not get a separate content extent")

	rootExt := findExtent(t, img, img.PartitionStart+3)
	gap, ok := img.SingleSectorGaps[rootExt.Start]
	require.True(t, ok)
	wantLen := fidSize(0) + fidSize(2) // parent + "A" (marker + 1 char)
	require.Equal(t, wantLen, gap.End)

	feSector := img.FELocation[fileID]
	feExt := findExtent(t, img, feSector)
	// FileEntry tag(16) + fixed body(160), then embedded "abc" at offset 176.
	require.Equal(t, "abc", string(feExt.Content[tagSize+feBodySize:tagSize+feBodySize+3]))
}

// S3: a 4096-byte file of zeros gets an external 2-sector extent.
func TestScenarioS3ExternalZeroFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zeros.bin"), make([]byte, 4096), 0o644))
	img := buildFixture(t, dir)

	fileID := img.Tree.Order[0]
	r, ok := img.ContentRange[fileID]
	require.True(t, ok)
	require.EqualValues(t, 2, r[1]-r[0])
}

// S6: two files "a" (foo) and "b" (bar) produce a hash sidecar with
// the expected MD5 digests.
func TestScenarioS6TwoFilesHashes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("foo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("bar"), 0o644))
	img := buildFixture(t, dir)
	require.Equal(t, 2, img.Tree.FileCount())

	var buf countingWriter
	result, err := Write(&buf, img, true, nil)
	require.NoError(t, err)
	require.Len(t, result.FileDigests, 2)

	for _, id := range img.Tree.Order {
		node := img.Tree.Nodes[id]
		want := md5.Sum([]byte(map[string]string{"a": "foo", "b": "bar"}[node.Name]))
		got := result.FileDigests[id]
		require.Equal(t, hex.EncodeToString(want[:]), hex.EncodeToString(got.MD5[:]), "MD5 for %q", node.Name)
	}
}

func findExtent(t *testing.T, img *Image, sector uint32) *OutputExtent {
	t.Helper()
	for _, e := range img.Extents.All() {
		if e.Start == sector {
			return e
		}
	}
	t.Fatalf("no extent found starting at sector %d", sector)
	return nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
