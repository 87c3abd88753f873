package udf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReportListsEachFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("foo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("bar"), 0o644))
	img := buildFixture(t, dir)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, img))
	out := buf.String()
	require.Contains(t, out, "a")
	require.Contains(t, out, "b")
	require.Equal(t, 3, len(strings.Split(strings.TrimRight(out, "\n"), "\n")), "header + one line per file")
}

func TestWriteHashesRequiresDigests(t *testing.T) {
	dir := t.TempDir()
	img := buildFixture(t, dir)
	result := &WriteResult{}
	var buf bytes.Buffer
	require.Error(t, WriteHashes(&buf, img, result))
}

func TestWriteGapListReportsGaps(t *testing.T) {
	dir := t.TempDir()
	img := buildFixture(t, dir)

	var buf bytes.Buffer
	require.NoError(t, WriteGapList(&buf, img))
	require.NotEmpty(t, buf.String())
}

func TestAppendReportIntoImage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("foo"), 0o644))

	opts := DefaultOptions()
	opts.VolumeLabel = "TESTVOL"
	opts.AppendReport = true
	builder := NewBuilder(opts)
	img, err := builder.Build(context.Background(), dir, filepath.Join(t.TempDir(), "out.iso"))
	require.NoError(t, err)

	loc := getU32(builder.iuvdContent[tagSize+iuvdReportExtentOffset:], 4)
	require.NotZero(t, loc, "report extent_ad location should be patched in")
	_ = img
}
