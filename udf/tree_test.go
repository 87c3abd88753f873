package udf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	tree, err := Scan(DefaultOptions().Logger, dir)
	require.NoError(t, err)
	require.Equal(t, 0, tree.FileCount())
	require.Equal(t, 0, tree.DirCount())
	require.Zero(t, tree.TotalSize)
}

func TestScanFlatFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bar"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("foo"), 0o644))

	tree, err := Scan(DefaultOptions().Logger, dir)
	require.NoError(t, err)
	require.Equal(t, 2, tree.FileCount())
	require.EqualValues(t, 6, tree.TotalSize)

	// Scan order must be sorted by name within a directory: "a.txt" before "b.txt".
	require.Equal(t, "a.txt", tree.Nodes[tree.Order[0]].Name)
	require.Equal(t, "b.txt", tree.Nodes[tree.Order[1]].Name)
}

func TestScanNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("xyz"), 0o644))

	tree, err := Scan(DefaultOptions().Logger, dir)
	require.NoError(t, err)
	require.Equal(t, 1, tree.DirCount())
	require.Equal(t, 1, tree.FileCount())

	subID := tree.Order[0]
	require.True(t, tree.Nodes[subID].IsDir)
	require.Len(t, tree.Children[subID], 1)
	require.Equal(t, "inner.txt", tree.Nodes[tree.Children[subID][0]].Name)
}

func TestScanSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("data"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link.txt")))

	tree, err := Scan(DefaultOptions().Logger, dir)
	require.NoError(t, err)
	require.Equal(t, 1, tree.FileCount())
	require.Equal(t, "real.txt", tree.Nodes[tree.Order[0]].Name)
}

func TestFileNodeCharacteristics(t *testing.T) {
	dirNode := &FileNode{IsDir: true}
	require.EqualValues(t, FileCharacteristicDirectory, dirNode.characteristics())

	fileNode := &FileNode{IsDir: false}
	require.Zero(t, fileNode.characteristics())
}
