package udf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// FileNode represents one scanned inode: a directory or a regular file.
// IDs are assigned in tree-scan order, starting at 1, monotonically
// increasing; siblings under the same parent share a contiguous id run.
type FileNode struct {
	ID       uint64
	ParentID uint64 // 0 for root's direct children
	Name     string

	HostPath   string // absolute path on the host filesystem
	ParentPath string

	Size uint64 // host size in bytes; forced to 0 for directories

	IsDir bool

	// POSIX metadata. Owner/Group are recorded as the UDF "invalid"
	// sentinel on output; Perm defaults to rwxr-xr-x.
	Perm uint16

	AccessTime time.Time
	ChangeTime time.Time
	ModTime    time.Time

	// Digest fields. The image writer does not fill these; it returns
	// per-file digests in WriteResult.FileDigests.
	MD5    [16]byte
	SHA1   [20]byte
	SHA256 [32]byte
}

// characteristics returns the FID FileCharacteristics byte for this node:
// bit 1 set for directories.
func (n *FileNode) characteristics() uint8 {
	if n.IsDir {
		return FileCharacteristicDirectory
	}
	return 0
}

// Tree is the populated result of a scan: every node keyed by id, plus
// the parent -> first-child-id cache and the running content total.
type Tree struct {
	Nodes     map[uint64]*FileNode
	Order     []uint64 // ids in scan order, root's children first
	Children  map[uint64][]uint64
	FirstKid  map[uint64]uint64 // parent id -> lowest child id, only set if it had children
	TotalSize uint64

	nextID uint64
}

// Scan walks root (a directory on the host filesystem) and builds a
// Tree. Unreadable directories and entries whose stat fails are skipped
// with a logged warning and contribute to the returned error as a
// multierror.Error (non-fatal: the scan still completes). Symlinks and
// non-regular, non-directory entries are skipped with a logged warning
// only; they do not contribute to the returned error.
func Scan(log zerolog.Logger, root string) (*Tree, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving source directory: %w", err)
	}

	t := &Tree{
		Nodes:    make(map[uint64]*FileNode),
		Children: make(map[uint64][]uint64),
		FirstKid: make(map[uint64]uint64),
	}

	var warnings *multierror.Error
	type pending struct {
		path     string
		parentID uint64
	}
	queue := []pending{{absRoot, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.path)
		if err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("reading directory %q: %w", cur.path, err))
			log.Warn().Err(err).Str("path", cur.path).Msg("skipping unreadable directory")
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		firstChild := uint64(0)
		for _, ent := range entries {
			name := ent.Name()
			if name == "." || name == ".." {
				continue
			}
			full := filepath.Join(cur.path, name)

			info, err := os.Lstat(full)
			if err != nil {
				warnings = multierror.Append(warnings, fmt.Errorf("stat %q: %w", full, err))
				log.Warn().Err(err).Str("path", full).Msg("skipping entry: stat failed")
				continue
			}

			mode := info.Mode()
			if mode&os.ModeSymlink != 0 {
				log.Warn().Str("path", full).Msg("skipping symbolic link (not supported)")
				continue
			}
			if !mode.IsDir() && !mode.IsRegular() {
				log.Warn().Str("path", full).Msg("skipping non-regular, non-directory entry")
				continue
			}

			t.nextID++
			id := t.nextID
			node := &FileNode{
				ID:         id,
				ParentID:   cur.parentID,
				Name:       name,
				HostPath:   full,
				ParentPath: cur.path,
				IsDir:      mode.IsDir(),
				Perm:       defaultPermissions,
				ModTime:    info.ModTime(),
				AccessTime: info.ModTime(),
				ChangeTime: info.ModTime(),
			}
			if !node.IsDir {
				node.Size = uint64(info.Size())
				t.TotalSize += node.Size
			}

			t.Nodes[id] = node
			t.Order = append(t.Order, id)
			t.Children[cur.parentID] = append(t.Children[cur.parentID], id)
			if firstChild == 0 {
				firstChild = id
			}

			if node.IsDir {
				queue = append(queue, pending{full, id})
			}
		}
		if firstChild != 0 {
			t.FirstKid[cur.parentID] = firstChild
		}
	}

	return t, warnings.ErrorOrNil()
}

// DirCount returns the number of directory nodes in the tree (the root
// itself is not a FileNode and is not counted).
func (t *Tree) DirCount() int {
	n := 0
	for _, node := range t.Nodes {
		if node.IsDir {
			n++
		}
	}
	return n
}

// FileCount returns the number of regular-file nodes in the tree.
func (t *Tree) FileCount() int {
	n := 0
	for _, node := range t.Nodes {
		if !node.IsDir {
			n++
		}
	}
	return n
}
