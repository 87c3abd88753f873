package udf

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

// WriteReport writes a human-readable per-file listing: a summary
// header line, then one line per file with name, host path, size, and
// inclusive content sector range (embedded files show "embedded@" and
// their File Entry sector instead).
func WriteReport(w io.Writer, img *Image) error {
	_, err := w.Write(renderReport(img))
	return err
}

// renderReport builds the report sidecar's bytes. Shared between the
// external-file sidecar and the optional in-image append path.
func renderReport(img *Image) []byte {
	var buf []byte
	buf = append(buf, []byte(fmt.Sprintf("mkudfiso report: %d files, %d directories, %d sectors\n",
		img.Tree.FileCount(), img.Tree.DirCount(), img.HighestEnd))...)

	for _, id := range orderedFileIDs(img.Tree) {
		node := img.Tree.Nodes[id]
		if r, ok := img.ContentRange[id]; ok {
			buf = append(buf, []byte(fmt.Sprintf("%s\t%s\t%d\t%d-%d\n", node.Name, node.HostPath, node.Size, r[0], r[1]-1))...)
		} else {
			fe := img.FELocation[id]
			buf = append(buf, []byte(fmt.Sprintf("%s\t%s\t%d\tembedded@%d\n", node.Name, node.HostPath, node.Size, fe))...)
		}
	}
	return buf
}

// WriteHashes writes the per-file and whole-image MD5/SHA-1/SHA-256
// digests. result must have been produced with needHashes=true.
func WriteHashes(w io.Writer, img *Image, result *WriteResult) error {
	if result.FileDigests == nil {
		return fmt.Errorf("hash sidecar requested but digests were not computed")
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "image\tmd5=%s\tsha1=%s\tsha256=%s\n",
		hex.EncodeToString(result.ImageMD5[:]), hex.EncodeToString(result.ImageSHA1[:]), hex.EncodeToString(result.ImageSHA256[:]))

	for _, id := range orderedFileIDs(img.Tree) {
		node := img.Tree.Nodes[id]
		d, ok := result.FileDigests[id]
		if !ok {
			continue
		}
		fmt.Fprintf(bw, "%s\tmd5=%s\tsha1=%s\tsha256=%s\n",
			node.Name, hex.EncodeToString(d.MD5[:]), hex.EncodeToString(d.SHA1[:]), hex.EncodeToString(d.SHA256[:]))
	}
	return bw.Flush()
}

// WriteGapList enumerates every unwritten region of the image: whole
// gap sectors between extents ("S" or "S E") and intra-sector padding
// recorded in SingleSectorGaps ("(S,a-b)").
func WriteGapList(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)

	var cursor uint32
	extents := img.Extents.All()
	for _, ext := range extents {
		if ext.Start > cursor {
			writeGapRun(bw, cursor, ext.Start-1)
		}
		if g, ok := img.SingleSectorGaps[ext.Start]; ok && g.End < SectorSize {
			fmt.Fprintf(bw, "(%d,%d-%d)\n", ext.Start, g.End, SectorSize-1)
		}
		cursor = ext.End
	}
	if cursor < img.HighestEnd {
		writeGapRun(bw, cursor, img.HighestEnd-1)
	}
	return bw.Flush()
}

func writeGapRun(bw *bufio.Writer, start, end uint32) {
	if start == end {
		fmt.Fprintf(bw, "%d\n", start)
	} else {
		fmt.Fprintf(bw, "%d %d\n", start, end)
	}
}

// orderedFileIDs returns every non-directory FileNode id in scan
// order, for deterministic sidecar output.
func orderedFileIDs(t *Tree) []uint64 {
	ids := make([]uint64, 0, len(t.Order))
	for _, id := range t.Order {
		if !t.Nodes[id].IsDir {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
