package udf

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
)

// FileDigest carries the three digests this tool computes for a single
// file's content bytes (padding excluded).
type FileDigest struct {
	MD5    [md5.Size]byte
	SHA1   [sha1.Size]byte
	SHA256 [sha256.Size]byte
}

// WriteResult is returned by Write: the whole-image digests plus, when
// Write was called with needHashes, one FileDigest per file FileNode id.
type WriteResult struct {
	TotalSectors uint32
	ImageMD5     [md5.Size]byte
	ImageSHA1    [sha1.Size]byte
	ImageSHA256  [sha256.Size]byte
	FileDigests  map[uint64]FileDigest
}

// multiHash bundles the three whole-image hashers so the writer can
// feed every emitted sector through all of them in one call.
type multiHash struct {
	md5, sha1, sha256 hash.Hash
}

func newMultiHash() *multiHash {
	return &multiHash{md5: md5.New(), sha1: sha1.New(), sha256: sha256.New()}
}

func (m *multiHash) Write(p []byte) {
	m.md5.Write(p)
	m.sha1.Write(p)
	m.sha256.Write(p)
}

// Write streams img to w, walking the extent map in ascending sector
// order and zero-filling every gap in between. needHashes controls
// whether per-file digests are computed; whole-image digests are
// always computed since they're nearly free alongside the write.
func Write(w io.Writer, img *Image, needHashes bool, progress ProgressFunc) (*WriteResult, error) {
	zero := make([]byte, SectorSize)
	imgHash := newMultiHash()
	result := &WriteResult{TotalSectors: img.HighestEnd}
	if needHashes {
		result.FileDigests = make(map[uint64]FileDigest)
	}

	var cursor uint32
	emitZero := func(n uint32) error {
		for i := uint32(0); i < n; i++ {
			if _, err := w.Write(zero); err != nil {
				return fmt.Errorf("writing zero sector %d: %w", cursor, err)
			}
			imgHash.Write(zero)
			cursor++
			if progress != nil {
				progress(cursor, img.HighestEnd)
			}
		}
		return nil
	}

	for _, ext := range img.Extents.All() {
		if ext.Start > cursor {
			if err := emitZero(ext.Start - cursor); err != nil {
				return nil, err
			}
		}

		switch {
		case ext.Content != nil:
			if err := writePreRendered(w, imgHash, ext, &cursor, img.HighestEnd, progress); err != nil {
				return nil, err
			}
		case ext.File != nil:
			fileHash := (*multiHash)(nil)
			if needHashes {
				fileHash = newMultiHash()
			}
			if err := writeFileContent(w, imgHash, fileHash, ext, &cursor, img.HighestEnd, progress); err != nil {
				return nil, err
			}
			if needHashes {
				var d FileDigest
				copy(d.MD5[:], fileHash.md5.Sum(nil))
				copy(d.SHA1[:], fileHash.sha1.Sum(nil))
				copy(d.SHA256[:], fileHash.sha256.Sum(nil))
				result.FileDigests[ext.File.ID] = d
			}
		default:
			if err := emitZero(ext.sizeSectors()); err != nil {
				return nil, err
			}
		}
	}

	if cursor < img.HighestEnd {
		if err := emitZero(img.HighestEnd - cursor); err != nil {
			return nil, err
		}
	}

	if needHashes {
		// Embedded files have no content extent: their bytes sit in their
		// File Entry right after the fixed part.
		byStart := make(map[uint32]*OutputExtent)
		for _, ext := range img.Extents.All() {
			byStart[ext.Start] = ext
		}
		for id, node := range img.Tree.Nodes {
			if _, external := img.ContentRange[id]; node.IsDir || external {
				continue
			}
			data := byStart[img.FELocation[id]].Content[tagSize+feBodySize:][:node.Size]
			result.FileDigests[id] = FileDigest{MD5: md5.Sum(data), SHA1: sha1.Sum(data), SHA256: sha256.Sum(data)}
		}
	}

	copy(result.ImageMD5[:], imgHash.md5.Sum(nil))
	copy(result.ImageSHA1[:], imgHash.sha1.Sum(nil))
	copy(result.ImageSHA256[:], imgHash.sha256.Sum(nil))
	return result, nil
}

// writePreRendered emits an extent whose bytes were already built in
// memory (descriptors, directory bodies, embedded file content),
// zero-padding up to the allocated sector count.
func writePreRendered(w io.Writer, imgHash *multiHash, ext *OutputExtent, cursor *uint32, total uint32, progress ProgressFunc) error {
	need := int(ext.sizeSectors()) * SectorSize
	buf := ext.Content
	if len(buf) < need {
		padded := make([]byte, need)
		copy(padded, buf)
		buf = padded
	} else if len(buf) > need {
		buf = buf[:need]
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing extent at sector %d: %w", ext.Start, err)
	}
	imgHash.Write(buf)
	*cursor += ext.sizeSectors()
	if progress != nil {
		progress(*cursor, total)
	}
	return nil
}

// writeFileContent streams a FileNode's host bytes in 2048-byte
// chunks, zero-padding the final chunk. An underrun (the host file is
// shorter than the size recorded at scan time) is a hard failure since
// it would desynchronize the declared InformationLength from the
// bytes actually on disc; an overrun is tolerated, with the recorded
// size remaining authoritative for the allocation.
func writeFileContent(w io.Writer, imgHash, fileHash *multiHash, ext *OutputExtent, cursor *uint32, total uint32, progress ProgressFunc) error {
	f, err := os.Open(ext.File.HostPath)
	if err != nil {
		return fmt.Errorf("opening %q for writing: %w", ext.File.HostPath, err)
	}
	defer f.Close()

	sectors := ext.sizeSectors()
	sparse := ext.sparseRuns
	buf := make([]byte, SectorSize)
	var produced uint64
	for i := uint32(0); i < sectors; i++ {
		if inSparseRun(sparse, i) {
			zero := make([]byte, SectorSize)
			if _, err := w.Write(zero); err != nil {
				return fmt.Errorf("writing sparse sector %d of %q: %w", i, ext.File.HostPath, err)
			}
			imgHash.Write(zero)
			realBytes := uint64(0)
			if produced < ext.File.Size {
				realBytes = min(ext.File.Size-produced, SectorSize)
			}
			if fileHash != nil {
				fileHash.Write(zero[:realBytes])
			}
			produced += realBytes
			if _, err := f.Seek(SectorSize, io.SeekCurrent); err != nil {
				return fmt.Errorf("skipping sparse sector in %q: %w", ext.File.HostPath, err)
			}
			*cursor++
			if progress != nil {
				progress(*cursor, total)
			}
			continue
		}

		n, rerr := io.ReadFull(f, buf)
		if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
			if uint64(produced)+uint64(n) < ext.File.Size {
				return fmt.Errorf("underrun reading %q: expected %d bytes, got fewer", ext.File.HostPath, ext.File.Size)
			}
		} else if rerr != nil {
			return fmt.Errorf("reading %q: %w", ext.File.HostPath, rerr)
		}
		produced += uint64(n)

		chunk := buf
		if n < SectorSize {
			padded := make([]byte, SectorSize)
			copy(padded, buf[:n])
			chunk = padded
		}
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("writing content sector %d of %q: %w", i, ext.File.HostPath, err)
		}
		imgHash.Write(chunk)
		if fileHash != nil {
			fileHash.Write(chunk[:n])
		}
		*cursor++
		if progress != nil {
			progress(*cursor, total)
		}
	}
	return nil
}

func inSparseRun(runs [][2]uint32, relSector uint32) bool {
	for _, r := range runs {
		if relSector >= r[0] && relSector < r[1] {
			return true
		}
	}
	return false
}
