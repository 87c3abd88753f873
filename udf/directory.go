package udf

import (
	"fmt"
	"os"
	"sort"
)

// roundUp4 rounds n up to the next multiple of 4.
func roundUp4(n int) int {
	return (n + 3) &^ 3
}

func ceilDivU64(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// fidSize returns the byte size of a File Identifier Descriptor whose
// FileIdentifier field is identLen bytes long (0 for the "parent" FID):
// round_up_4(16+2+1+1+16+2+0 + identLen).
func fidSize(identLen int) int {
	return roundUp4(38 + identLen)
}

// feBodySize is the fixed portion of a File Entry body after its tag,
// before Extended Attributes and Allocation Descriptors (ECMA-167
// 4/14.9): tag and fixed body together end at File Entry offset 176.
const feBodySize = 160

// buildFileEntryFixedPart writes the 160-byte fixed portion of a File
// Entry body (everything before File Entry offset 176), leaving
// InformationLength/LogicalBlocksRecorded/LengthOfAllocationDescriptors
// for the caller to fill once the body mode is chosen.
func (b *Builder) buildFileEntryFixedPart(node *FileNode, parentICBLocationPartRel uint32, childDirCount int, uniqueID uint64) []byte {
	body := make([]byte, feBodySize)
	// ICBTag at +0 (20 bytes).
	putU32(body, 0, 0) // PriorRecordedNumberOfDirectEntries
	putU16(body, 4, 4) // StrategyType
	putU16(body, 6, 0) // StrategyParameter
	putU16(body, 8, 1) // MaxEntries
	body[10] = 0        // reserved
	if node.IsDir {
		body[11] = FileTypeDirectory
	} else {
		body[11] = FileTypeRegular
	}
	putU32(body, 12, parentICBLocationPartRel) // ParentICBLocation.LogicalBlockNumber
	putU16(body, 16, 0)                        // ParentICBLocation.PartitionReferenceNumber
	putU16(body, 18, ICBFlagNonRelocShrt)       // ICBTag.Flags (overwritten by caller for embedded files)

	putU32(body, 20, posixOwnerGroupInvalid) // Uid
	putU32(body, 24, posixOwnerGroupInvalid) // Gid
	putU32(body, 28, uint32(node.Perm))      // Permissions
	linkCount := uint16(1)
	if node.IsDir {
		linkCount = uint16(2 + childDirCount)
	}
	putU16(body, 32, linkCount) // FileLinkCount
	body[34] = 0                // RecordFormat
	body[35] = 0                // RecordDisplayAttributes
	putU32(body, 36, 0)         // RecordLength
	// InformationLength at +40 (8), LogicalBlocksRecorded at +48 (8): filled by caller.
	putTimestamp(body, 56, node.AccessTime)
	putTimestamp(body, 68, node.ModTime)
	putTimestamp(body, 80, node.ChangeTime)
	putU32(body, 92, 1) // Checkpoint
	// ExtendedAttributeICB (long_ad) at +96: zero, no EAs.
	putRegid(body, 112, 0, identMkudfiso, nil) // ImplementationIdentifier
	putU64(body, 144, uniqueID)                 // UniqueID
	putU32(body, 152, 0)                        // LengthOfExtendedAttributes
	// LengthOfAllocationDescriptors at +156: filled by caller.
	return body
}

func (b *Builder) childDirCount(parentID uint64) int {
	n := 0
	for _, cid := range b.tree.Children[parentID] {
		if b.tree.Nodes[cid].IsDir {
			n++
		}
	}
	return n
}

// buildFID writes a complete, sealed File Identifier Descriptor.
// name == "" builds the "parent" entry (LengthOfFileIdentifier=0).
func buildFID(location uint32, characteristics uint8, icbLBN uint32, icbLength uint32, name string) []byte {
	var ident []byte
	if name != "" {
		ident = make([]byte, len(name)+1)
		ident[0] = 8 // OSTA compressed Unicode marker
		copy(ident[1:], []byte(name))
	}
	size := fidSize(len(ident))
	body := make([]byte, size-tagSize)
	putU16(body, 0, 0)                       // FileVersionNumber
	body[2] = characteristics                 // FileCharacteristics
	body[3] = byte(len(ident))                // LengthOfFileIdentifier
	putLongAD(body, 4, icbLength, 0, icbLBN)  // ICB
	putU16(body, 20, 0)                       // LengthOfImplementationUse
	copy(body[22:], ident)
	return sealDescriptor(TagIdentityFileIdentifierDescriptor, location, body)
}

// dirBuildResult is what finishing a directory's body produces, needed
// by the caller to patch that directory's own File Entry.
type dirBuildResult struct {
	ext         *OutputExtent
	totalLength int
}

// materializeDirectory builds the directory body for node: one
// "parent" FID plus one FID per child, allocating each
// child's File Entry (and, for external files, its content extent).
// selfFELocation is the absolute sector of node's own File Entry;
// parentFELocation is the absolute sector of the enclosing directory's
// File Entry (node's own sector, for the root).
func (b *Builder) materializeDirectory(nodeID uint64, selfFELocation, parentFELocation uint32) (*dirBuildResult, error) {
	children := append([]uint64(nil), b.tree.Children[nodeID]...)
	sort.Slice(children, func(i, j int) bool {
		return b.tree.Nodes[children[i]].Name < b.tree.Nodes[children[j]].Name
	})

	total := fidSize(0)
	for _, cid := range children {
		total += fidSize(len(b.tree.Nodes[cid].Name) + 1)
	}
	sectors := uint32(ceilDivU64(uint64(total), SectorSize))
	if sectors == 0 {
		sectors = 1
	}
	dirExt := b.em.Allocate(nil, sectors)
	body := make([]byte, sectors*SectorSize)

	selfPartRel := selfFELocation - b.partitionStart
	parentPartRel := parentFELocation - b.partitionStart

	off := 0
	parentFID := buildFID(dirExt.Start, FileCharacteristicParent, parentPartRel, SectorSize, "")
	copy(body[off:], parentFID)
	off += len(parentFID)

	type deferredDir struct {
		node   *FileNode
		feExt  *OutputExtent
		fixed  []byte
	}
	var deferredDirs []deferredDir

	for _, cid := range children {
		child := b.tree.Nodes[cid]
		feExt := b.em.Allocate(nil, 1)
		b.feLocation[child.ID] = feExt.Start

		fixed := b.buildFileEntryFixedPart(child, selfPartRel, b.childDirCount(child.ID), child.ID)

		var (
			informationLength uint64
			blocksRecorded    uint64
			allocBytes        []byte
		)

		switch {
		case child.IsDir:
			deferredDirs = append(deferredDirs, deferredDir{node: child, feExt: feExt, fixed: fixed})
			copy(body[off:], []byte{}) // placeholder, FID appended below regardless
		case child.Size < embeddedThreshold:
			fixed[11] = FileTypeRegular
			putU16(fixed, 18, ICBFlagEmbedded)
			data, err := os.ReadFile(child.HostPath)
			if err != nil {
				return nil, fmt.Errorf("reading embedded file %q: %w", child.HostPath, err)
			}
			if uint64(len(data)) != child.Size {
				return nil, fmt.Errorf("size mismatch for %q: stat %d, read %d", child.HostPath, child.Size, len(data))
			}
			informationLength = child.Size
			blocksRecorded = 0
			allocBytes = data
		default:
			contentSectors := uint32(ceilDivU64(child.Size, SectorSize))
			contentExt := b.em.Allocate(nil, contentSectors)
			b.contentRange[child.ID] = [2]uint32{contentExt.Start, contentExt.End}
			contentExt.File = child
			if b.opts.SparseDetect {
				b.detectSparseRuns(contentExt, child)
			}

			remaining := child.Size
			pos := contentExt.Start - b.partitionStart
			var ads []byte
			for remaining > 0 {
				chunk := remaining
				if chunk > maxExtentLength {
					chunk = maxExtentLength
				}
				ad := make([]byte, 8)
				putShortAD(ad, 0, uint32(chunk), pos, 0)
				ads = append(ads, ad...)
				pos += uint32(ceilDivU64(chunk, SectorSize))
				remaining -= chunk
			}
			informationLength = child.Size
			blocksRecorded = uint64(contentSectors)
			allocBytes = ads
		}

		if !child.IsDir {
			putU64(fixed, 40, informationLength)
			putU64(fixed, 48, blocksRecorded)
			putU32(fixed, 156, uint32(len(allocBytes)))
			feBody := append(fixed, allocBytes...)
			feBytes := sealDescriptor(TagIdentityFileEntry, feExt.Start-b.partitionStart, feBody)
			feExt.Content = feBytes
			b.recordGap(feExt, len(feBytes))
		}

		fid := buildFID(dirExt.Start, child.characteristics(), feExt.Start-b.partitionStart, SectorSize, child.Name)
		copy(body[off:], fid)
		off += len(fid)
	}

	dirExt.Content = body
	b.recordGap(dirExt, total)

	for _, d := range deferredDirs {
		sub, err := b.materializeDirectory(d.node.ID, d.feExt.Start, selfFELocation)
		if err != nil {
			return nil, err
		}
		b.finishDirectoryFE(d.feExt, d.fixed, sub)
	}

	return &dirBuildResult{ext: dirExt, totalLength: total}, nil
}

// finishDirectoryFE patches a directory's File Entry once its body has
// been materialized: InformationLength, LogicalBlocksRecorded, and the
// single short_ad pointing at the directory's content extent, then
// reseals. Applied uniformly to every directory, not just the root, so
// the same two-phase build-then-patch discipline covers both.
func (b *Builder) finishDirectoryFE(feExt *OutputExtent, fixed []byte, sub *dirBuildResult) {
	putU64(fixed, 40, uint64(sub.totalLength))
	putU64(fixed, 48, uint64(sub.ext.sizeSectors()))
	putU32(fixed, 156, 8)
	ad := make([]byte, 8)
	putShortAD(ad, 0, uint32(sub.totalLength), sub.ext.Start-b.partitionStart, 0)
	feBody := append(fixed, ad...)
	feBytes := sealDescriptor(TagIdentityFileEntry, feExt.Start-b.partitionStart, feBody)
	feExt.Content = feBytes
	b.recordGap(feExt, len(feBytes))
}
