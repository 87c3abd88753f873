package udf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Builder runs the A-H pipeline over a scanned tree and produces an
// Image ready for Component G to stream. One Builder builds exactly one
// image; it is not reusable across calls to Build.
type Builder struct {
	opts Options
	tree *Tree
	em   *ExtentMap

	partitionStart uint32
	recordTime     time.Time

	gaps         map[uint32]GapRange
	feLocation   map[uint64]uint32
	contentRange map[uint64][2]uint32

	pdContent                   []byte // alias into the VDS extent's Content for the PD's sector
	pdSector                    uint32
	pdPartitionLengthBodyOffset int
	lvidExtent                  *OutputExtent
	lvidPartitionSizeBodyOffset int

	iuvdContent []byte // alias into the VDS extent's Content for the IUVD's sector
	iuvdSector  uint32
}

// NewBuilder constructs a Builder from opts. Call Build to run the full
// pipeline.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:         opts,
		gaps:         make(map[uint32]GapRange),
		feLocation:   make(map[uint64]uint32),
		contentRange: make(map[uint64][2]uint32),
	}
}

// Build runs the full build orchestration: CRC self-test, scan,
// size-limit check, descriptor build, partition-length patch. It does
// not write any bytes to disk; call Write (component G) on the result.
func (b *Builder) Build(ctx context.Context, sourceDir, outputPath string) (*Image, error) {
	if !selfTestCRC() {
		return nil, fmt.Errorf("internal error: OSTA CRC self-test failed")
	}

	tree, scanErr := Scan(b.opts.Logger, sourceDir)
	if tree == nil {
		return nil, fmt.Errorf("scanning %q: %w", sourceDir, scanErr)
	}
	b.tree = tree
	if scanErr != nil {
		if me, ok := scanErr.(*multierror.Error); ok {
			b.opts.Logger.Warn().Int("count", me.Len()).Msg("scan completed with warnings")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if b.opts.SizeLimit > 0 && tree.TotalSize > b.opts.SizeLimit {
		return nil, fmt.Errorf("content size %d exceeds limit %d", tree.TotalSize, b.opts.SizeLimit)
	}

	b.recordTime = time.Now().UTC()
	b.em = NewExtentMap()

	volumeLabel := b.opts.VolumeLabel
	if volumeLabel == "" {
		volumeLabel = deriveVolumeLabel(outputPath)
	}
	volumeSetID := b.opts.VolumeSetIdentifier

	b.buildVolumeRecognitionArea()
	b.buildBraggingRights(sourceDir, outputPath)
	vdsStart := b.buildVolumeDescriptorSequence(volumeLabel, volumeSetID)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.buildLogicalVolumeIntegrityDescriptor(uint32(tree.FileCount()), uint32(tree.DirCount()+1))
	b.buildAnchor(vdsStart)

	// PartitionStart sits past the VDS extent (6 sectors) and the LVID extent (2 sectors).
	b.partitionStart = vdsStart + VDSExtentSectors + LVIDExtentSectors
	rootFileSet := b.partitionStart
	rootTerm := b.partitionStart + 1
	rootFileEntry := b.partitionStart + 2
	rootDirectory := b.partitionStart + 3

	fsExt := &OutputExtent{Start: rootFileSet, End: rootFileSet + 1}
	b.em.insert(fsExt)
	fsExt.Content = b.buildFileSetDescriptor(volumeLabel, rootFileEntry)
	b.recordGap(fsExt, len(fsExt.Content))

	termExt := &OutputExtent{Start: rootTerm, End: rootTerm + 1}
	b.em.insert(termExt)
	termExt.Content = sealDescriptor(TagIdentityTerminatingDescriptor, 0, nil)
	b.recordGap(termExt, len(termExt.Content))

	rootFEExt := &OutputExtent{Start: rootFileEntry, End: rootFileEntry + 1}
	b.em.insert(rootFEExt)
	// Move the first-fit watermark to rootDirectory so that the first
	// allocation made by materializeDirectory below (the root directory
	// body) lands exactly there; the root FE is built once that body
	// is known.
	b.em.solid = rootDirectory

	rootNode := &FileNode{ID: 0, IsDir: true, Perm: defaultPermissions, ModTime: b.recordTime, AccessTime: b.recordTime, ChangeTime: b.recordTime}
	rootFixed := b.buildFileEntryFixedPart(rootNode, rootFileEntry-b.partitionStart, b.childDirCount(0), 0)
	b.feLocation[0] = rootFileEntry

	sub, err := b.materializeDirectory(0, rootFileEntry, rootFileEntry)
	if err != nil {
		return nil, fmt.Errorf("materializing root directory: %w", err)
	}
	if sub.ext.Start != rootDirectory {
		return nil, fmt.Errorf("internal error: root directory allocated at %d, expected %d", sub.ext.Start, rootDirectory)
	}

	b.finishDirectoryFE(rootFEExt, rootFixed, sub)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := &Image{
		Tree:                tree,
		Extents:             b.em,
		PartitionStart:      b.partitionStart,
		HighestEnd:          b.em.HighestEnd(),
		RecordTime:          b.recordTime,
		SingleSectorGaps:    b.gaps,
		FELocation:          b.feLocation,
		ContentRange:        b.contentRange,
		RootFileEntrySector: rootFileEntry,
	}

	if b.opts.AppendReport {
		b.appendReportIntoImage(img)
	}

	highestEnd := b.em.HighestEnd()
	img.HighestEnd = highestEnd
	b.patchPartitionLength(highestEnd)

	return img, nil
}

// appendReportIntoImage renders the report sidecar and, if it fits
// within SizeLimit, allocates an extent for it past the current
// layout and patches the Implementation Use Volume Descriptor's report
// extent_ad to reference it. Suppressed with a logged warning if the
// image would exceed SizeLimit, per the capacity-error handling policy:
// the image content itself is unaffected either way.
func (b *Builder) appendReportIntoImage(img *Image) {
	report := renderReport(img)
	sectors := uint32(ceilDivU64(uint64(len(report)), SectorSize))
	if sectors == 0 {
		sectors = 1
	}

	if b.opts.SizeLimit > 0 {
		projected := uint64(b.em.HighestEnd()+sectors) * SectorSize
		if projected > b.opts.SizeLimit {
			b.opts.Logger.Warn().
				Uint64("limit", b.opts.SizeLimit).
				Msg("report sidecar would exceed size limit, suppressing in-image append")
			return
		}
	}

	ext := b.em.Allocate(nil, sectors)
	content := make([]byte, sectors*SectorSize)
	copy(content, report)
	ext.Content = content
	b.recordGap(ext, len(report))

	iuvdBody := b.iuvdContent[tagSize : tagSize+int(getU16(b.iuvdContent, 10))]
	putExtentAD(iuvdBody, iuvdReportExtentOffset, uint32(len(report)), ext.Start)
	sealTag(b.iuvdContent[:tagSize], TagIdentityImplementationUseVolumeDesc, b.iuvdSector, iuvdBody)
}

// patchPartitionLength rewrites the Partition Descriptor's
// PartitionLength field to highestEnd - partitionStart and reseals it,
// once the final layout is known.
func (b *Builder) patchPartitionLength(highestEnd uint32) {
	length := highestEnd - b.partitionStart
	tagBody := b.pdContent[tagSize : tagSize+int(getU16(b.pdContent, 10))]
	putU32(tagBody, b.pdPartitionLengthBodyOffset, length)
	sealTag(b.pdContent[:tagSize], TagIdentityPartitionDescriptor, b.pdSector, tagBody)

	// Mirror the size into the LVID's partition size table so the two
	// stay consistent (the original's field is a placeholder the
	// source never patches; this implementation closes it).
	lvidBody := b.lvidExtent.Content[tagSize : tagSize+int(getU16(b.lvidExtent.Content, 10))]
	putU32(lvidBody, b.lvidPartitionSizeBodyOffset, length)
	sealTag(b.lvidExtent.Content[:tagSize], TagIdentityLogicalVolumeIntegrityDesc, b.lvidExtent.Start, lvidBody)
}

func (b *Builder) buildFileSetDescriptor(volumeLabel string, rootFileEntry uint32) []byte {
	body := make([]byte, 512-tagSize)
	putTimestamp(body, 0, b.recordTime)
	putU16(body, 12, 3) // InterchangeLevel
	putU16(body, 14, 3) // MaximumInterchangeLevel
	putU32(body, 16, 1) // CharacterSetList
	putU32(body, 20, 1) // MaximumCharacterSetList
	putU32(body, 24, 0) // FileSetNumber
	putU32(body, 28, 0) // FileSetDescriptorNumber
	putCharspec(body, 32)
	putDStringWithLength(body, 96, 128, volumeLabel) // LogicalVolumeIdentifier
	putCharspec(body, 224)
	putDStringWithLength(body, 288, 32, volumeLabel) // FileSetIdentifier
	// CopyrightFileIdentifier[32] at +320, AbstractFileIdentifier[32] at +352: left empty.
	putLongAD(body, 384, SectorSize, 0, rootFileEntry-b.partitionStart) // RootDirectoryICB
	putRegid(body, 400, 0, identUDFCompliant, []byte{0x02, 0x01, 0x03}) // DomainIdentifier
	// NextExtent (long_ad) at +432: zero, single file set.
	// bytes 480..511 reserved, already zero.
	return sealDescriptor(TagIdentityFileSetDescriptor, 0, body[:480])
}

// deriveVolumeLabel falls back to the basename of the output file,
// extension stripped, truncated to 32 bytes.
func deriveVolumeLabel(outputPath string) string {
	if outputPath == "" || outputPath == "-" {
		return "MKUDFISO"
	}
	base := filepath.Base(outputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if len(base) > 32 {
		base = base[:32]
	}
	return base
}

// detectSparseRuns scans a file's content for whole-sector all-zero
// runs (the -sparse feature) and records them so the writer can emit
// zero sectors for them without reading the host bytes. Detection is
// best effort: if the file cannot be opened no runs are recorded, and a
// read error ends the scan, keeping the runs found up to that point.
func (b *Builder) detectSparseRuns(ext *OutputExtent, node *FileNode) {
	f, err := os.Open(node.HostPath)
	if err != nil {
		return
	}
	defer f.Close()

	const minRunSectors = 16 // only bother for runs of at least 32KB
	buf := make([]byte, SectorSize)
	sector := ext.Start
	runStart := uint32(0)
	runLen := uint32(0)
	flush := func() {
		if runLen >= minRunSectors {
			ext.sparseRuns = append(ext.sparseRuns, [2]uint32{runStart - ext.Start, runStart - ext.Start + runLen})
		}
		runLen = 0
	}
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if isAllZero(buf[:n]) {
				if runLen == 0 {
					runStart = sector
				}
				runLen++
			} else {
				flush()
			}
			sector++
		}
		if rerr != nil {
			break
		}
	}
	flush()
	if len(ext.sparseRuns) > 0 {
		b.opts.Logger.Debug().Str("path", node.HostPath).Int("runs", len(ext.sparseRuns)).Msg("sparse runs detected")
	}
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
