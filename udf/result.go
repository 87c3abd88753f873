package udf

import "time"

// GapRange records, for one sector, the byte range [Start,End) within
// that sector that actually holds data; bytes End..2048 are zero
// padding. Sectors with no entry here are either fully occupied or
// fully gap (tracked separately via the extent map's own disjointness).
type GapRange struct {
	Start, End int
}

// Image is the fully-built, not-yet-written representation of a UDF
// image: the populated extent map plus the bookkeeping the writer and
// sidecar generator need.
type Image struct {
	Tree           *Tree
	Extents        *ExtentMap
	PartitionStart uint32
	HighestEnd     uint32
	RecordTime     time.Time

	// SingleSectorGaps maps a sector number to the byte range within it
	// that holds real content; the rest of the sector is zero padding.
	// Only sectors whose content is shorter than SectorSize appear here.
	SingleSectorGaps map[uint32]GapRange

	// FELocation maps a FileNode id to the absolute sector of its File
	// Entry, for sidecar reporting.
	FELocation map[uint64]uint32

	// ContentRange maps a FileNode id (files only) to the [start,end)
	// sector range of its content extent; absent for embedded files and
	// directories.
	ContentRange map[uint64][2]uint32

	RootFileEntrySector uint32
}
