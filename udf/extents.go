package udf

import "sort"

// OutputExtent is the unit of sector allocation: a half-open sector
// range [Start, End) that is either pre-rendered Content bytes or a
// reference to a FileNode whose host bytes stream at write time.
// At most one of Content or File is set; the reserved system-area
// extent has neither and is written as zero sectors.
type OutputExtent struct {
	Start, End uint32 // sectors

	Content []byte
	File    *FileNode

	// sparseRuns records zero-sector runs within File's content that
	// were detected by -sparse; the writer emits zero sectors for them
	// without reading the host bytes. Each entry is a
	// [startSector, endSector) range relative to Start.
	sparseRuns [][2]uint32
}

func (e *OutputExtent) sizeSectors() uint32 { return e.End - e.Start }

// ExtentMap is the sorted, disjoint collection of allocated extents.
type ExtentMap struct {
	extents []*OutputExtent // kept sorted by Start
	solid   uint32          // scan-start hint: every sector below this is occupied or already checked
}

// NewExtentMap returns an ExtentMap with the unused system area [0,16)
// already reserved; the volume recognition sequence follows at 16.
func NewExtentMap() *ExtentMap {
	m := &ExtentMap{}
	m.extents = append(m.extents, &OutputExtent{Start: 0, End: SystemAreaSectors})
	m.solid = SystemAreaSectors
	return m
}

// Allocate places a new extent of sizeSectors sectors. If start is
// non-nil, the extent is placed exactly there (explicit placement);
// otherwise first-fit auto-placement is used starting at the solid
// watermark.
func (m *ExtentMap) Allocate(start *uint32, sizeSectors uint32) *OutputExtent {
	var s uint32
	if start != nil {
		s = *start
	} else {
		s = m.findFit(sizeSectors)
	}
	ext := &OutputExtent{Start: s, End: s + sizeSectors}
	m.insert(ext)
	return ext
}

func (m *ExtentMap) insert(ext *OutputExtent) {
	i := sort.Search(len(m.extents), func(i int) bool { return m.extents[i].Start >= ext.Start })
	m.extents = append(m.extents, nil)
	copy(m.extents[i+1:], m.extents[i:])
	m.extents[i] = ext
}

// findFit walks extents in ascending order starting from the first one
// that reaches past the solid watermark, tracking pos as the end of
// the contiguously-occupied region seen so far. The first gap at least
// size sectors wide - including the gap between solid and the next
// extent's Start - wins; if none fits, the allocation goes after the
// last extent.
func (m *ExtentMap) findFit(size uint32) uint32 {
	pos := m.solid
	start := sort.Search(len(m.extents), func(i int) bool { return m.extents[i].End > pos })
	for i := start; i < len(m.extents); i++ {
		e := m.extents[i]
		if e.Start > pos {
			gap := e.Start - pos
			if gap >= size {
				return pos
			}
		}
		if e.End > pos {
			pos = e.End
		}
	}
	return pos
}

// HighestEnd returns the highest End among all allocated extents.
func (m *ExtentMap) HighestEnd() uint32 {
	hi := uint32(0)
	for _, e := range m.extents {
		if e.End > hi {
			hi = e.End
		}
	}
	return hi
}

// All returns extents in ascending Start order.
func (m *ExtentMap) All() []*OutputExtent {
	return m.extents
}
