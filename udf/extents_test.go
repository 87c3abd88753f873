package udf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewExtentMapReservesSystemArea(t *testing.T) {
	m := NewExtentMap()
	all := m.All()
	require.Len(t, all, 1)
	require.EqualValues(t, 0, all[0].Start)
	require.EqualValues(t, SystemAreaSectors, all[0].End)
}

func TestAllocateExplicitPlacement(t *testing.T) {
	m := NewExtentMap()
	sector := uint32(256)
	ext := m.Allocate(&sector, 1)
	require.EqualValues(t, 256, ext.Start)
	require.EqualValues(t, 257, ext.End)
}

func TestAllocateAutoPlacementIsFirstFit(t *testing.T) {
	m := NewExtentMap()
	a := m.Allocate(nil, 4)
	require.EqualValues(t, SystemAreaSectors, a.Start)

	b := m.Allocate(nil, 2)
	require.EqualValues(t, a.End, b.Start)
}

func TestAllocateUsesGapBeforeFarExplicitExtent(t *testing.T) {
	m := NewExtentMap()
	far := uint32(1000)
	m.Allocate(&far, 4) // leaves a large gap between 16 and 1000

	auto := m.Allocate(nil, 2)
	require.EqualValues(t, SystemAreaSectors, auto.Start, "auto-placement must use the gap before the far extent, not skip past it")

	auto2 := m.Allocate(nil, 5)
	require.EqualValues(t, auto.End, auto2.Start, "auto-placement must keep packing the same gap")
}

func TestExtentsStayDisjointAndSorted(t *testing.T) {
	m := NewExtentMap()
	for i := 0; i < 20; i++ {
		m.Allocate(nil, uint32(i%3+1))
	}
	all := m.All()
	for i := 1; i < len(all); i++ {
		require.LessOrEqual(t, all[i-1].End, all[i].Start, "extents must not overlap")
		require.Less(t, all[i-1].Start, all[i].Start, "extents must stay sorted by start")
	}
}

func TestHighestEnd(t *testing.T) {
	m := NewExtentMap()
	m.Allocate(nil, 10)
	require.EqualValues(t, m.All()[len(m.All())-1].End, m.HighestEnd())
}
