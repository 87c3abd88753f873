package udf

import (
	"fmt"
	"time"
)

// buildVolumeRecognitionArea writes the three fixed 32-byte volume
// recognition descriptors at sectors 16, 17, 18. These are ECMA-167
// standard identifier descriptors, not tagged descriptors.
func (b *Builder) buildVolumeRecognitionArea() {
	writeVRS := func(sector uint32, id string) {
		body := make([]byte, SectorSize)
		body[0] = 0 // StructureType
		copy(body[1:6], []byte(id))
		body[6] = 1 // StructureVersion
		start := sector
		b.em.insert(&OutputExtent{Start: start, End: start + 1, Content: body[:32]})
	}
	writeVRS(SectorVRS_BEA01, "BEA01")
	writeVRS(SectorVRS_NSR02, "NSR02")
	writeVRS(SectorVRS_TEA01, "TEA01")
}

// buildBraggingRights writes the optional free-form tool-identification
// descriptor announcing the tool and the source/output paths used.
func (b *Builder) buildBraggingRights(sourceDir, outputPath string) {
	text := fmt.Sprintf("mkudfiso UDF authoring tool. %q -> %q on %s\n",
		sourceDir, outputPath, b.recordTime.Format(time.RFC3339))
	if len(text) > SectorSize {
		text = text[:SectorSize]
	}
	ext := b.em.Allocate(nil, 1)
	ext.Content = []byte(text)
	b.recordGap(ext, len(ext.Content))
}

// recordGap records the single-sector gap for an extent whose content
// is shorter than its allocated size. Only meaningful for single-sector
// extents with pre-rendered content;
// multi-sector extents are handled sector-by-sector by the writer.
func (b *Builder) recordGap(ext *OutputExtent, contentLen int) {
	if ext.sizeSectors() != 1 {
		return
	}
	if contentLen >= SectorSize {
		return
	}
	b.gaps[ext.Start] = GapRange{Start: 0, End: contentLen}
}

// buildVolumeDescriptorSequence builds the 6-sector VDS extent: PVD,
// IUVD, PD, LVD, USD, TD, each its own sector, each sealed
// independently with TagLocation = its own absolute sector.
func (b *Builder) buildVolumeDescriptorSequence(volumeLabel, volumeSetID string) (vdsStart uint32) {
	ext := b.em.Allocate(nil, VDSExtentSectors)
	vdsStart = ext.Start
	content := make([]byte, VDSExtentSectors*SectorSize)

	pvdSector := vdsStart + 0
	iuvdSector := vdsStart + 1
	pdSector := vdsStart + 2
	lvdSector := vdsStart + 3
	usdSector := vdsStart + 4
	tdSector := vdsStart + 5

	pvd := b.buildPrimaryVolumeDescriptor(pvdSector, volumeLabel, volumeSetID)
	copy(content[0*SectorSize:], pvd)

	iuvd := b.buildImplementationUseVolumeDescriptor(iuvdSector, volumeLabel)
	copy(content[1*SectorSize:], iuvd)
	b.iuvdContent = content[1*SectorSize : 2*SectorSize]
	b.iuvdSector = iuvdSector

	// Partition descriptor references partitionStart, which sits past
	// this VDS extent and the LVID extent.
	b.partitionStart = vdsStart + VDSExtentSectors + LVIDExtentSectors
	pd := b.buildPartitionDescriptor(pdSector)
	copy(content[2*SectorSize:], pd)

	lvd := b.buildLogicalVolumeDescriptor(lvdSector, volumeLabel)
	copy(content[3*SectorSize:], lvd)

	usd := sealDescriptor(TagIdentityUnallocatedSpaceDescriptor, usdSector, make([]byte, 8))
	copy(content[4*SectorSize:], usd)

	td := sealDescriptor(TagIdentityTerminatingDescriptor, tdSector, nil)
	copy(content[5*SectorSize:], td)

	ext.Content = content
	// Alias into the same backing array so later patch-ups (partition
	// length) mutate the bytes that actually get written.
	b.pdContent = content[2*SectorSize : 3*SectorSize]
	b.pdSector = pdSector
	return vdsStart
}

func (b *Builder) buildPrimaryVolumeDescriptor(sector uint32, volumeLabel, volumeSetID string) []byte {
	body := make([]byte, 512-tagSize)
	putU32(body, 0, 0)  // VolumeDescriptorSequenceNumber
	putU32(body, 4, 1)  // PrimaryVolumeDescriptorNumber
	putDStringWithLength(body, 8, 32, volumeLabel)
	putU16(body, 40, 1) // VolumeSequenceNumber
	putU16(body, 42, 1) // MaximumVolumeSequenceNumber
	putU16(body, 44, 3) // InterchangeLevel
	putU16(body, 46, 3) // MaximumInterchangeLevel
	putU32(body, 48, 1) // CharacterSetList
	putU32(body, 52, 1) // MaximumCharacterSetList
	putDStringWithLength(body, 56, 128, volumeSetID)
	putCharspec(body, 184) // DescriptorCharacterSet
	putCharspec(body, 248) // ExplanatoryCharacterSet
	putExtentAD(body, 312, 0, 0) // VolumeAbstract
	putExtentAD(body, 320, 0, 0) // VolumeCopyrightNoticeExtent
	putRegid(body, 328, 0, identMkudfiso, nil) // ApplicationIdentifier
	putTimestamp(body, 360, b.recordTime)
	putRegid(body, 372, 0, identMkudfiso, nil) // ImplementationIdentifier
	// ImplementationUse[64] at 404 left zero
	putU32(body, 468, 0) // PredecessorVolumeDescriptorSequenceLocation
	putU16(body, 472, 0) // Flags
	return sealDescriptor(TagIdentityPrimaryVolumeDescriptor, sector, body)
}

func (b *Builder) buildImplementationUseVolumeDescriptor(sector uint32, volumeLabel string) []byte {
	body := make([]byte, 512-tagSize)
	putU32(body, 0, 1) // VolumeDescriptorSequenceNumber
	putRegid(body, 4, 0, identUDFLVInfo, []byte{0x02, 0x01, 0x05}) // ImplementationIdentifier
	// ImplementationUse area starts at +36 (body offset), LV Info
	// Char Set at +36, LV label d-string at +36+64=100 (80 bytes
	// before the docstring per UDF 2.2.10, body offset 100 once the
	// 16-byte tag is excluded from the absolute offset 116).
	putCharspec(body, 36)
	putDStringWithLength(body, 100, 128, volumeLabel)
	// Report sidecar extent_ad, zero until/unless appendReportToImage
	// patches it in after the report is rendered.
	putExtentAD(body, iuvdReportExtentOffset, 0, 0)
	return sealDescriptor(TagIdentityImplementationUseVolumeDesc, sector, body)
}

func (b *Builder) buildPartitionDescriptor(sector uint32) []byte {
	body := make([]byte, 512-tagSize)
	putU32(body, 0, 2) // VolumeDescriptorSequenceNumber
	putU16(body, 4, 1) // PartitionFlags
	putU16(body, 6, 0) // PartitionNumber
	putRegid(body, 8, 0, identNSR02, nil) // PartitionContents
	// PartitionContentsUse[128] at +40 left zero
	putU32(body, 168, 1)                 // AccessType (read-only)
	putU32(body, 172, b.partitionStart)  // PartitionStartingLocation
	putU32(body, 176, 0x7FFFFFFF)        // PartitionLength, placeholder
	putRegid(body, 180, 0, identMkudfiso, nil) // ImplementationIdentifier
	b.pdPartitionLengthBodyOffset = 176
	return sealDescriptor(TagIdentityPartitionDescriptor, sector, body)
}

func (b *Builder) buildLogicalVolumeDescriptor(sector uint32, volumeLabel string) []byte {
	body := make([]byte, 512-tagSize)
	putU32(body, 0, 3) // VolumeDescriptorSequenceNumber
	putCharspec(body, 4)
	putDStringWithLength(body, 68, 128, volumeLabel)
	putU32(body, 196, SectorSize) // LogicalBlockSize
	putRegid(body, 200, 0, identUDFCompliant, []byte{0x02, 0x01, 0x03}) // DomainIdentifier
	// LogicalVolumeContentsUse (long_ad) at +232: points at the File
	// Set Descriptor. Location is not yet known at VDS build time; the
	// partition hasn't been established, so this is filled with just
	// the extent length (2048), and the FSD location is instead
	// discoverable via PartitionStart + fixed offset 0 (root_fileset
	// == partitionStart).
	putLongAD(body, 232, SectorSize, 0, 0)
	putU32(body, 248, 6) // MapTableLength
	putU32(body, 252, 1) // NumberOfPartitionMaps
	putRegid(body, 256, 0, identMkudfiso, nil) // ImplementationIdentifier
	// ImplementationUse[128] at +288 left zero
	putExtentAD(body, 416, LVIDExtentSectors*SectorSize, SectorLVID) // IntegritySequenceExtent
	// Partition map table starts right after the fixed 424-byte body.
	putU8(body, 424, 1) // PartitionMapType
	putU8(body, 425, 6) // PartitionMapLength
	putU16(body, 426, 0) // VolumeSequenceNumber
	putU16(body, 428, 0) // PartitionNumber
	return sealDescriptor(TagIdentityLogicalVolumeDescriptor, sector, body)
}

// buildLogicalVolumeIntegrityDescriptor writes the 2-sector LVID extent
// at sector 64: LVID then a Terminating Descriptor.
func (b *Builder) buildLogicalVolumeIntegrityDescriptor(numFiles, numDirs uint32) {
	ext := &OutputExtent{Start: SectorLVID, End: SectorLVID + LVIDExtentSectors}
	b.em.insert(ext)

	const implUseLen = 46
	// LogicalVolumeContentsUse (32 bytes, body 24-55) is left zero;
	// NumberOfPartitions/LengthOfImplementationUse follow it, then the
	// free space and size tables (one 4-byte entry each, one partition).
	body := make([]byte, 72+implUseLen)
	putTimestamp(body, 0, b.recordTime)
	putU32(body, 12, 1)          // IntegrityType: 1 = closed
	putExtentAD(body, 16, 0, 0)  // NextIntegrityExtent
	putU32(body, 56, 1)          // NumberOfPartitions
	putU32(body, 60, implUseLen) // LengthOfImplementationUse
	putU32(body, 64, 0xFFFFFFFF) // FreeSpaceTable placeholder, partition 0
	putU32(body, 68, 0x7FFFFFFF) // SizeTable placeholder, partition 0 (patched)
	implOff := 72
	putRegid(body, implOff, 0, identMkudfiso, []byte{0x05}) // ImplementationID
	putU32(body, implOff+32, numFiles)
	putU32(body, implOff+36, numDirs)
	putU16(body, implOff+40, 0x0102) // MinimumUDFReadRevision
	putU16(body, implOff+42, 0x0102) // MinimumUDFWriteRevision
	putU16(body, implOff+44, 0x0102) // MaximumUDFWriteRevision

	lvid := sealDescriptor(TagIdentityLogicalVolumeIntegrityDesc, SectorLVID, body)
	term := sealDescriptor(TagIdentityTerminatingDescriptor, SectorLVID+1, nil)

	content := make([]byte, LVIDExtentSectors*SectorSize)
	copy(content[0:], lvid)
	copy(content[SectorSize:], term)
	ext.Content = content
	b.lvidPartitionSizeBodyOffset = 68
	b.lvidExtent = ext
}

// buildAnchor writes the Anchor Volume Descriptor Pointer at sector
// 256: a 512-byte descriptor naming the Main Volume Descriptor
// Sequence extent.
func (b *Builder) buildAnchor(vdsStart uint32) {
	ext := &OutputExtent{Start: SectorAnchor, End: SectorAnchor + 1}
	b.em.insert(ext)
	body := make([]byte, 512-tagSize)
	putExtentAD(body, 0, AnchorExtentLength, vdsStart) // MainVolumeDescriptorSequenceExtent
	putExtentAD(body, 8, 0, 0)                         // ReserveVolumeDescriptorSequenceExtent
	ext.Content = sealDescriptor(TagIdentityAnchorVolumeDescriptorPtr, SectorAnchor, body)
	b.recordGap(ext, len(ext.Content))
}
