package udf

import "encoding/binary"

// putU8 stores a byte at offset off in b.
func putU8(b []byte, off int, v uint8) {
	b[off] = v
}

func getU8(b []byte, off int) uint8 {
	return b[off]
}

// putU16 stores a little-endian uint16 at offset off in b.
func putU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}

func getU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

// putU32 stores a little-endian uint32 at offset off in b.
func putU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

func getU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// putU64 stores a little-endian uint64 at offset off in b.
func putU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

func getU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}
