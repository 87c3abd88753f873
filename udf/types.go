package udf

import "time"

// putRegid writes a 32-byte ECMA-167 EntityID (flags, identifier[23],
// identifier suffix[8]) at buf[off:off+32].
func putRegid(buf []byte, off int, flags uint8, identifier string, suffix []byte) {
	dst := buf[off : off+32]
	dst[0] = flags
	copy(dst[1:24], []byte(identifier))
	copy(dst[24:32], suffix)
}

// putCharspec writes an ECMA-167 charspec (1 byte type + 63 byte info)
// at buf[off:off+64]. UDF always uses CharacterSetType 0 with the fixed
// "OSTA Compressed Unicode" info string.
func putCharspec(buf []byte, off int) {
	dst := buf[off : off+64]
	dst[0] = 0
	copy(dst[1:], []byte(identOSTACompressed))
}

// putTimestamp writes an ECMA-167 12-byte timestamp at buf[off:off+12].
func putTimestamp(buf []byte, off int, t time.Time) {
	dst := buf[off : off+12]
	t = t.UTC()
	putU16(dst, 0, 0) // TypeAndTimezone: type 0 (bits 15-12), timezone 0 (UTC, bits 11-0)
	putU16(dst, 2, uint16(t.Year()))
	dst[4] = byte(t.Month())
	dst[5] = byte(t.Day())
	dst[6] = byte(t.Hour())
	dst[7] = byte(t.Minute())
	dst[8] = byte(t.Second())
	dst[9] = 0 // Centiseconds
	dst[10] = 0
	dst[11] = 0
}

// putShortAD writes an 8-byte short_ad {ExtentLength u32, ExtentPosition u32}.
// flagBits occupies the top 2 bits of ExtentLength per ECMA-167 4/14.14.1.1:
// 0 = allocated+recorded, 1 = allocated but not recorded, 3 = not allocated/not recorded.
func putShortAD(buf []byte, off int, length uint32, position uint32, flagBits uint8) {
	putU32(buf, off, length|(uint32(flagBits)<<30))
	putU32(buf, off+4, position)
}

// putLongAD writes a 16-byte long_ad {ExtentLength u32, ExtentLocation {lbn u32, partition u16}, ImplementationUse[6]}.
func putLongAD(buf []byte, off int, length uint32, partition uint16, lbn uint32) {
	putU32(buf, off, length)
	putU32(buf, off+4, lbn)
	putU16(buf, off+8, partition)
	// remaining 6 bytes of ImplementationUse left zero
}

// putExtentAD writes an 8-byte plain extent_ad {Length u32, Location u32}.
func putExtentAD(buf []byte, off int, length uint32, location uint32) {
	putU32(buf, off, length)
	putU32(buf, off+4, location)
}
