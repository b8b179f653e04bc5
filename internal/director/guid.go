// Package director holds the small, version-independent pieces of
// Director/Shockwave domain knowledge that both the container and the
// decompiler layers need: compression GUIDs, the director_version
// threshold table, fourCC helpers, and the Config protection checksum.
package director

import "fmt"

// MoaID is the 16-byte GUID Director uses to identify a chunk's
// compression codec.
type MoaID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// String renders the canonical GUID text form, matching the original
// implementation's formatting exactly so logged/compared GUIDs read the
// same way.
func (g MoaID) String() string {
	return fmt.Sprintf("%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X",
		g.Data1, g.Data2, g.Data3,
		g.Data4[0], g.Data4[1], g.Data4[2], g.Data4[3],
		g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7])
}

// Well-known compression identifiers (spec.md §6 / SPEC_FULL §6).
var (
	FontMapCompressionGUID = MoaID{0x8A4679A1, 0x3720, 0x11D0, [8]byte{0x92, 0x23, 0x00, 0xA0, 0xC9, 0x08, 0x68, 0xB1}}
	NullCompressionGUID    = MoaID{0xAC99982E, 0x005D, 0x0D50, [8]byte{0x00, 0x00, 0x08, 0x00, 0x07, 0x37, 0x7A, 0x34}}
	SndCompressionGUID     = MoaID{0x7204A889, 0xAFD0, 0x11CF, [8]byte{0xA2, 0x22, 0x00, 0xA0, 0x24, 0x53, 0x44, 0x4C}}
	ZlibCompressionGUID    = MoaID{0xAC99E904, 0x0070, 0x0B36, [8]byte{0x00, 0x00, 0x08, 0x00, 0x07, 0x37, 0x7A, 0x34}}
)

// FourCCToString renders a 32-bit tag as its four ASCII characters,
// big-endian (the high byte is the first character).
func FourCCToString(fourCC uint32) string {
	return string([]byte{
		byte(fourCC >> 24),
		byte(fourCC >> 16),
		byte(fourCC >> 8),
		byte(fourCC),
	})
}

// FourCC packs four ASCII characters into a 32-bit tag, the inverse of
// FourCCToString.
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

// LingoLineEnding is the line terminator used in all Lingo source text:
// carriage return, not platform-dependent.
const LingoLineEnding = "\x0d"
