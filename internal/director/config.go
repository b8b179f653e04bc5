package director

// Config holds the fields of the Config chunk (VWCF/DRCF), laid out exactly
// as spec.md §6 describes. The container package owns reading/writing the
// bytes; this package owns the pure-integer checksum algorithm, which has
// no I/O surface of its own.
type Config struct {
	Len             uint16
	FileVersion     uint16
	MovieTop        int16
	MovieLeft       int16
	MovieBottom     int16
	MovieRight      int16
	MinMember       uint16
	MaxMember       uint16
	Field9          uint8
	Field10         uint8
	Field11         int16
	CommentFont     int16
	CommentSize     int16
	CommentStyle    uint16
	StageColor      int16
	BitDepth        int16
	Field17         uint8
	Field18         uint8
	Field19         int32
	DirectorVersion int16
	Field21         int16
	Field22         int32
	Field23         int32
	Field24         int32
	Field25         uint8
	Field26         uint8
	FrameRate       int16
	Platform        int16
	Protection      int16
	Field29         int32
	Checksum        uint32
	Remnants        []byte
}

// ComputeChecksum reproduces the 29-step deterministic recurrence the
// original implementation uses as the Config "protection" checksum. Every
// operand and operator must match bit-for-bit or the writer produces a
// file Director considers tampered with (spec.md §4.5/§8 scenario 2).
//
// C has it that each step's right-hand operand is computed in signed int
// arithmetic and then implicitly converted to uint32_t when combined with
// check; a negative operand therefore wraps around modulo 2^32 rather than
// subtracting. uint32(int32(x)) reproduces that conversion exactly.
func (c *Config) ComputeChecksum() uint32 {
	ver := HumanVersion(uint32(uint16(c.DirectorVersion)))

	check := uint32(c.Len) + 1
	check *= uint32(c.FileVersion) + 2
	check /= uint32(int32(c.MovieTop) + 3)
	check *= uint32(int32(c.MovieLeft) + 4)
	check /= uint32(int32(c.MovieBottom) + 5)
	check *= uint32(int32(c.MovieRight) + 6)
	check -= uint32(c.MinMember) + 7
	check *= uint32(c.MaxMember) + 8
	check -= uint32(c.Field9) + 9
	check -= uint32(c.Field10) + 10
	check += uint32(int32(c.Field11) + 11)
	check *= uint32(int32(c.CommentFont) + 12)
	check += uint32(int32(c.CommentSize) + 13)

	var operand14 int32
	if ver < 800 {
		operand14 = int32((c.CommentStyle >> 8) & 0xFF)
	} else {
		operand14 = int32(c.CommentStyle)
	}
	check *= uint32(operand14 + 14)

	var operand15 int32
	if ver < 700 {
		operand15 = int32(c.StageColor)
	} else {
		operand15 = int32(uint8(c.StageColor & 0xFF))
	}
	check += uint32(operand15 + 15)

	check += uint32(int32(c.BitDepth) + 16)
	check += uint32(c.Field17) + 17
	check *= uint32(c.Field18) + 18
	check += uint32(c.Field19 + 19)
	check *= uint32(int32(c.DirectorVersion) + 20)
	check += uint32(int32(c.Field21) + 21)
	check += uint32(c.Field22 + 22)
	check += uint32(c.Field23 + 23)
	check += uint32(c.Field24 + 24)
	check *= uint32(c.Field25) + 25
	check += uint32(int32(c.FrameRate) + 26)
	check *= uint32(int32(c.Platform) + 27)
	check *= uint32(int32(c.Protection))*0xE06 + 0xFF450000
	check ^= FourCC('r', 'a', 'l', 'f')

	return check
}

// Unprotect clears the protection marker the way the original's
// DirectorFile::unprotect path does: the container becomes editable (its
// fileVersion now matches directorVersion) and the protection field is
// perturbed by the least amount needed to break the "protected" modulus.
func (c *Config) Unprotect() {
	c.FileVersion = uint16(c.DirectorVersion)
	if c.Protection%23 == 0 {
		c.Protection++
	}
}
