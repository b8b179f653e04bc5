package bytecode

import "github.com/deboservilla/rayscript/internal/bytestream"

// Tag marks the role an instruction plays in a recognized loop shape, set
// by TagLoops after decoding and consulted by the AST builder when it reaches
// a jmp_if_zero or a jmp into loop bookkeeping code.
type Tag int

const (
	TagNone Tag = iota
	TagSkip // internal loop logic, never its own statement
	TagRepeatWhile
	TagRepeatWithIn
	TagRepeatWithTo
	TagRepeatWithDownTo
	TagNextRepeatTarget // the instruction a `next repeat` jmp lands on
)

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	Pos     int   // byte offset of the opcode byte
	EndPos  int   // byte offset one past the operand (next instruction's Pos)
	Raw     uint8 // raw opcode byte, before folding
	Op      Op    // logical opcode
	Operand int32 // decoded operand, sign- or zero-extended per width

	Tag       Tag
	OwnerLoop int // index of the jmp_if_zero that owns this tagged instruction, -1 if none

	// Translation is the AST node the builder produced for this
	// instruction, attached so the bytecode listing can render it next to
	// the raw op. Stored untyped to keep this package free of the AST
	// dependency.
	Translation interface{}
}

// Decode walks buf (a handler's raw compiled bytecode, always big-endian)
// and returns every instruction in order, plus a byte-position -> index
// map for resolving jump targets.
func Decode(buf []byte) ([]Instruction, map[int]int) {
	s := bytestream.New(buf, bytestream.BigEndian)
	var out []Instruction
	posToIndex := make(map[int]int)

	for !s.EOF() {
		pos := s.Pos()
		raw := s.ReadUint8()
		op := Fold(raw)
		width := immediateWidth(raw)

		var operand int32
		switch width {
		case 1:
			// pushint's operand is signed; every other single-byte operand
			// (var types, argument counts, peek offsets) is unsigned.
			if op == OpPushInt8 {
				operand = int32(s.ReadInt8())
			} else {
				operand = int32(s.ReadUint8())
			}
		case 2:
			// pushint8 with a two-byte encoding pushes a 16-bit int in older
			// Lingo, so it is signed alongside pushint16.
			if op == OpPushInt16 || op == OpPushInt8 {
				operand = int32(s.ReadInt16())
			} else {
				operand = int32(s.ReadUint16())
			}
		case 4:
			operand = s.ReadInt32()
		}

		posToIndex[pos] = len(out)
		out = append(out, Instruction{
			Pos:       pos,
			EndPos:    s.Pos(),
			Raw:       raw,
			Op:        op,
			Operand:   operand,
			OwnerLoop: -1,
		})
	}
	// A jump target equal to the stream's length (exiting past the last
	// instruction) is common for a loop occupying a handler's tail; record
	// it so jump-target lookups resolve one-past-the-end positions.
	posToIndex[s.Len()] = len(out)
	return out, posToIndex
}
