package bytecode

import "testing"

func noNames(id int32) string { return "" }

func TestFold(t *testing.T) {
	cases := []struct {
		raw  uint8
		want Op
	}{
		{0x01, OpRet},
		{0x21, OpSwap},
		{0x41, OpPushInt8},
		{0x81, OpPushInt8}, // 0x40 + 0x81%0x40 == 0x40+0x01
		{0xc1, OpPushInt8},
	}
	for _, c := range cases {
		if got := Fold(c.raw); got != c.want {
			t.Errorf("Fold(%#x) = %#x, want %#x", c.raw, got, c.want)
		}
	}
}

func TestOpcodeName(t *testing.T) {
	cases := []struct {
		raw  uint8
		want string
	}{
		{0x01, "ret"},
		{0x41, "pushint8"},
		{0x81, "pushint8"},
		{0x73, "newobj"},
		{0x3f, "unk3F"},
	}
	for _, c := range cases {
		if got := OpcodeName(c.raw); got != c.want {
			t.Errorf("OpcodeName(%#x) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestDecodeSimpleRet(t *testing.T) {
	buf := []byte{0x01} // ret, no operand
	ins, posToIndex := Decode(buf)
	if len(ins) != 1 {
		t.Fatalf("len(ins) = %d, want 1", len(ins))
	}
	if ins[0].Op != OpRet || ins[0].Pos != 0 || ins[0].EndPos != 1 {
		t.Errorf("unexpected instruction: %+v", ins[0])
	}
	if posToIndex[0] != 0 {
		t.Errorf("posToIndex[0] = %d, want 0", posToIndex[0])
	}
}

func TestDecodePushIntSigned(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want int32
	}{
		{"one-byte pushint8", []byte{0x41, 0xff}, -1},
		{"two-byte pushint8", []byte{0x81, 0xff, 0xff}, -1},
		{"two-byte pushint16", []byte{0xae, 0xff, 0x00}, -256},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ins, _ := Decode(c.buf)
			if len(ins) != 1 {
				t.Fatalf("len(ins) = %d, want 1", len(ins))
			}
			if ins[0].Operand != c.want {
				t.Errorf("operand = %d, want %d", ins[0].Operand, c.want)
			}
		})
	}
}

func TestDecodeUnsignedOneByteOperand(t *testing.T) {
	buf := []byte{0x52, 0xff} // setlocal: operand stays unsigned
	ins, _ := Decode(buf)
	if ins[0].Operand != 255 {
		t.Errorf("operand = %d, want 255", ins[0].Operand)
	}
}

func TestDecodePushInt32Width(t *testing.T) {
	buf := []byte{0xef, 0x00, 0x00, 0x01, 0x00} // raw 0xef: pushint32 with a 4-byte immediate
	ins, _ := Decode(buf)
	if len(ins) != 1 {
		t.Fatalf("len(ins) = %d, want 1", len(ins))
	}
	if ins[0].EndPos != 5 || ins[0].Operand != 256 {
		t.Errorf("got %+v, want EndPos 5 operand 256", ins[0])
	}
}

// repeat while: jmpifz over the body, endrepeat jumping back to the
// condition.
func TestTagRepeatWhile(t *testing.T) {
	buf := []byte{
		byte(OpGetLocal), 0x00, // pos 0: condition
		byte(OpJmpIfZ), 0x07, // pos 2: exit -> pos 9 (one past endrepeat)
		byte(OpPushZero),       // pos 4: body
		byte(OpPop), 0x01,      // pos 5
		byte(OpEndRepeat), 0x07, // pos 7: back-target 0
		byte(OpRet), // pos 9
	}
	ins, posToIndex := Decode(buf)
	TagLoops(ins, posToIndex, noNames)

	if ins[1].Tag != TagRepeatWhile {
		t.Fatalf("jmpifz tag = %v, want TagRepeatWhile", ins[1].Tag)
	}
	endRepeatIdx := posToIndex[7]
	if ins[endRepeatIdx].Tag != TagNextRepeatTarget {
		t.Errorf("endrepeat tag = %v, want TagNextRepeatTarget", ins[endRepeatIdx].Tag)
	}
	if ins[endRepeatIdx].OwnerLoop != 1 {
		t.Errorf("endrepeat OwnerLoop = %d, want 1", ins[endRepeatIdx].OwnerLoop)
	}
}

// repeat with i = 1 to 10: the canonical induction shape of spec
// scenario 4.
func repeatWithToBytecode() []byte {
	return []byte{
		0x41, 0x01, // pos 0: pushint8 1
		0x52, 0x00, // pos 2: setlocal i
		0x4c, 0x00, // pos 4: getlocal i
		0x41, 0x0a, // pos 6: pushint8 10
		0x0d,       // pos 8: lteq
		0x55, 0x0b, // pos 9: jmpifz -> 20
		0x41, 0x01, // pos 11: pushint8 1
		0x4c, 0x00, // pos 13: getlocal i
		0x05,       // pos 15: add
		0x52, 0x00, // pos 16: setlocal i
		0x54, 0x0e, // pos 18: endrepeat -> 4
		0x01, // pos 20: ret
	}
}

func TestTagRepeatWithTo(t *testing.T) {
	ins, posToIndex := Decode(repeatWithToBytecode())
	TagLoops(ins, posToIndex, noNames)

	jmpIdx := posToIndex[9]
	if ins[jmpIdx].Tag != TagRepeatWithTo {
		t.Fatalf("jmpifz tag = %v, want TagRepeatWithTo", ins[jmpIdx].Tag)
	}
	// The whole induction machinery is folded into the loop header.
	for _, pos := range []int{2, 4, 8, 13, 15, 16, 18} {
		if got := ins[posToIndex[pos]].Tag; got != TagSkip {
			t.Errorf("instruction at pos %d: tag = %v, want TagSkip", pos, got)
		}
	}
	if got := ins[posToIndex[11]].Tag; got != TagNextRepeatTarget {
		t.Errorf("pushint8 at pos 11: tag = %v, want TagNextRepeatTarget", got)
	}
}

func TestTagRepeatWithDownTo(t *testing.T) {
	buf := []byte{
		0x41, 0x0a, // pushint8 10
		0x52, 0x00, // setlocal i
		0x4c, 0x00, // getlocal i
		0x41, 0x01, // pushint8 1
		0x11,       // gteq
		0x55, 0x0b, // jmpifz -> 20
		0x41, 0xff, // pushint8 -1
		0x4c, 0x00, // getlocal i
		0x05,       // add
		0x52, 0x00, // setlocal i
		0x54, 0x0e, // endrepeat -> 4
		0x01, // ret
	}
	ins, posToIndex := Decode(buf)
	TagLoops(ins, posToIndex, noNames)
	if got := ins[posToIndex[9]].Tag; got != TagRepeatWithDownTo {
		t.Fatalf("jmpifz tag = %v, want TagRepeatWithDownTo", got)
	}
}

// A jmpifz with no endrepeat before its target is a plain if, not a
// loop.
func TestTagLeavesIfUntagged(t *testing.T) {
	buf := []byte{
		byte(OpGetLocal), 0x00,
		byte(OpJmpIfZ), 0x05, // -> pos 7
		byte(OpPushZero),
		byte(OpPop), 0x01,
		byte(OpRet), // pos 7
	}
	ins, posToIndex := Decode(buf)
	TagLoops(ins, posToIndex, noNames)
	if ins[1].Tag != TagNone {
		t.Errorf("jmpifz tag = %v, want TagNone", ins[1].Tag)
	}
}
