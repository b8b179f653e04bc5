package astprint

import (
	"strings"
	"testing"

	"github.com/deboservilla/rayscript/internal/ast"
	"github.com/deboservilla/rayscript/internal/bytecode"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/script"
)

const cr = director.LingoLineEnding

func testScript(version uint32, names []string) *script.Script {
	ctx := &script.Context{
		Names:   &script.Names{Names: names},
		Scripts: make(map[int32]*script.Script),
	}
	return &script.Script{
		Version:       version,
		DotSyntax:     version >= 700,
		FactoryNameID: -1,
		Context:       ctx,
	}
}

// testHandler wires a handler with pre-resolved names the way
// Script.SetContext would.
func testHandler(sc *script.Script, name string, locals []string, raw []byte) *script.Handler {
	h := &script.Handler{
		Script:     sc,
		Name:       name,
		LocalNames: locals,
	}
	h.Bytecode, h.PosToIndex = bytecode.Decode(raw)
	sc.Handlers = append(sc.Handlers, h)
	return h
}

func handlerText(t *testing.T, h *script.Handler, dot bool) string {
	t.Helper()
	tree := ast.TranslateHandler(h)
	code := NewCodeWriter(cr, "  ")
	WriteNode(code, tree.Root, dot, false)
	return code.String()
}

// Scenario 4 of spec.md §8: the canonical repeat-with-to induction shape
// decompiles to a counted loop, never an unrolled or while form.
func TestRepeatWithTo(t *testing.T) {
	sc := testScript(400, []string{"exitFrame", "i"})
	h := testHandler(sc, "exitFrame", []string{"i"}, []byte{
		0x41, 0x01, // pushint8 1
		0x52, 0x00, // setlocal i
		0x4c, 0x00, // getlocal i
		0x41, 0x0a, // pushint8 10
		0x0d,       // lteq
		0x55, 0x0b, // jmpifz -> 20
		0x41, 0x01, // pushint8 1
		0x4c, 0x00, // getlocal i
		0x05,       // add
		0x52, 0x00, // setlocal i
		0x54, 0x0e, // endrepeat -> 4
		0x01, // ret
	})
	want := "on exitFrame" + cr +
		"  repeat with i = 1 to 10" + cr +
		"  end repeat" + cr +
		"end" + cr
	if got := handlerText(t, h, false); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

// A repeat with identical bounds still prints exactly one structural
// loop.
func TestRepeatWithToEqualBounds(t *testing.T) {
	sc := testScript(400, []string{"exitFrame", "i"})
	h := testHandler(sc, "exitFrame", []string{"i"}, []byte{
		0x41, 0x05, // pushint8 5
		0x52, 0x00, // setlocal i
		0x4c, 0x00, // getlocal i
		0x41, 0x05, // pushint8 5
		0x0d,       // lteq
		0x55, 0x0b, // jmpifz -> 20
		0x41, 0x01, // pushint8 1
		0x4c, 0x00, // getlocal i
		0x05,       // add
		0x52, 0x00, // setlocal i
		0x54, 0x0e, // endrepeat -> 4
		0x01, // ret
	})
	got := handlerText(t, h, false)
	if strings.Count(got, "repeat with") != 1 {
		t.Errorf("loop printed %d times, want 1:\n%q", strings.Count(got, "repeat with"), got)
	}
	if !strings.Contains(got, "repeat with i = 5 to 5") {
		t.Errorf("missing equal-bounds loop header:\n%q", got)
	}
}

// Scenario 5 of spec.md §8: a case chain with an or-label, a sibling
// label, and an otherwise.
func TestCaseChain(t *testing.T) {
	sc := testScript(400, []string{"test", "x", "y"})
	h := testHandler(sc, "test", []string{"x", "y"}, []byte{
		0x4c, 0x00, // getlocal x
		0x64, 0x00, // peek 0
		0x41, 0x01, // pushint8 1
		0x0e,       // nteq
		0x55, 0x09, // jmpifz -> 16 (block A)
		0x64, 0x00, // peek 0
		0x41, 0x02, // pushint8 2
		0x0f,       // eq
		0x55, 0x08, // jmpifz -> 22 (label 3)
		0x41, 0x0a, // pushint8 10
		0x52, 0x06, // setlocal y
		0x53, 0x13, // jmp -> 39 (end)
		0x64, 0x00, // peek 0
		0x41, 0x03, // pushint8 3
		0x0f,       // eq
		0x55, 0x08, // jmpifz -> 35 (otherwise)
		0x41, 0x14, // pushint8 20
		0x52, 0x06, // setlocal y
		0x53, 0x06, // jmp -> 39 (end)
		0x41, 0x1e, // pushint8 30
		0x52, 0x06, // setlocal y
		0x65, 0x01, // pop 1
		0x01, // ret
	})
	want := "on test" + cr +
		"  case x of" + cr +
		"    1, 2:" + cr +
		"      set y to 10" + cr +
		"    3:" + cr +
		"      set y to 20" + cr +
		"    otherwise:" + cr +
		"      set y to 30" + cr +
		"  end case" + cr +
		"end" + cr
	if got := handlerText(t, h, false); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

// Scenario 6 of spec.md §8, pre-dot-syntax side: the v4 property-set
// opcode stays verbose even though the node is an assignment.
func TestSpritePropVerbose(t *testing.T) {
	sc := testScript(400, []string{"go"})
	h := testHandler(sc, "go", nil, []byte{
		0x41, 0x01, // pushint8 1 (sprite)
		0x41, 0x02, // pushint8 2 (value)
		0x41, 0x02, // pushint8 2 (property id: backColor)
		0x5d, 0x06, // set, sprite category
		0x01, // ret
	})
	want := "on go" + cr +
		"  set the backColor of sprite 1 to 2" + cr +
		"end" + cr
	if got := handlerText(t, h, false); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

// Scenario 6, dot-syntax side: a D7 movie compiles the same statement
// through setobjprop, which prints dotted.
func TestSpritePropDot(t *testing.T) {
	sc := testScript(700, []string{"go", "sprite", "backColor"})
	h := testHandler(sc, "go", nil, []byte{
		0x41, 0x01, // pushint8 1
		0x43, 0x01, // pusharglist 1
		0x57, 0x01, // extcall sprite
		0x41, 0x02, // pushint8 2
		0x62, 0x02, // setobjprop backColor
		0x01, // ret
	})
	want := "on go" + cr +
		"  sprite(1).backColor = 2" + cr +
		"end" + cr
	if got := handlerText(t, h, true); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
	wantVerbose := "on go" + cr +
		"  set the backColor of sprite(1) to 2" + cr +
		"end" + cr
	if got := handlerText(t, h, false); got != wantVerbose {
		t.Errorf("verbose: got:\n%q\nwant:\n%q", got, wantVerbose)
	}
}

// Chunk-ref composition: only the levels whose first operand is nonzero
// appear, ordered char within word within the source string.
func TestChunkRefComposition(t *testing.T) {
	sc := testScript(400, []string{"test", "x", "put"})
	h := testHandler(sc, "test", []string{"x"}, []byte{
		0x41, 0x02, // pushint8 2 (first char)
		0x03,       // pushzero  (last char)
		0x41, 0x03, // pushint8 3 (first word)
		0x03,       // pushzero  (last word)
		0x03,       // pushzero  (first item)
		0x03,       // pushzero  (last item)
		0x03,       // pushzero  (first line)
		0x03,       // pushzero  (last line)
		0x4c, 0x00, // getlocal x
		0x17,       // getchunk
		0x42, 0x01, // pusharglistnoret 1
		0x57, 0x02, // extcall put
		0x01, // ret
	})
	want := "on test" + cr +
		"  put char 2 of word 3 of x" + cr +
		"end" + cr
	if got := handlerText(t, h, false); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

// A handler whose only instruction is ret prints with an empty body.
func TestEmptyHandlerBody(t *testing.T) {
	sc := testScript(400, []string{"foo"})
	h := testHandler(sc, "foo", nil, []byte{0x01})
	want := "on foo" + cr + "end" + cr
	if got := handlerText(t, h, false); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// A script with zero handlers prints only its declarations.
func TestScriptWithNoHandlers(t *testing.T) {
	sc := testScript(400, nil)
	sc.PropertyNames = []string{"p1", "p2"}
	sc.GlobalNames = []string{"g"}
	want := "property p1, p2" + cr + "global g" + cr
	if got := ScriptText(sc, cr, false); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFactoryScriptText(t *testing.T) {
	sc := testScript(400, []string{"fly"})
	sc.Flags = script.FlagFactoryDef
	sc.FactoryName = "Bird"
	h := testHandler(sc, "fly", nil, []byte{0x01})
	ast.TranslateHandler(h)
	got := ScriptText(sc, cr, false)
	want := "factory Bird" + cr + "method fly" + cr
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// An event-script handler prints its body without the on/end wrapper.
func TestGenericEventHandler(t *testing.T) {
	sc := testScript(400, []string{"test", "y"})
	h := testHandler(sc, "test", []string{"y"}, []byte{
		0x41, 0x07, // pushint8 7
		0x52, 0x00, // setlocal y
		0x01, // ret
	})
	h.IsGenericEvent = true
	want := "set y to 7" + cr
	if got := handlerText(t, h, false); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Operator precedence: a left operand is parenthesized exactly when its
// precedence differs, a binary right operand always.
func TestBinaryOpPrecedence(t *testing.T) {
	lit := func(i int) ast.Node { return &ast.LiteralNode{Val: ast.IntDatum(i)} }
	binop := func(op bytecode.Op, l, r ast.Node) ast.Node {
		return &ast.BinaryOpNode{Opcode: op, Left: l, Right: r}
	}
	cases := []struct {
		node ast.Node
		want string
	}{
		{binop(bytecode.OpMul, binop(bytecode.OpAdd, lit(1), lit(2)), lit(3)), "(1 + 2) * 3"},
		{binop(bytecode.OpAdd, binop(bytecode.OpAdd, lit(1), lit(2)), lit(3)), "1 + 2 + 3"},
		{binop(bytecode.OpAdd, lit(1), binop(bytecode.OpAdd, lit(2), lit(3))), "1 + (2 + 3)"},
		{binop(bytecode.OpLt, binop(bytecode.OpAdd, lit(1), lit(2)), lit(3)), "(1 + 2) < 3"},
	}
	for _, c := range cases {
		code := NewCodeWriter(cr, "  ")
		WriteNode(code, c.node, false, false)
		if got := code.String(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

// The bytecode listing preserves every (pos, mnemonic, operand) triple
// of the decoded stream, with jumps rendered as absolute targets.
func TestBytecodeListing(t *testing.T) {
	sc := testScript(400, []string{"test", "i"})
	testHandler(sc, "test", []string{"i"}, []byte{
		0x41, 0x05, // pushint8 5
		0x52, 0x00, // setlocal i
		0x4c, 0x00, // getlocal i
		0x55, 0x04, // jmpifz -> 10
		0x53, 0x02, // jmp -> 10
		0x01, // ret
	})
	got := BytecodeText(sc, cr, false)
	wantLines := []string{
		"on test",
		"  [  0] pushint8 5",
		"  [  2] setlocal 0",
		"  [  4] getlocal 0",
		"  [  6] jmpifz [ 10]",
		"  [  8] jmp [ 10]",
		"  [ 10] ret",
		"end",
		"",
	}
	if want := strings.Join(wantLines, cr); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

// A translated handler's listing appends each instruction's condensed
// translation.
func TestBytecodeListingWithTranslation(t *testing.T) {
	sc := testScript(400, []string{"foo", "y"})
	h := testHandler(sc, "foo", []string{"y"}, []byte{
		0x41, 0x07, // pushint8 7
		0x52, 0x00, // setlocal y
		0x01, // ret
	})
	ast.TranslateHandler(h)
	got := BytecodeText(sc, cr, false)
	if !strings.Contains(got, "<7>") {
		t.Errorf("listing missing expression translation:\n%q", got)
	}
	if !strings.Contains(got, "set y to 7") {
		t.Errorf("listing missing statement translation:\n%q", got)
	}
}

// repeat with ... in list, recognized from its count/getAt preamble.
func TestRepeatWithIn(t *testing.T) {
	sc := testScript(400, []string{"test", "lst", "n", "count", "getAt"})
	h := testHandler(sc, "test", []string{"lst", "n"}, []byte{
		0x4c, 0x00, // pos 0: getlocal lst
		0x64, 0x00, // pos 2: peek 0
		0x43, 0x01, // pos 4: pusharglist 1
		0x57, 0x03, // pos 6: extcall count
		0x41, 0x01, // pos 8: pushint8 1
		0x64, 0x00, // pos 10: peek 0
		0x64, 0x02, // pos 12: peek 2
		0x0d,       // pos 14: lteq
		0x55, 0x11, // pos 15: jmpifz -> 32 (the pop that unwinds the loop state)
		0x64, 0x02, // pos 17: peek 2
		0x64, 0x01, // pos 19: peek 1
		0x43, 0x02, // pos 21: pusharglist 2
		0x57, 0x04, // pos 23: extcall getAt
		0x52, 0x06, // pos 25: setlocal n
		0x41, 0x01, // pos 27: pushint8 1
		0x05,       // pos 29: add
		0x54, 0x10, // pos 30: endrepeat -> 14
		0x65, 0x03, // pos 32: pop 3
		0x01, // pos 34: ret
	})
	got := handlerText(t, h, false)
	if !strings.Contains(got, "repeat with n in lst") {
		t.Errorf("missing repeat-with-in header:\n%q", got)
	}
}
