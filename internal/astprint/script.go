package astprint

import (
	"fmt"
	"math"
	"strconv"

	"github.com/deboservilla/rayscript/internal/ast"
	"github.com/deboservilla/rayscript/internal/bytecode"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/script"
)

// ScriptText renders a script (and its factories) as Lingo source. The
// script's handlers must have been translated (ast.Translate) first.
func ScriptText(sc *script.Script, lineEnding string, dotSyntax bool) string {
	code := NewCodeWriter(lineEnding, "  ")
	writeScriptText(code, sc, dotSyntax)
	return code.String()
}

func writeScriptText(code *CodeWriter, sc *script.Script, dotSyntax bool) {
	origSize := code.Size()
	writeVarDeclarations(code, sc)
	if sc.IsFactory() {
		if code.Size() != origSize {
			code.WriteLine("")
		}
		code.Write("factory ")
		code.WriteLine(sc.FactoryName)
	}
	for i, h := range sc.Handlers {
		if (!sc.IsFactory() || i > 0) && code.Size() != origSize {
			code.WriteLine("")
		}
		if tree, ok := h.AST.(*ast.AST); ok {
			WriteNode(code, tree.Root, dotSyntax, false)
		}
	}
	for _, factory := range sc.Factories {
		if code.Size() != origSize {
			code.WriteLine("")
		}
		writeScriptText(code, factory, dotSyntax)
	}
}

// BytecodeText renders the per-instruction listing of a script's
// handlers, with each instruction's translation appended.
func BytecodeText(sc *script.Script, lineEnding string, dotSyntax bool) string {
	code := NewCodeWriter(lineEnding, "  ")
	writeBytecodeText(code, sc, dotSyntax)
	return code.String()
}

func writeBytecodeText(code *CodeWriter, sc *script.Script, dotSyntax bool) {
	origSize := code.Size()
	writeVarDeclarations(code, sc)
	if sc.IsFactory() {
		if code.Size() != origSize {
			code.WriteLine("")
		}
		code.Write("factory ")
		code.WriteLine(sc.FactoryName)
	}
	for i, h := range sc.Handlers {
		if (!sc.IsFactory() || i > 0) && code.Size() != origSize {
			code.WriteLine("")
		}
		writeHandlerBytecode(code, h, dotSyntax)
	}
	for _, factory := range sc.Factories {
		if code.Size() != origSize {
			code.WriteLine("")
		}
		writeBytecodeText(code, factory, dotSyntax)
	}
}

func writeVarDeclarations(code *CodeWriter, sc *script.Script) {
	if !sc.IsFactory() && len(sc.PropertyNames) > 0 {
		code.Write("property ")
		for i, name := range sc.PropertyNames {
			if i > 0 {
				code.Write(", ")
			}
			code.Write(name)
		}
		code.WriteLine("")
	}
	if len(sc.GlobalNames) > 0 {
		code.Write("global ")
		for i, name := range sc.GlobalNames {
			if i > 0 {
				code.Write(", ")
			}
			code.Write(name)
		}
		code.WriteLine("")
	}
}

func posToString(pos int) string {
	return fmt.Sprintf("[%3d]", pos)
}

// writeHandlerBytecode emits one line per instruction: the byte
// position, the mnemonic, an opcode-specific operand rendering, and the
// attached translation in its condensed form.
func writeHandlerBytecode(code *CodeWriter, h *script.Handler, dotSyntax bool) {
	code.Write("on ")
	code.Write(h.Name)
	if len(h.ArgumentNames) > 0 {
		code.Write(" ")
		for i, name := range h.ArgumentNames {
			if i > 0 {
				code.Write(", ")
			}
			code.Write(name)
		}
	}
	code.WriteLine("")
	for _, bc := range h.Bytecode {
		line := "  " + posToString(bc.Pos) + " " + bytecode.OpcodeName(bc.Raw)
		switch bc.Op {
		case bytecode.OpJmp, bytecode.OpJmpIfZ:
			line += " " + posToString(bc.Pos+int(bc.Operand))
		case bytecode.OpEndRepeat:
			line += " " + posToString(bc.Pos-int(bc.Operand))
		case bytecode.OpPushFloat32:
			line += " " + director.FloatToString(float64(math.Float32frombits(uint32(bc.Operand))))
		default:
			if bc.Raw > 0x40 {
				line += " " + strconv.Itoa(int(bc.Operand))
			}
		}
		if translation, ok := bc.Translation.(ast.Node); ok && translation != nil {
			line += " ..."
			for len(line) < 49 {
				line += "."
			}
			line += " "
			sub := NewCodeWriter(director.LingoLineEnding, "  ")
			WriteNode(sub, translation, dotSyntax, true)
			if translation.IsExpression() {
				line += "<" + sub.String() + ">"
			} else {
				line += sub.String()
			}
		}
		code.WriteLine(line)
	}
	code.WriteLine("end")
}
