package ast

import (
	"math"
	"strconv"

	"github.com/deboservilla/rayscript/internal/bytecode"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/script"
)

// builder is the single-pass stack interpreter that turns a handler's
// tagged bytecode into its AST.
type builder struct {
	h     *script.Handler
	ast   *AST
	stack []Node
}

// Translate builds the AST for every handler of sc, attaching each
// instruction's translation for the bytecode listing. It never fails.
func Translate(sc *script.Script) []*AST {
	out := make([]*AST, len(sc.Handlers))
	for i, h := range sc.Handlers {
		out[i] = TranslateHandler(h)
	}
	return out
}

// TranslateHandler builds one handler's AST and attaches it to the
// handler for the printer.
func TranslateHandler(h *script.Handler) *AST {
	bytecode.TagLoops(h.Bytecode, h.PosToIndex, h.GetName)
	b := &builder{h: h, ast: newAST(h)}
	h.AST = b.ast
	for i := 0; i < len(h.Bytecode); {
		bc := &h.Bytecode[i]
		pos := bc.Pos
		// Exit blocks whose end this instruction reaches, stepping through
		// if/else arms and case labels on the way out.
		for b.ast.currentBlock != nil && pos == b.ast.currentBlock.EndPos {
			exitedBlock := b.ast.currentBlock
			ancestorStmt := AncestorStatement(b.ast.currentBlock)
			b.ast.exitBlock()
			if ancestorStmt == nil {
				break
			}
			switch stmt := ancestorStmt.(type) {
			case *IfStmtNode:
				if stmt.HasElse && exitedBlock == stmt.Block1 {
					b.ast.enterBlock(stmt.Block2)
				}
			case *CaseStmtNode:
				if b.ast.currentBlock == nil {
					break
				}
				label := b.ast.currentBlock.CurrentCaseLabel
				if label == nil {
					break
				}
				switch label.Expect {
				case CaseExpectOtherwise:
					if exitedBlock == label.Block {
						b.ast.enterBlock(stmt.addOtherwise().Block)
					} else {
						b.ast.currentBlock.CurrentCaseLabel = nil
					}
				case CaseExpectPop:
					b.ast.currentBlock.CurrentCaseLabel = nil
				}
			}
		}
		i += b.translateBytecode(bc, i)
	}
	return b.ast
}

func (b *builder) peekStack() Node {
	if len(b.stack) == 0 {
		return &ErrorNode{}
	}
	return b.stack[len(b.stack)-1]
}

func (b *builder) pop() Node {
	if len(b.stack) == 0 {
		return &ErrorNode{}
	}
	res := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return res
}

func (b *builder) version() uint32 { return b.h.Script.Version }

// readVar turns a var-type tag plus popped operands into a variable
// reference (or a field member expression for var type 6).
func (b *builder) readVar(varType int32) Node {
	var castID Node
	if varType == bytecode.VarTypeField && b.version() >= 500 {
		castID = b.pop()
	}
	id := b.pop()

	switch varType {
	case bytecode.VarTypeGlobal, bytecode.VarTypeGlobal2, bytecode.VarTypeProperty:
		return id
	case bytecode.VarTypeArg:
		name := b.h.GetArgumentName(int32(id.Value().ToInt()) / b.h.VariableMultiplier())
		return &LiteralNode{Val: StringDatum(DatumVarRef, name)}
	case bytecode.VarTypeLocal:
		name := b.h.GetLocalName(int32(id.Value().ToInt()) / b.h.VariableMultiplier())
		return &LiteralNode{Val: StringDatum(DatumVarRef, name)}
	case bytecode.VarTypeField:
		return newMemberExpr("field", id, castID)
	}
	return &ErrorNode{}
}

func (b *builder) varNameFromSet(bc bytecode.Instruction) string {
	switch bc.Op {
	case bytecode.OpSetGlobal, bytecode.OpSetGlobal2:
		return b.h.GetName(bc.Operand)
	case bytecode.OpSetProp:
		return b.h.GetName(bc.Operand)
	case bytecode.OpSetParam:
		return b.h.GetArgumentName(bc.Operand / b.h.VariableMultiplier())
	case bytecode.OpSetLocal:
		return b.h.GetLocalName(bc.Operand / b.h.VariableMultiplier())
	}
	return "ERROR"
}

func newMemberExpr(kind string, memberID, castID Node) *MemberExprNode {
	m := &MemberExprNode{Kind: kind, MemberID: memberID}
	memberID.SetParent(m)
	if castID != nil {
		m.CastID = castID
		castID.SetParent(m)
	}
	return m
}

func isIntLiteral(n Node, val int) bool {
	lit, ok := n.(*LiteralNode)
	return ok && lit.Val.Type == DatumInt && lit.Val.I == val
}

// readV4Property decodes a get/set operand pair into the property
// expression it addresses (spec.md §4.8 get/set categories).
func (b *builder) readV4Property(propertyType, propertyID int) Node {
	switch propertyType {
	case 0x00:
		if propertyID <= 0x0b { // movie property
			return &TheExprNode{Prop: GetName(MoviePropertyNames, propertyID)}
		}
		// last chunk
		str := b.pop()
		n := &LastStringChunkExprNode{ChunkType: bytecode.ChunkType(propertyID - 0x0b), Obj: str}
		str.SetParent(n)
		return n
	case 0x01: // number of chunks
		str := b.pop()
		n := &StringChunkCountExprNode{ChunkType: bytecode.ChunkType(propertyID), Obj: str}
		str.SetParent(n)
		return n
	case 0x02: // menu property
		menuID := b.pop()
		n := &MenuPropExprNode{MenuID: menuID, Prop: propertyID}
		menuID.SetParent(n)
		return n
	case 0x03: // menu item property
		menuID := b.pop()
		itemID := b.pop()
		n := &MenuItemPropExprNode{MenuID: menuID, ItemID: itemID, Prop: propertyID}
		menuID.SetParent(n)
		itemID.SetParent(n)
		return n
	case 0x04: // sound property
		soundID := b.pop()
		n := &SoundPropExprNode{SoundID: soundID, Prop: propertyID}
		soundID.SetParent(n)
		return n
	case 0x05: // resource property - unused?
		return &CommentNode{Text: "ERROR: Resource property"}
	case 0x06: // sprite property
		spriteID := b.pop()
		n := &SpritePropExprNode{SpriteID: spriteID, Prop: propertyID}
		spriteID.SetParent(n)
		return n
	case 0x07: // animation property
		return &TheExprNode{Prop: GetName(AnimationPropertyNames, propertyID)}
	case 0x08: // animation 2 property
		if propertyID == 0x02 && b.version() >= 500 {
			// the number of castMembers supports castLib selection from
			// Director 5.0
			castLib := b.pop()
			if !isIntLiteral(castLib, 0) {
				castLibNode := newMemberExpr("castLib", castLib, nil)
				n := &ThePropExprNode{Obj: castLibNode, Prop: GetName(Animation2PropertyNames, propertyID)}
				castLibNode.SetParent(n)
				return n
			}
		}
		return &TheExprNode{Prop: GetName(Animation2PropertyNames, propertyID)}
	case 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15:
		// generic cast member, field, digital video, bitmap, sound,
		// button, shape, movie, script, scriptText - and the chunk
		// variants of member, field and scriptText
		propName := GetName(MemberPropertyNames, propertyID)
		var castID Node
		if b.version() >= 500 {
			castID = b.pop()
		}
		memberID := b.pop()
		var prefix string
		switch {
		case propertyType == 0x0b || propertyType == 0x0c:
			prefix = "field"
		case propertyType == 0x14 || propertyType == 0x15:
			prefix = "script"
		case b.version() >= 500:
			prefix = "member"
		default:
			prefix = "cast"
		}
		member := newMemberExpr(prefix, memberID, castID)
		var entity Node = member
		if propertyType == 0x0a || propertyType == 0x0c || propertyType == 0x15 {
			entity = b.readChunkRef(member)
		}
		n := &ThePropExprNode{Obj: entity, Prop: propName}
		entity.SetParent(n)
		return n
	}
	return &CommentNode{Text: "ERROR: Unknown property type " + strconv.Itoa(propertyType)}
}

// readChunkRef pops the eight chunk-range operands and nests a chunk
// expression around str for each level whose first field is not the
// literal integer 0, innermost char to outermost line.
func (b *builder) readChunkRef(str Node) Node {
	lastLine := b.pop()
	firstLine := b.pop()
	lastItem := b.pop()
	firstItem := b.pop()
	lastWord := b.pop()
	firstWord := b.pop()
	lastChar := b.pop()
	firstChar := b.pop()

	if !isIntLiteral(firstLine, 0) {
		str = newChunkExpr(bytecode.ChunkLine, firstLine, lastLine, str)
	}
	if !isIntLiteral(firstItem, 0) {
		str = newChunkExpr(bytecode.ChunkItem, firstItem, lastItem, str)
	}
	if !isIntLiteral(firstWord, 0) {
		str = newChunkExpr(bytecode.ChunkWord, firstWord, lastWord, str)
	}
	if !isIntLiteral(firstChar, 0) {
		str = newChunkExpr(bytecode.ChunkChar, firstChar, lastChar, str)
	}
	return str
}

func newChunkExpr(t bytecode.ChunkType, first, last, str Node) *ChunkExprNode {
	n := &ChunkExprNode{ChunkType: t, First: first, Last: last, String: str}
	first.SetParent(n)
	last.SetParent(n)
	str.SetParent(n)
	return n
}

// translateBytecode translates one instruction (or, for a case label's
// peek, a whole run) and returns how many instructions were consumed.
func (b *builder) translateBytecode(bc *bytecode.Instruction, index int) int {
	if bc.Tag == bytecode.TagSkip || bc.Tag == bytecode.TagNextRepeatTarget {
		// Internal loop logic; never a statement of its own.
		return 1
	}

	ins := b.h.Bytecode
	var translation Node
	var nextBlock *BlockNode

	switch bc.Op {
	case bytecode.OpRet, bytecode.OpRetFactory:
		if index == len(ins)-1 {
			return 1 // end of handler
		}
		translation = &ExitStmtNode{}
	case bytecode.OpPushZero:
		translation = &LiteralNode{Val: IntDatum(0)}
	case bytecode.OpMul, bytecode.OpAdd, bytecode.OpSub, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpJoinStr, bytecode.OpJoinPadStr, bytecode.OpLt, bytecode.OpLtEq,
		bytecode.OpNtEq, bytecode.OpEq, bytecode.OpGt, bytecode.OpGtEq,
		bytecode.OpAnd, bytecode.OpOr, bytecode.OpContainsStr, bytecode.OpContains0Str:
		right := b.pop()
		left := b.pop()
		n := &BinaryOpNode{Opcode: bc.Op, Left: left, Right: right}
		left.SetParent(n)
		right.SetParent(n)
		translation = n
	case bytecode.OpInv:
		x := b.pop()
		n := &InverseOpNode{Operand: x}
		x.SetParent(n)
		translation = n
	case bytecode.OpNot:
		x := b.pop()
		n := &NotOpNode{Operand: x}
		x.SetParent(n)
		translation = n
	case bytecode.OpGetChunk:
		translation = b.readChunkRef(b.pop())
	case bytecode.OpHiliteChunk:
		var castID Node
		if b.version() >= 500 {
			castID = b.pop()
		}
		fieldID := b.pop()
		field := newMemberExpr("field", fieldID, castID)
		chunk := b.readChunkRef(field)
		if comment, ok := chunk.(*CommentNode); ok {
			translation = comment
		} else {
			n := &ChunkHiliteStmtNode{Chunk: chunk}
			chunk.SetParent(n)
			translation = n
		}
	case bytecode.OpOntoSpr:
		secondSprite := b.pop()
		firstSprite := b.pop()
		n := &SpriteIntersectsExprNode{FirstSprite: firstSprite, SecondSprite: secondSprite}
		firstSprite.SetParent(n)
		secondSprite.SetParent(n)
		translation = n
	case bytecode.OpIntoSpr:
		secondSprite := b.pop()
		firstSprite := b.pop()
		n := &SpriteWithinExprNode{FirstSprite: firstSprite, SecondSprite: secondSprite}
		firstSprite.SetParent(n)
		secondSprite.SetParent(n)
		translation = n
	case bytecode.OpGetField:
		var castID Node
		if b.version() >= 500 {
			castID = b.pop()
		}
		fieldID := b.pop()
		translation = newMemberExpr("field", fieldID, castID)
	case bytecode.OpStartTell:
		window := b.pop()
		tell := &TellStmtNode{Window: window, Block: newBlock()}
		window.SetParent(tell)
		tell.Block.SetParent(tell)
		translation = tell
		nextBlock = tell.Block
	case bytecode.OpEndTell:
		b.ast.exitBlock()
		return 1
	case bytecode.OpPushList:
		list := b.pop()
		list.Value().Type = DatumList
		translation = list
	case bytecode.OpPushPropList:
		list := b.pop()
		list.Value().Type = DatumPropList
		translation = list
	case bytecode.OpSwap:
		if len(b.stack) >= 2 {
			b.stack[len(b.stack)-1], b.stack[len(b.stack)-2] = b.stack[len(b.stack)-2], b.stack[len(b.stack)-1]
		}
		return 1
	case bytecode.OpPushInt8, bytecode.OpPushInt16, bytecode.OpPushInt32:
		translation = &LiteralNode{Val: IntDatum(int(bc.Operand))}
	case bytecode.OpPushFloat32:
		// The operand bytes are a verbatim IEEE-754 single.
		f := math.Float32frombits(uint32(bc.Operand))
		translation = &LiteralNode{Val: FloatDatum(float64(f))}
	case bytecode.OpPushArgListNoRet:
		args := b.popArgs(int(bc.Operand))
		translation = &LiteralNode{Val: ListDatum(DatumArgListNoRet, args)}
	case bytecode.OpPushArgList:
		args := b.popArgs(int(bc.Operand))
		translation = &LiteralNode{Val: ListDatum(DatumArgList, args)}
	case bytecode.OpPushCons:
		literalID := int(bc.Operand / b.h.VariableMultiplier())
		if literalID >= 0 && literalID < len(b.h.Script.Literals) {
			translation = &LiteralNode{Val: literalDatum(b.h.Script.Literals[literalID])}
		} else {
			translation = &ErrorNode{}
		}
	case bytecode.OpPushSymb:
		translation = &LiteralNode{Val: StringDatum(DatumSymbol, b.h.GetName(bc.Operand))}
	case bytecode.OpPushVarRef:
		translation = &LiteralNode{Val: StringDatum(DatumVarRef, b.h.GetName(bc.Operand))}
	case bytecode.OpGetGlobal, bytecode.OpGetGlobal2:
		translation = &VarNode{Name: b.h.GetName(bc.Operand)}
	case bytecode.OpGetProp:
		translation = &VarNode{Name: b.h.GetName(bc.Operand)}
	case bytecode.OpGetParam:
		translation = &VarNode{Name: b.h.GetArgumentName(bc.Operand / b.h.VariableMultiplier())}
	case bytecode.OpGetLocal:
		translation = &VarNode{Name: b.h.GetLocalName(bc.Operand / b.h.VariableMultiplier())}
	case bytecode.OpSetGlobal, bytecode.OpSetGlobal2:
		translation = b.assignment(&VarNode{Name: b.h.GetName(bc.Operand)}, false)
	case bytecode.OpSetProp:
		translation = b.assignment(&VarNode{Name: b.h.GetName(bc.Operand)}, false)
	case bytecode.OpSetParam:
		translation = b.assignment(&VarNode{Name: b.h.GetArgumentName(bc.Operand / b.h.VariableMultiplier())}, false)
	case bytecode.OpSetLocal:
		translation = b.assignment(&VarNode{Name: b.h.GetLocalName(bc.Operand / b.h.VariableMultiplier())}, false)
	case bytecode.OpJmp:
		targetPos := bc.Pos + int(bc.Operand)
		targetIndex := b.h.PosToIndex[targetPos]
		if loop := AncestorLoop(b.ast.currentBlock); loop != nil {
			if targetIndex >= 1 && targetIndex <= len(ins) &&
				ins[targetIndex-1].Op == bytecode.OpEndRepeat && ins[targetIndex-1].OwnerLoop == loop.LoopStartIndex() {
				translation = &ExitRepeatStmtNode{}
				break
			}
			if targetIndex < len(ins) &&
				ins[targetIndex].Tag == bytecode.TagNextRepeatTarget && ins[targetIndex].OwnerLoop == loop.LoopStartIndex() {
				translation = &NextRepeatStmtNode{}
				break
			}
		}
		if ancestorStmt := AncestorStatement(b.ast.currentBlock); ancestorStmt != nil && index+1 < len(ins) &&
			ins[index+1].Pos == b.ast.currentBlock.EndPos {
			switch stmt := ancestorStmt.(type) {
			case *IfStmtNode:
				if b.ast.currentBlock == stmt.Block1 {
					// The jump between the two arms: amend the if with an
					// else branch reaching to the jump target.
					stmt.HasElse = true
					stmt.Block2.EndPos = targetPos
					return 1
				}
			case *CaseStmtNode:
				stmt.EndPos = targetPos
				if stmt.Otherwise != nil {
					stmt.Otherwise.Block.EndPos = targetPos
				}
				return 1
			}
		}
		translation = &CommentNode{Text: "ERROR: Could not identify jmp"}
	case bytecode.OpEndRepeat:
		// Should have been tagged and skipped as loop bookkeeping.
		translation = &CommentNode{Text: "ERROR: Stray endrepeat"}
	case bytecode.OpJmpIfZ:
		endPos := bc.Pos + int(bc.Operand)
		endIndex := b.h.PosToIndex[endPos]
		switch bc.Tag {
		case bytecode.TagRepeatWhile:
			condition := b.pop()
			loop := &RepeatWhileStmtNode{Condition: condition, Block: newBlock()}
			loop.StartIndex = index
			condition.SetParent(loop)
			loop.Block.SetParent(loop)
			loop.Block.EndPos = endPos
			translation = loop
			nextBlock = loop.Block
		case bytecode.TagRepeatWithIn:
			list := b.pop()
			varName := b.varNameFromSet(ins[index+5])
			loop := &RepeatWithInStmtNode{VarName: varName, List: list, Block: newBlock()}
			loop.StartIndex = index
			list.SetParent(loop)
			loop.Block.SetParent(loop)
			loop.Block.EndPos = endPos
			translation = loop
			nextBlock = loop.Block
		case bytecode.TagRepeatWithTo, bytecode.TagRepeatWithDownTo:
			up := bc.Tag == bytecode.TagRepeatWithTo
			end := b.pop()
			start := b.pop()
			endRepeat := ins[endIndex-1]
			conditionStartIndex := b.h.PosToIndex[endRepeat.Pos-int(endRepeat.Operand)]
			varName := b.varNameFromSet(ins[conditionStartIndex-1])
			loop := &RepeatWithToStmtNode{VarName: varName, Start: start, Up: up, End: end, Block: newBlock()}
			loop.StartIndex = index
			start.SetParent(loop)
			end.SetParent(loop)
			loop.Block.SetParent(loop)
			loop.Block.EndPos = endPos
			translation = loop
			nextBlock = loop.Block
		default:
			condition := b.pop()
			ifStmt := &IfStmtNode{Condition: condition, Block1: newBlock(), Block2: newBlock()}
			condition.SetParent(ifStmt)
			ifStmt.Block1.SetParent(ifStmt)
			ifStmt.Block2.SetParent(ifStmt)
			ifStmt.Block1.EndPos = endPos
			translation = ifStmt
			nextBlock = ifStmt.Block1
		}
	case bytecode.OpLocalCall:
		argList := b.pop()
		name := "ERROR"
		if int(bc.Operand) >= 0 && int(bc.Operand) < len(b.h.Script.Handlers) {
			name = b.h.Script.Handlers[bc.Operand].Name
		}
		translation = newCall(name, argList)
	case bytecode.OpExtCall, bytecode.OpTellCall:
		translation = newCall(b.h.GetName(bc.Operand), b.pop())
	case bytecode.OpObjCallV4:
		object := b.readVar(bc.Operand)
		argList := b.pop()
		rawArgList := argList.Value().L
		if len(rawArgList) > 0 {
			// The first arg is a symbol naming the method; replace it with
			// a variable. An empty list is left untouched.
			rawArgList[0] = &VarNode{Name: rawArgList[0].Value().S}
		}
		n := &ObjCallV4Node{Obj: object, ArgList: argList, stmt: argList.Value().Type == DatumArgListNoRet}
		object.SetParent(n)
		argList.SetParent(n)
		translation = n
	case bytecode.OpPut:
		putType := bytecode.PutType((bc.Operand >> 4) & 0xF)
		varType := bc.Operand & 0xF
		variable := b.readVar(varType)
		val := b.pop()
		translation = newPut(putType, variable, val)
	case bytecode.OpPutChunk:
		putType := bytecode.PutType((bc.Operand >> 4) & 0xF)
		varType := bc.Operand & 0xF
		variable := b.readVar(varType)
		chunk := b.readChunkRef(variable)
		val := b.pop()
		if comment, ok := chunk.(*CommentNode); ok {
			translation = comment
		} else {
			translation = newPut(putType, chunk, val)
		}
	case bytecode.OpDeleteChunk:
		variable := b.readVar(bc.Operand)
		chunk := b.readChunkRef(variable)
		if comment, ok := chunk.(*CommentNode); ok {
			translation = comment
		} else {
			n := &ChunkDeleteStmtNode{Chunk: chunk}
			chunk.SetParent(n)
			translation = n
		}
	case bytecode.OpGet:
		propertyID := b.pop().Value().ToInt()
		translation = b.readV4Property(int(bc.Operand), propertyID)
	case bytecode.OpSet:
		propertyID := b.pop().Value().ToInt()
		value := b.pop()
		if bc.Operand == 0x00 && 0x01 <= propertyID && propertyID <= 0x05 && value.Value().Type == DatumString {
			// Either `set the mouseDownScript to "script"` or a
			// `when mouseDown then script` statement. A leading space or an
			// embedded line break marks the when form.
			text := value.Value().S
			if len(text) > 0 && (text[0] == ' ' || containsLineEnding(text)) {
				translation = &WhenStmtNode{Event: propertyID, Script: text}
			}
		}
		if translation == nil {
			prop := b.readV4Property(int(bc.Operand), propertyID)
			if comment, ok := prop.(*CommentNode); ok {
				translation = comment
			} else {
				n := &AssignmentStmtNode{Variable: prop, Val: value, ForceVerbose: true}
				prop.SetParent(n)
				value.SetParent(n)
				translation = n
			}
		}
	case bytecode.OpGetMovieProp:
		translation = &TheExprNode{Prop: b.h.GetName(bc.Operand)}
	case bytecode.OpSetMovieProp:
		value := b.pop()
		prop := &TheExprNode{Prop: b.h.GetName(bc.Operand)}
		n := &AssignmentStmtNode{Variable: prop, Val: value}
		prop.SetParent(n)
		value.SetParent(n)
		translation = n
	case bytecode.OpGetObjProp, bytecode.OpGetChainedProp:
		object := b.pop()
		n := &ObjPropExprNode{Obj: object, Prop: b.h.GetName(bc.Operand)}
		object.SetParent(n)
		translation = n
	case bytecode.OpSetObjProp:
		value := b.pop()
		object := b.pop()
		prop := &ObjPropExprNode{Obj: object, Prop: b.h.GetName(bc.Operand)}
		object.SetParent(prop)
		n := &AssignmentStmtNode{Variable: prop, Val: value}
		prop.SetParent(n)
		value.SetParent(n)
		translation = n
	case bytecode.OpPeek:
		return b.translatePeek(bc, index)
	case bytecode.OpPop:
		for i := int32(0); i < bc.Operand; i++ {
			b.pop()
		}
		return 1
	case bytecode.OpTheBuiltin:
		b.pop() // empty arglist
		translation = &TheExprNode{Prop: b.h.GetName(bc.Operand)}
	case bytecode.OpObjCall:
		translation = b.translateObjCall(bc)
	case bytecode.OpPushChunkVarRef:
		translation = b.readVar(bc.Operand)
	case bytecode.OpGetTopLevelProp:
		translation = &VarNode{Name: b.h.GetName(bc.Operand)}
	case bytecode.OpNewObj:
		objType := b.h.GetName(bc.Operand)
		objArgs := b.pop()
		n := &NewObjNode{ObjType: objType, ObjArgs: objArgs}
		objArgs.SetParent(n)
		translation = n
	default:
		commentText := bytecode.OpcodeName(bc.Raw)
		if bc.Raw >= 0x40 {
			commentText += " " + strconv.Itoa(int(bc.Operand))
		}
		translation = &CommentNode{Text: commentText}
		// Clear the stack so later bytecode won't be too screwed up.
		b.stack = b.stack[:0]
	}

	if translation == nil {
		translation = &ErrorNode{}
	}

	bc.Translation = translation
	if translation.IsExpression() {
		b.stack = append(b.stack, translation)
	} else {
		b.ast.addStatement(translation)
	}

	if nextBlock != nil {
		b.ast.enterBlock(nextBlock)
	}
	return 1
}

func (b *builder) popArgs(n int) []Node {
	args := make([]Node, 0, n)
	for ; n > 0; n-- {
		args = append([]Node{b.pop()}, args...)
	}
	return args
}

func (b *builder) assignment(variable *VarNode, forceVerbose bool) Node {
	value := b.pop()
	n := &AssignmentStmtNode{Variable: variable, Val: value, ForceVerbose: forceVerbose}
	variable.SetParent(n)
	value.SetParent(n)
	return n
}

func newCall(name string, argList Node) *CallNode {
	n := &CallNode{Name: name, ArgList: argList, stmt: argList.Value().Type == DatumArgListNoRet}
	argList.SetParent(n)
	return n
}

func newPut(putType bytecode.PutType, variable, val Node) *PutStmtNode {
	n := &PutStmtNode{PutType: putType, Variable: variable, Val: val}
	variable.SetParent(n)
	val.SetParent(n)
	return n
}

func literalDatum(lit script.Literal) *Datum {
	switch lit.Type {
	case script.LiteralInt:
		return IntDatum(int(lit.Int))
	case script.LiteralFloat:
		return FloatDatum(lit.Float)
	case script.LiteralString:
		return StringDatum(DatumString, lit.Str)
	}
	return &Datum{}
}

func containsLineEnding(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == director.LingoLineEnding[0] {
			return true
		}
	}
	return false
}

// translateObjCall rewrites the recognizable pseudo-method calls into
// their syntactic forms and builds a plain ObjCallNode otherwise.
func (b *builder) translateObjCall(bc *bytecode.Instruction) Node {
	method := b.h.GetName(bc.Operand)
	argList := b.pop()
	rawArgList := argList.Value().L
	nargs := len(rawArgList)

	switch {
	case method == "getAt" && nargs == 2:
		// obj.getAt(i) => obj[i]
		obj := rawArgList[0]
		prop := rawArgList[1]
		n := &ObjBracketExprNode{Obj: obj, Prop: prop}
		obj.SetParent(n)
		prop.SetParent(n)
		return n
	case method == "setAt" && nargs == 3:
		// obj.setAt(i, val) => obj[i] = val
		obj := rawArgList[0]
		prop := rawArgList[1]
		val := rawArgList[2]
		propExpr := &ObjBracketExprNode{Obj: obj, Prop: prop}
		obj.SetParent(propExpr)
		prop.SetParent(propExpr)
		n := &AssignmentStmtNode{Variable: propExpr, Val: val}
		propExpr.SetParent(n)
		val.SetParent(n)
		return n
	case (method == "getProp" || method == "getPropRef") && (nargs == 3 || nargs == 4) && rawArgList[1].Value().Type == DatumSymbol:
		// obj.getProp(#prop, i) => obj.prop[i]
		// obj.getProp(#prop, i, i2) => obj.prop[i..i2]
		obj := rawArgList[0]
		propName := rawArgList[1].Value().S
		i := rawArgList[2]
		var i2 Node
		if nargs == 4 {
			i2 = rawArgList[3]
		}
		return newObjPropIndex(obj, propName, i, i2)
	case method == "setProp" && (nargs == 4 || nargs == 5) && rawArgList[1].Value().Type == DatumSymbol:
		// obj.setProp(#prop, i, val) => obj.prop[i] = val
		// obj.setProp(#prop, i, i2, val) => obj.prop[i..i2] = val
		obj := rawArgList[0]
		propName := rawArgList[1].Value().S
		i := rawArgList[2]
		var i2 Node
		if nargs == 5 {
			i2 = rawArgList[3]
		}
		propExpr := newObjPropIndex(obj, propName, i, i2)
		val := rawArgList[nargs-1]
		n := &AssignmentStmtNode{Variable: propExpr, Val: val}
		propExpr.SetParent(n)
		val.SetParent(n)
		return n
	case method == "count" && nargs == 2 && rawArgList[1].Value().Type == DatumSymbol:
		// obj.count(#prop) => obj.prop.count
		obj := rawArgList[0]
		propName := rawArgList[1].Value().S
		propExpr := &ObjPropExprNode{Obj: obj, Prop: propName}
		obj.SetParent(propExpr)
		n := &ObjPropExprNode{Obj: propExpr, Prop: "count"}
		propExpr.SetParent(n)
		return n
	case (method == "setContents" || method == "setContentsAfter" || method == "setContentsBefore") && nargs == 2:
		// var.setContents(val) => put val into var
		// var.setContentsAfter(val) => put val after var
		// var.setContentsBefore(val) => put val before var
		putType := bytecode.PutInto
		if method == "setContentsAfter" {
			putType = bytecode.PutAfter
		} else if method == "setContentsBefore" {
			putType = bytecode.PutBefore
		}
		return newPut(putType, rawArgList[0], rawArgList[1])
	case method == "hilite" && nargs == 1:
		// chunk.hilite() => hilite chunk
		chunk := rawArgList[0]
		n := &ChunkHiliteStmtNode{Chunk: chunk}
		chunk.SetParent(n)
		return n
	case method == "delete" && nargs == 1:
		// chunk.delete() => delete chunk
		chunk := rawArgList[0]
		n := &ChunkDeleteStmtNode{Chunk: chunk}
		chunk.SetParent(n)
		return n
	}
	n := &ObjCallNode{Name: method, ArgList: argList, stmt: argList.Value().Type == DatumArgListNoRet}
	argList.SetParent(n)
	return n
}

func newObjPropIndex(obj Node, prop string, i, i2 Node) *ObjPropIndexExprNode {
	n := &ObjPropIndexExprNode{Obj: obj, Prop: prop, Index: i}
	obj.SetParent(n)
	i.SetParent(n)
	if i2 != nil {
		n.Index2 = i2
		i2.SetParent(n)
	}
	return n
}

// translatePeek handles the op that opens either a case label or a
// `repeat with ... in list` (the latter is recognized by the loop
// tagger, so reaching here means a case). It drives translation forward
// to the comparison against the switch value, then chains the new label
// into the statement.
func (b *builder) translatePeek(bc *bytecode.Instruction, index int) int {
	ins := b.h.Bytecode

	// The peeked value is the switch expression.
	peekedValue := b.peekStack()
	prevLabel := b.ast.currentBlock.CurrentCaseLabel

	// Find the comparison against the switch expression.
	originalStackSize := len(b.stack)
	currIndex := index + 1
	for currIndex < len(ins) {
		curr := &ins[currIndex]
		if len(b.stack) == originalStackSize+1 && (curr.Op == bytecode.OpEq || curr.Op == bytecode.OpNtEq) {
			break
		}
		b.translateBytecode(curr, currIndex)
		currIndex++
	}
	if currIndex >= len(ins) {
		comment := &CommentNode{Text: "ERROR: Expected eq or nteq!"}
		bc.Translation = comment
		b.ast.addStatement(comment)
		return currIndex - index + 1
	}

	// If the comparison is <>, this is followed by another, equivalent
	// label (e.g. case1 in `case1, case2: statement`).
	notEq := ins[currIndex].Op == bytecode.OpNtEq
	caseValue := b.pop() // the value the switch expression is compared against

	currIndex++
	if currIndex >= len(ins) || ins[currIndex].Op != bytecode.OpJmpIfZ {
		comment := &CommentNode{Text: "ERROR: Expected jmpifz!"}
		bc.Translation = comment
		b.ast.addStatement(comment)
		return currIndex - index + 1
	}

	jmpifz := &ins[currIndex]
	jmpPos := jmpifz.Pos + int(jmpifz.Operand)
	targetIndex := b.h.PosToIndex[jmpPos]
	var expect CaseExpect
	switch {
	case notEq:
		expect = CaseExpectOr // an equivalent label follows
	case targetIndex < len(ins) && ins[targetIndex].Op == bytecode.OpPeek:
		expect = CaseExpectNext // a different label follows
	case targetIndex < len(ins) && ins[targetIndex].Op == bytecode.OpPop:
		expect = CaseExpectPop // the switch ends, popping the value
	default:
		expect = CaseExpectOtherwise // an otherwise block follows
	}

	currLabel := &CaseLabelNode{Val: caseValue, Expect: expect}
	caseValue.SetParent(currLabel)
	jmpifz.Translation = currLabel
	b.ast.currentBlock.CurrentCaseLabel = currLabel

	if prevLabel == nil {
		caseStmt := &CaseStmtNode{Val: peekedValue, EndPos: -1}
		peekedValue.SetParent(caseStmt)
		caseStmt.FirstLabel = currLabel
		currLabel.SetParent(caseStmt)
		bc.Translation = caseStmt
		b.ast.addStatement(caseStmt)
	} else if prevLabel.Expect == CaseExpectOr {
		prevLabel.NextOr = currLabel
		currLabel.SetParent(prevLabel)
	} else if prevLabel.Expect == CaseExpectNext {
		prevLabel.NextLabel = currLabel
		currLabel.SetParent(prevLabel)
	}

	// The block doesn't start until after the last equivalent label, so
	// don't create one while expecting another.
	if currLabel.Expect != CaseExpectOr {
		currLabel.Block = newBlock()
		currLabel.Block.SetParent(currLabel)
		currLabel.Block.EndPos = jmpPos
		b.ast.enterBlock(currLabel.Block)
	}

	return currIndex - index + 1
}
