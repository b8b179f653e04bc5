package bytecode

// TagLoops walks the decoded instruction list and marks every loop it can
// recognize: the jmp_if_zero that opens a loop is tagged with the loop
// kind, the instruction `next repeat` jumps to is tagged
// TagNextRepeatTarget, and the surrounding induction bookkeeping is
// tagged TagSkip so the AST builder does not also emit it as ordinary
// statements. It never fails: an unrecognized jmp_if_zero is simply left
// untagged and falls back to a plain `if`.
//
// getName resolves a name id against the owning script's name table; the
// repeat-with-in recognizer needs it to check for the `count` and `getAt`
// calls in the loop preamble.
func TagLoops(ins []Instruction, posToIndex map[int]int, getName func(int32) string) {
	for startIndex := 0; startIndex < len(ins); startIndex++ {
		// All loops begin with jmpifz...
		if ins[startIndex].Op != OpJmpIfZ {
			continue
		}

		// ...and end with endrepeat.
		jmpPos := ins[startIndex].Pos + int(ins[startIndex].Operand)
		endIndex, ok := posToIndex[jmpPos]
		if !ok || endIndex < 1 || endIndex > len(ins) {
			continue
		}
		endRepeat := &ins[endIndex-1]
		if endRepeat.Op != OpEndRepeat || endRepeat.Pos-int(endRepeat.Operand) > ins[startIndex].Pos {
			continue
		}

		loopType := identifyLoop(ins, posToIndex, startIndex, endIndex, getName)
		ins[startIndex].Tag = loopType

		switch loopType {
		case TagRepeatWithIn:
			for i := startIndex - 7; i <= startIndex-1; i++ {
				ins[i].Tag = TagSkip
			}
			for i := startIndex + 1; i <= startIndex+5; i++ {
				ins[i].Tag = TagSkip
			}
			ins[endIndex-3].Tag = TagNextRepeatTarget // pushint8 1
			ins[endIndex-3].OwnerLoop = startIndex
			ins[endIndex-2].Tag = TagSkip // add
			ins[endIndex-1].Tag = TagSkip // endrepeat
			ins[endIndex-1].OwnerLoop = startIndex
			ins[endIndex].Tag = TagSkip // pop 3
		case TagRepeatWithTo, TagRepeatWithDownTo:
			conditionStartIndex := posToIndex[endRepeat.Pos-int(endRepeat.Operand)]
			ins[conditionStartIndex-1].Tag = TagSkip // set
			ins[conditionStartIndex].Tag = TagSkip   // get
			ins[startIndex-1].Tag = TagSkip          // lteq / gteq
			ins[endIndex-5].Tag = TagNextRepeatTarget // pushint8 1 / pushint8 -1
			ins[endIndex-5].OwnerLoop = startIndex
			ins[endIndex-4].Tag = TagSkip // get
			ins[endIndex-3].Tag = TagSkip // add
			ins[endIndex-2].Tag = TagSkip // set
			ins[endIndex-1].Tag = TagSkip // endrepeat
			ins[endIndex-1].OwnerLoop = startIndex
		case TagRepeatWhile:
			ins[endIndex-1].Tag = TagNextRepeatTarget // endrepeat
			ins[endIndex-1].OwnerLoop = startIndex
		}
	}
}

func identifyLoop(ins []Instruction, posToIndex map[int]int, startIndex, endIndex int, getName func(int32) string) Tag {
	if isRepeatWithIn(ins, startIndex, endIndex, getName) {
		return TagRepeatWithIn
	}

	if startIndex < 1 {
		return TagRepeatWhile
	}

	var up bool
	switch ins[startIndex-1].Op {
	case OpLtEq:
		up = true
	case OpGtEq:
		up = false
	default:
		return TagRepeatWhile
	}

	endRepeat := ins[endIndex-1]
	conditionStartIndex, ok := posToIndex[endRepeat.Pos-int(endRepeat.Operand)]
	if !ok || conditionStartIndex < 1 {
		return TagRepeatWhile
	}

	var getOp Op
	switch ins[conditionStartIndex-1].Op {
	case OpSetGlobal:
		getOp = OpGetGlobal
	case OpSetGlobal2:
		getOp = OpGetGlobal2
	case OpSetProp:
		getOp = OpGetProp
	case OpSetParam:
		getOp = OpGetParam
	case OpSetLocal:
		getOp = OpGetLocal
	default:
		return TagRepeatWhile
	}
	setOp := ins[conditionStartIndex-1].Op
	varID := ins[conditionStartIndex-1].Operand

	if !(ins[conditionStartIndex].Op == getOp && ins[conditionStartIndex].Operand == varID) {
		return TagRepeatWhile
	}

	if endIndex < 5 {
		return TagRepeatWhile
	}
	if up {
		if !(ins[endIndex-5].Op == OpPushInt8 && ins[endIndex-5].Operand == 1) {
			return TagRepeatWhile
		}
	} else {
		if !(ins[endIndex-5].Op == OpPushInt8 && ins[endIndex-5].Operand == -1) {
			return TagRepeatWhile
		}
	}
	if !(ins[endIndex-4].Op == getOp && ins[endIndex-4].Operand == varID) {
		return TagRepeatWhile
	}
	if ins[endIndex-3].Op != OpAdd {
		return TagRepeatWhile
	}
	if !(ins[endIndex-2].Op == setOp && ins[endIndex-2].Operand == varID) {
		return TagRepeatWhile
	}

	if up {
		return TagRepeatWithTo
	}
	return TagRepeatWithDownTo
}

// isRepeatWithIn matches the exact preamble/postamble instruction shape a
// `repeat with x in list` compiles to: the list is peeked, its count
// taken, an index compared against it, and getAt assigns the iteration
// variable on every pass.
func isRepeatWithIn(ins []Instruction, startIndex, endIndex int, getName func(int32) string) bool {
	if startIndex < 7 || startIndex > len(ins)-6 || endIndex >= len(ins) {
		return false
	}
	if !(ins[startIndex-7].Op == OpPeek && ins[startIndex-7].Operand == 0) {
		return false
	}
	if !(ins[startIndex-6].Op == OpPushArgList && ins[startIndex-6].Operand == 1) {
		return false
	}
	if !(ins[startIndex-5].Op == OpExtCall && getName(ins[startIndex-5].Operand) == "count") {
		return false
	}
	if !(ins[startIndex-4].Op == OpPushInt8 && ins[startIndex-4].Operand == 1) {
		return false
	}
	if !(ins[startIndex-3].Op == OpPeek && ins[startIndex-3].Operand == 0) {
		return false
	}
	if !(ins[startIndex-2].Op == OpPeek && ins[startIndex-2].Operand == 2) {
		return false
	}
	if ins[startIndex-1].Op != OpLtEq {
		return false
	}
	if !(ins[startIndex+1].Op == OpPeek && ins[startIndex+1].Operand == 2) {
		return false
	}
	if !(ins[startIndex+2].Op == OpPeek && ins[startIndex+2].Operand == 1) {
		return false
	}
	if !(ins[startIndex+3].Op == OpPushArgList && ins[startIndex+3].Operand == 2) {
		return false
	}
	if !(ins[startIndex+4].Op == OpExtCall && getName(ins[startIndex+4].Operand) == "getAt") {
		return false
	}
	switch ins[startIndex+5].Op {
	case OpSetGlobal, OpSetProp, OpSetParam, OpSetLocal:
	default:
		return false
	}

	if endIndex < 3 {
		return false
	}
	if !(ins[endIndex-3].Op == OpPushInt8 && ins[endIndex-3].Operand == 1) {
		return false
	}
	if ins[endIndex-2].Op != OpAdd {
		return false
	}
	if !(ins[endIndex].Op == OpPop && ins[endIndex].Operand == 3) {
		return false
	}

	return true
}
