package ast

import "github.com/deboservilla/rayscript/internal/bytecode"

// Standard name sets for the numeric ids baked into Lingo bytecode.
// Every string must match the compiler's vocabulary exactly or the
// emitted source stops round-tripping.

var BinaryOpNames = map[bytecode.Op]string{
	bytecode.OpMul:          "*",
	bytecode.OpAdd:          "+",
	bytecode.OpSub:          "-",
	bytecode.OpDiv:          "/",
	bytecode.OpMod:          "mod",
	bytecode.OpJoinStr:      "&",
	bytecode.OpJoinPadStr:   "&&",
	bytecode.OpLt:           "<",
	bytecode.OpLtEq:         "<=",
	bytecode.OpNtEq:         "<>",
	bytecode.OpEq:           "=",
	bytecode.OpGt:           ">",
	bytecode.OpGtEq:         ">=",
	bytecode.OpAnd:          "and",
	bytecode.OpOr:           "or",
	bytecode.OpContainsStr:  "contains",
	bytecode.OpContains0Str: "starts",
}

var ChunkTypeNames = map[bytecode.ChunkType]string{
	bytecode.ChunkChar: "char",
	bytecode.ChunkWord: "word",
	bytecode.ChunkItem: "item",
	bytecode.ChunkLine: "line",
}

var PutTypeNames = map[bytecode.PutType]string{
	bytecode.PutInto:   "into",
	bytecode.PutAfter:  "after",
	bytecode.PutBefore: "before",
}

var MoviePropertyNames = map[int]string{
	0x00: "floatPrecision",
	0x01: "mouseDownScript",
	0x02: "mouseUpScript",
	0x03: "keyDownScript",
	0x04: "keyUpScript",
	0x05: "timeoutScript",
	0x06: "short time",
	0x07: "abbr time",
	0x08: "long time",
	0x09: "short date",
	0x0a: "abbr date",
	0x0b: "long date",
}

var WhenEventNames = map[int]string{
	0x01: "mouseDown",
	0x02: "mouseUp",
	0x03: "keyDown",
	0x04: "keyUp",
	0x05: "timeOut",
}

var MenuPropertyNames = map[int]string{
	0x01: "name",
	0x02: "number of menuItems",
}

var MenuItemPropertyNames = map[int]string{
	0x01: "name",
	0x02: "checkMark",
	0x03: "enabled",
	0x04: "script",
}

var SoundPropertyNames = map[int]string{
	0x01: "volume",
}

var SpritePropertyNames = map[int]string{
	0x01: "type",
	0x02: "backColor",
	0x03: "bottom",
	0x04: "castNum",
	0x05: "constraint",
	0x06: "cursor",
	0x07: "foreColor",
	0x08: "height",
	0x09: "immediate",
	0x0a: "ink",
	0x0b: "left",
	0x0c: "lineSize",
	0x0d: "locH",
	0x0e: "locV",
	0x0f: "movieRate",
	0x10: "movieTime",
	0x11: "pattern",
	0x12: "puppet",
	0x13: "right",
	0x14: "startTime",
	0x15: "stopTime",
	0x16: "stretch",
	0x17: "top",
	0x18: "trails",
	0x19: "visible",
	0x1a: "volume",
	0x1b: "width",
	0x1c: "blend",
	0x1d: "scriptNum",
	0x1e: "moveableSprite",
	0x1f: "editableText",
	0x20: "scoreColor",
	0x21: "loc",
	0x22: "rect",
	0x23: "memberNum",
	0x24: "castLibNum",
	0x25: "member",
	0x26: "scriptInstanceList",
	0x27: "currentTime",
	0x28: "mostRecentCuePoint",
	0x29: "tweened",
	0x2a: "name",
}

var AnimationPropertyNames = map[int]string{
	0x01: "beepOn",
	0x02: "buttonStyle",
	0x03: "centerStage",
	0x04: "checkBoxAccess",
	0x05: "checkboxType",
	0x06: "colorDepth",
	0x07: "colorQD",
	0x08: "exitLock",
	0x09: "fixStageSize",
	0x0a: "fullColorPermit",
	0x0b: "imageDirect",
	0x0c: "doubleClick",
	0x0d: "key",
	0x0e: "lastClick",
	0x0f: "lastEvent",
	0x10: "keyCode",
	0x11: "lastKey",
	0x12: "lastRoll",
	0x13: "timeoutLapsed",
	0x14: "multiSound",
	0x15: "pauseState",
	0x16: "quickTimePresent",
	0x17: "selEnd",
	0x18: "selStart",
	0x19: "soundEnabled",
	0x1a: "soundLevel",
	0x1b: "stageColor",
	// 0x1c indicates dontPassEvent was called.
	// It doesn't seem to have a Lingo-accessible name.
	0x1d: "switchColorDepth",
	0x1e: "timeoutKeyDown",
	0x1f: "timeoutLength",
	0x20: "timeoutMouse",
	0x21: "timeoutPlay",
	0x22: "timer",
	0x23: "preLoadRAM",
	0x24: "videoForWindowsPresent",
	0x25: "netPresent",
	0x26: "safePlayer",
	0x27: "soundKeepDevice",
	0x28: "soundMixMedia",
}

var Animation2PropertyNames = map[int]string{
	0x01: "perFrameHook",
	0x02: "number of castMembers",
	0x03: "number of menus",
	0x04: "number of castLibs",
	0x05: "number of xtras",
}

var MemberPropertyNames = map[int]string{
	0x01: "name",
	0x02: "text",
	0x03: "textStyle",
	0x04: "textFont",
	0x05: "textHeight",
	0x06: "textAlign",
	0x07: "textSize",
	0x08: "picture",
	0x09: "hilite",
	0x0a: "number",
	0x0b: "size",
	0x0c: "loop",
	0x0d: "duration",
	0x0e: "controller",
	0x0f: "directToStage",
	0x10: "sound",
	0x11: "foreColor",
	0x12: "backColor",
	0x13: "type",
}

// GetName looks id up in one of the int-keyed tables above, returning a
// distinctive "ERROR" marker for ids the vocabulary does not cover.
func GetName(names map[int]string, id int) string {
	name, ok := names[id]
	if !ok {
		return "ERROR"
	}
	return name
}

// BinaryOpName returns the printable operator for op, "ERROR" if op is
// not a binary operator.
func BinaryOpName(op bytecode.Op) string {
	name, ok := BinaryOpNames[op]
	if !ok {
		return "ERROR"
	}
	return name
}

// ChunkTypeName returns the chunk keyword for t.
func ChunkTypeName(t bytecode.ChunkType) string {
	name, ok := ChunkTypeNames[t]
	if !ok {
		return "ERROR"
	}
	return name
}

// PutTypeName returns the put-direction keyword for t.
func PutTypeName(t bytecode.PutType) string {
	name, ok := PutTypeNames[t]
	if !ok {
		return "ERROR"
	}
	return name
}
