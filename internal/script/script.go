// Package script holds the in-memory model a ScriptContext chunk
// resolves into: name tables, literals, and handlers, each carrying
// enough of its own decoded bytecode that package ast can build a
// per-handler AST without reaching back into the container.
package script

import (
	"strconv"

	"github.com/deboservilla/rayscript/internal/bytecode"
)

// Flag bits of a Script's scriptFlags word.
const (
	FlagUnused      = 1 << 0x0
	FlagFuncsGlobal = 1 << 0x1
	FlagVarsGlobal  = 1 << 0x2 // event scripts; correlated with the alternate global var opcodes
	FlagFactoryDef  = 1 << 0x4
	FlagHasFactory  = 1 << 0x8
	FlagEventScript = 1 << 0x9
	FlagEventScript2 = 1 << 0xa
)

// LiteralType mirrors the tag stored in a Script's literal table.
type LiteralType uint32

const (
	LiteralString LiteralType = 1
	LiteralInt    LiteralType = 4
	LiteralFloat  LiteralType = 9
)

// Literal is one entry of a Script's literal table, already decoded from
// its backing bytes.
type Literal struct {
	Type  LiteralType
	Int   int32
	Float float64
	Str   string
}

// Names resolves numeric name-ids to strings, falling back to a
// distinctive placeholder on a miss so stale or truncated ScriptNames
// tables never abort a read (spec.md §9 "Name-id safety").
type Names struct {
	Names []string
}

// Valid reports whether id resolves without the placeholder fallback.
func (n *Names) Valid(id int32) bool {
	return id >= 0 && int(id) < len(n.Names)
}

func (n *Names) Get(id int32) string {
	if !n.Valid(id) {
		return "UNKNOWN_NAME_" + strconv.Itoa(int(id))
	}
	return n.Names[id]
}

// Handler is one compiled handler (an on/end block, or a factory method)
// of a Script.
type Handler struct {
	Script *Script

	NameID int32
	Name   string

	ArgumentNameIDs []int32
	ArgumentNames   []string
	LocalNameIDs    []int32
	LocalNames      []string
	GlobalNameIDs   []int32
	GlobalNames     []string

	CompiledLen    uint32
	CompiledOffset uint32
	ArgumentCount  uint16
	ArgumentOffset uint32
	LocalsCount    uint16
	LocalsOffset   uint32
	GlobalsCount   uint16
	GlobalsOffset  uint32
	StackHeight    uint32 // only present in the capital-X context form

	Bytecode   []bytecode.Instruction
	PosToIndex map[int]int

	// IsGenericEvent marks the first handler of an event script: printed
	// as its body alone, without on/end wrapping.
	IsGenericEvent bool

	// AST holds the handler's parsed tree (an *ast.AST) once the
	// decompiler has run. Typed loosely so this package stays below the
	// AST layer.
	AST interface{}
}

// GetName resolves id through the owning context's shared name table.
func (h *Handler) GetName(id int32) string {
	return h.Script.GetName(id)
}

func (h *Handler) GetArgumentName(id int32) string {
	if id >= 0 && int(id) < len(h.ArgumentNames) {
		return h.ArgumentNames[id]
	}
	return "UNKNOWN_ARG_" + strconv.Itoa(int(id))
}

func (h *Handler) GetLocalName(id int32) string {
	if id >= 0 && int(id) < len(h.LocalNames) {
		return h.LocalNames[id]
	}
	return "UNKNOWN_LOCAL_" + strconv.Itoa(int(id))
}

func (h *Handler) GetGlobalName(id int32) string {
	if id >= 0 && int(id) < len(h.GlobalNames) {
		return h.GlobalNames[id]
	}
	return "UNKNOWN_GLOBAL_" + strconv.Itoa(int(id))
}

// VariableMultiplier is the divisor applied to a pushcons literal index
// or a getparam/getlocal operand: 1 for capital-X contexts, 8 for
// version >= 500, else 6.
func (h *Handler) VariableMultiplier() int32 {
	if h.Script.CapitalX {
		return 1
	}
	if h.Script.Version >= 500 {
		return 8
	}
	return 6
}

// Script is one compiled Lingo script: a movie/behavior script, or a
// factory whose handlers are rendered as methods.
type Script struct {
	ID int32

	TotalLength   uint32
	HeaderLength  uint16
	ScriptNumber  uint16
	ParentNumber  int16
	Flags         uint32
	CastID        int32
	FactoryNameID int16
	FactoryName   string

	PropertyNameIDs []int32
	PropertyNames   []string
	GlobalNameIDs   []int32
	GlobalNames     []string

	Literals  []Literal
	Handlers  []*Handler
	Factories []*Script

	Context *Context

	Version   uint32
	CapitalX  bool
	DotSyntax bool
}

// IsFactory reports whether this script defines an object type whose
// handlers print as methods.
func (s *Script) IsFactory() bool {
	return s.Flags&FlagFactoryDef != 0
}

// GetName resolves id through the context's shared name table; before a
// context is attached every id misses and yields the placeholder.
func (s *Script) GetName(id int32) string {
	if s.Context == nil {
		return "UNKNOWN_NAME_" + strconv.Itoa(int(id))
	}
	return s.Context.Names.Get(id)
}

// SetContext attaches the shared name table and resolves every name this
// script and its handlers refer to. Resolved strings are duplicated into
// the script so later lookups cannot fail even if the context is
// partially populated.
func (s *Script) SetContext(ctx *Context) {
	s.Context = ctx
	if s.FactoryNameID != -1 {
		s.FactoryName = ctx.Names.Get(int32(s.FactoryNameID))
	}
	for _, nameID := range s.PropertyNameIDs {
		if ctx.Names.Valid(nameID) {
			name := ctx.Names.Get(nameID)
			if s.IsFactory() && name == "me" {
				continue
			}
			s.PropertyNames = append(s.PropertyNames, name)
		}
	}
	for _, nameID := range s.GlobalNameIDs {
		if ctx.Names.Valid(nameID) {
			s.GlobalNames = append(s.GlobalNames, ctx.Names.Get(nameID))
		}
	}
	for _, h := range s.Handlers {
		h.Name = s.GetName(h.NameID)
		for _, nameID := range h.ArgumentNameIDs {
			h.ArgumentNames = append(h.ArgumentNames, s.GetName(nameID))
		}
		for _, nameID := range h.LocalNameIDs {
			h.LocalNames = append(h.LocalNames, s.GetName(nameID))
		}
		for _, nameID := range h.GlobalNameIDs {
			// Some global name ids are -1; globals only ever resolve from
			// the declared table, never from bytecode.
			if nameID >= 0 {
				h.GlobalNames = append(h.GlobalNames, s.GetName(nameID))
			}
		}
	}
}

// Context groups every Script reachable from one ScriptContext chunk,
// keyed by the 1-based section-map slot, alongside the shared ScriptNames
// table they all resolve their identifiers against.
type Context struct {
	Names   *Names
	Scripts map[int32]*Script
}

// ScriptBySlot returns the script in section-map slot i (1-based), or
// nil for a hole, which the format allows and callers must tolerate.
func (c *Context) ScriptBySlot(i int32) *Script {
	return c.Scripts[i]
}
