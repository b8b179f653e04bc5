// Package container implements the RIFX chunk-based binary container
// format Director/Shockwave movies use: the memory-mapped and afterburner
// envelope variants, the lazy typed-chunk cache, and the writer path that
// regenerates the memory map and re-emits the envelope.
package container

import (
	"github.com/deboservilla/rayscript/internal/bytestream"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/script"
)

// FourCC tags used throughout the envelope and chunk directory.
const (
	fourCCRIFX = "RIFX"
	fourCCXFIR = "XFIR"
	fourCCimap = "imap"
	fourCCmmap = "mmap"
	fourCCfree = "free"
	fourCCjunk = "junk"

	codecMV93 = "MV93"
	codecMC95 = "MC95"
	codecFGDM = "FGDM"
	codecFGDC = "FGDC"
)

// kRIFXHeaderSize is the 12-byte envelope: magic, length, codec.
const kRIFXHeaderSize = 12

// ChunkInfo is one entry of the chunk directory: where a chunk's bytes
// live and what kind it is, independent of whether it has been
// materialized into a typed Go value yet.
type ChunkInfo struct {
	ID              int32
	FourCC          string
	Len             int32 // stored (possibly compressed) length
	UncompressedLen int32
	// Offset is an absolute file offset on the memory-map path; on the
	// afterburner path it is relative to the start of the FGEI body.
	Offset      int32
	Compression director.MoaID
}

// MemoryMapEntry mirrors one record of the `mmap` chunk.
type MemoryMapEntry struct {
	FourCC   uint32
	Len      int32
	Offset   int32
	Flags    uint16
	Unknown0 int16
	Next     int32
}

func (e *MemoryMapEntry) read(s *bytestream.Stream) {
	e.FourCC = s.ReadUint32()
	e.Len = s.ReadInt32()
	e.Offset = s.ReadInt32()
	e.Flags = s.ReadUint16()
	e.Unknown0 = s.ReadInt16()
	e.Next = s.ReadInt32()
}

func (e *MemoryMapEntry) write(s *bytestream.Stream) {
	s.WriteUint32(e.FourCC)
	s.WriteInt32(e.Len)
	s.WriteInt32(e.Offset)
	s.WriteUint16(e.Flags)
	s.WriteInt16(e.Unknown0)
	s.WriteInt32(e.Next)
}

// KeyTableEntry binds a section (chunk) id to the cast member or cast
// that owns it, tagged by the section's role (fourCC) within the owner.
type KeyTableEntry struct {
	SectionID int32
	CastID    int32
	FourCC    uint32
}

// KeyTable mirrors the `KEY*` chunk.
type KeyTable struct {
	EntrySize  uint16
	EntrySize2 uint16
	EntryCount uint32
	UsedCount  uint32
	Entries    []KeyTableEntry
}

// CastListEntry mirrors one record of the `MCsL` chunk.
type CastListEntry struct {
	Name            string
	FilePath        string
	PreloadSettings uint16
	MinMember       uint16
	MaxMember       uint16
	ID              int32
}

// MemberType mirrors the type tag of a `CASt` chunk.
type MemberType uint32

const (
	NullMember         MemberType = 0
	BitmapMember       MemberType = 1
	FilmLoopMember     MemberType = 2
	TextMember         MemberType = 3
	PaletteMember      MemberType = 4
	PictureMember      MemberType = 5
	SoundMember        MemberType = 6
	ButtonMember       MemberType = 7
	ShapeMember        MemberType = 8
	MovieMember        MemberType = 9
	DigitalVideoMember MemberType = 10
	ScriptMember       MemberType = 11
	RTEMember          MemberType = 12
)

// ScriptType classifies a script member's attachment point.
type ScriptType uint16

const (
	ScoreScript  ScriptType = 1
	MovieScript  ScriptType = 3
	ParentScript ScriptType = 7
)

// CastInfo mirrors the list-style info record embedded in a `CASt`
// chunk: a 20-byte header, an offset table, and an item-data region.
// Items 0 (script source text) and 1 (member name) are decoded; the rest
// are carried raw so a rewrite preserves them byte for byte.
type CastInfo struct {
	Unk1     uint32
	Unk2     uint32
	Flags    uint32
	ScriptID uint32

	ScriptSrcText string
	Name          string

	items [][]byte
}

// CastMember mirrors a `CASt` chunk. The pre-500 and post-500 layouts
// differ in field order and width; SpecificData keeps the type-specific
// payload raw except for script members, whose 16-bit script type is the
// only field this module interprets.
type CastMember struct {
	SectionID int32
	MemberID  int32 // cast-relative member number, assigned by Cast population

	Type         MemberType
	Info         *CastInfo
	SpecificData []byte
	HasFlags1    bool
	Flags1       uint8
	ScriptType   ScriptType

	// Script is the compiled Lingo script the key table binds to this
	// member, nil if it has none.
	Script *script.Script

	version uint32
}

// GetScriptID returns the owning script's context slot, 0 if none.
func (m *CastMember) GetScriptID() uint32 {
	if m.Info != nil {
		return m.Info.ScriptID
	}
	return 0
}

// GetName returns the member's name, "" if it has no info record.
func (m *CastMember) GetName() string {
	if m.Info != nil {
		return m.Info.Name
	}
	return ""
}

// SetScriptText replaces the member's stored script source text; the
// next Write re-encodes the info record around it.
func (m *CastMember) SetScriptText(text string) {
	if m.Info != nil {
		m.Info.ScriptSrcText = text
	}
}

// Cast is one cast library: its ordered member-id list plus the members
// and script context resolved through the key table.
type Cast struct {
	Name      string
	ID        int32
	MemberIDs []int32
	Members   map[int32]*CastMember // keyed by cast-relative member number
	Lctx      *script.Context
}
