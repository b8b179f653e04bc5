package container

import (
	"github.com/deboservilla/rayscript/internal/bytecode"
	"github.com/deboservilla/rayscript/internal/bytestream"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/rayserr"
	"github.com/deboservilla/rayscript/internal/script"
)

// readKeyTable materializes the single `KEY*` chunk that binds sections
// to their owning cast members.
func (r *Reader) readKeyTable() error {
	info := r.firstChunkInfo("KEY*")
	if info == nil {
		return rayserr.MissingChunkFourCC("KEY*")
	}
	data, err := r.GetChunkData("KEY*", info.ID)
	if err != nil {
		return err
	}
	s := bytestream.New(data, r.order)
	kt := &KeyTable{}
	kt.EntrySize = s.ReadUint16()
	kt.EntrySize2 = s.ReadUint16()
	kt.EntryCount = s.ReadUint32()
	kt.UsedCount = s.ReadUint32()
	kt.Entries = make([]KeyTableEntry, kt.EntryCount)
	for i := range kt.Entries {
		kt.Entries[i].SectionID = s.ReadInt32()
		kt.Entries[i].CastID = s.ReadInt32()
		kt.Entries[i].FourCC = s.ReadUint32()
	}
	r.KeyTable = kt
	return nil
}

// readConfig materializes the single `VWCF`/`DRCF` chunk, derives the
// human Director version, and validates the protection checksum. A
// mismatch is logged and marks Config non-writable, but never aborts the
// read: hand-edited containers commonly fail this check.
func (r *Reader) readConfig() error {
	info := r.firstChunkInfo("VWCF")
	if info == nil {
		info = r.firstChunkInfo("DRCF")
	}
	if info == nil {
		return rayserr.MissingChunkFourCC("VWCF")
	}
	data, err := r.GetChunkData(info.FourCC, info.ID)
	if err != nil {
		return err
	}
	cfg := decodeConfig(data)
	r.Config = cfg
	r.configID = info.ID
	r.ConfigWritable = true
	if got := cfg.ComputeChecksum(); got != cfg.Checksum {
		logger.Printf("container: %v", rayserr.ChecksumMismatch(cfg.Checksum, got))
		r.ConfigWritable = false
	}
	r.Version = director.HumanVersion(uint32(uint16(cfg.DirectorVersion)))
	r.DotSyntax = r.Version >= 700
	return nil
}

func decodeConfig(data []byte) *director.Config {
	s := bytestream.New(data, bytestream.BigEndian)
	c := &director.Config{}
	/*  0 */ c.Len = s.ReadUint16()
	/*  2 */ c.FileVersion = s.ReadUint16()
	/*  4 */ c.MovieTop = s.ReadInt16()
	/*  6 */ c.MovieLeft = s.ReadInt16()
	/*  8 */ c.MovieBottom = s.ReadInt16()
	/* 10 */ c.MovieRight = s.ReadInt16()
	/* 12 */ c.MinMember = s.ReadUint16()
	/* 14 */ c.MaxMember = s.ReadUint16()
	/* 16 */ c.Field9 = s.ReadUint8()
	/* 17 */ c.Field10 = s.ReadUint8()
	/* 18 */ c.Field11 = s.ReadInt16()
	/* 20 */ c.CommentFont = s.ReadInt16()
	/* 22 */ c.CommentSize = s.ReadInt16()
	/* 24 */ c.CommentStyle = s.ReadUint16()
	/* 26 */ c.StageColor = s.ReadInt16()
	/* 28 */ c.BitDepth = s.ReadInt16()
	/* 30 */ c.Field17 = s.ReadUint8()
	/* 31 */ c.Field18 = s.ReadUint8()
	/* 32 */ c.Field19 = s.ReadInt32()
	/* 36 */ c.DirectorVersion = s.ReadInt16()
	/* 38 */ c.Field21 = s.ReadInt16()
	/* 40 */ c.Field22 = s.ReadInt32()
	/* 44 */ c.Field23 = s.ReadInt32()
	/* 48 */ c.Field24 = s.ReadInt32()
	/* 52 */ c.Field25 = s.ReadUint8()
	/* 53 */ c.Field26 = s.ReadUint8()
	/* 54 */ c.FrameRate = s.ReadInt16()
	/* 56 */ c.Platform = s.ReadInt16()
	/* 58 */ c.Protection = s.ReadInt16()
	/* 60 */ c.Field29 = s.ReadInt32()
	/* 64 */ c.Checksum = s.ReadUint32()
	if int(c.Len) > s.Pos() {
		c.Remnants = append([]byte(nil), s.ReadBytes(int(c.Len)-s.Pos())...)
	}
	return c
}

// encodeConfig is the writer's inverse of decodeConfig, recomputing the
// checksum fresh so the emitted container is always self-consistent.
func encodeConfig(c *director.Config) []byte {
	buf := make([]byte, configSize(c))
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteUint16(c.Len)
	s.WriteUint16(c.FileVersion)
	s.WriteInt16(c.MovieTop)
	s.WriteInt16(c.MovieLeft)
	s.WriteInt16(c.MovieBottom)
	s.WriteInt16(c.MovieRight)
	s.WriteUint16(c.MinMember)
	s.WriteUint16(c.MaxMember)
	s.WriteUint8(c.Field9)
	s.WriteUint8(c.Field10)
	s.WriteInt16(c.Field11)
	s.WriteInt16(c.CommentFont)
	s.WriteInt16(c.CommentSize)
	s.WriteUint16(c.CommentStyle)
	s.WriteInt16(c.StageColor)
	s.WriteInt16(c.BitDepth)
	s.WriteUint8(c.Field17)
	s.WriteUint8(c.Field18)
	s.WriteInt32(c.Field19)
	s.WriteInt16(c.DirectorVersion)
	s.WriteInt16(c.Field21)
	s.WriteInt32(c.Field22)
	s.WriteInt32(c.Field23)
	s.WriteInt32(c.Field24)
	s.WriteUint8(c.Field25)
	s.WriteUint8(c.Field26)
	s.WriteInt16(c.FrameRate)
	s.WriteInt16(c.Platform)
	s.WriteInt16(c.Protection)
	s.WriteInt32(c.Field29)
	s.WriteUint32(c.ComputeChecksum())
	s.WriteBytes(c.Remnants)
	return buf
}

func configSize(c *director.Config) int {
	return int(c.Len)
}

// readCasts materializes the cast list (post-500 internal casts) or the
// single bare `CAS*` chunk (pre-500, or an external cast with no MCsL),
// then populates each cast's members and script bindings.
func (r *Reader) readCasts() error {
	internal := true

	if r.Version >= 500 {
		if info := r.firstChunkInfo("MCsL"); info != nil {
			data, err := r.GetChunkData("MCsL", info.ID)
			if err != nil {
				return err
			}
			r.CastList = decodeCastList(data, r.order)
			for _, entry := range r.CastList {
				sectionID := int32(-1)
				for _, keyEntry := range r.KeyTable.Entries {
					if keyEntry.CastID == entry.ID && director.FourCCToString(keyEntry.FourCC) == "CAS*" {
						sectionID = keyEntry.SectionID
						break
					}
				}
				if sectionID > 0 {
					cast, err := r.readCast(sectionID, entry.Name, entry.ID, entry.MinMember)
					if err != nil {
						return err
					}
					r.Casts = append(r.Casts, cast)
				}
			}
			return nil
		}
		internal = false
	}

	info := r.firstChunkInfo("CAS*")
	if info == nil {
		return rayserr.MissingChunkFourCC("CAS*")
	}
	name := "Internal"
	if !internal {
		name = "External"
	}
	cast, err := r.readCast(info.ID, name, 1024, r.Config.MinMember)
	if err != nil {
		return err
	}
	r.Casts = append(r.Casts, cast)
	return nil
}

func decodeCastList(data []byte, order bytestream.ByteOrder) []CastListEntry {
	s := bytestream.New(data, bytestream.BigEndian)
	dataOffset := s.ReadUint32()
	_ = s.ReadUint16() // unk0
	castCount := s.ReadUint16()
	itemsPerCast := s.ReadUint16()
	_ = s.ReadUint16() // unk1

	items := readListItems(s, int(dataOffset))
	entries := make([]CastListEntry, castCount)
	for i := range entries {
		base := i * int(itemsPerCast)
		if itemsPerCast >= 1 {
			entries[i].Name = itemMacRomanPascal(items, base+1)
		}
		if itemsPerCast >= 2 {
			entries[i].FilePath = itemMacRomanPascal(items, base+2)
		}
		if itemsPerCast >= 3 {
			entries[i].PreloadSettings = itemUint16(items, base+3, order)
		}
		if itemsPerCast >= 4 && base+4 < len(items) {
			is := bytestream.New(items[base+4], order)
			entries[i].MinMember = is.ReadUint16()
			entries[i].MaxMember = is.ReadUint16()
			entries[i].ID = is.ReadInt32()
		}
	}
	return entries
}

// readListItems parses the offset-table-plus-item-data region every
// list-style chunk shares: a u16 offset count at dataOffset, that many
// u32 offsets, a u32 total length, then the item bytes.
func readListItems(s *bytestream.Stream, dataOffset int) [][]byte {
	s.Seek(dataOffset)
	offsetTableLen := s.ReadUint16()
	offsetTable := make([]uint32, offsetTableLen)
	for i := range offsetTable {
		offsetTable[i] = s.ReadUint32()
	}
	itemsLen := s.ReadUint32()
	listOffset := s.Pos()

	items := make([][]byte, offsetTableLen)
	for i := range items {
		offset := offsetTable[i]
		nextOffset := itemsLen
		if i != int(offsetTableLen)-1 {
			nextOffset = offsetTable[i+1]
		}
		s.Seek(listOffset + int(offset))
		items[i] = s.ReadBytes(int(nextOffset) - int(offset))
	}
	return items
}

func itemString(items [][]byte, i int) string {
	if i >= len(items) {
		return ""
	}
	return string(items[i])
}

func itemPascalString(items [][]byte, i int) string {
	if i >= len(items) || len(items[i]) == 0 {
		return ""
	}
	s := bytestream.New(items[i], bytestream.BigEndian)
	return s.ReadPascalString()
}

// itemMacRomanPascal decodes a display string (cast names, file paths)
// from the Mac OS Roman encoding legacy movies store them in. Identifier
// strings stay raw so writable chunks round-trip byte for byte.
func itemMacRomanPascal(items [][]byte, i int) string {
	if i >= len(items) || len(items[i]) == 0 {
		return ""
	}
	s := bytestream.New(items[i], bytestream.BigEndian)
	n := int(s.ReadUint8())
	return s.ReadMacRoman(n)
}

func itemUint16(items [][]byte, i int, order bytestream.ByteOrder) uint16 {
	if i >= len(items) {
		return 0
	}
	return bytestream.New(items[i], order).ReadUint16()
}

// readCast materializes one `CAS*` chunk, resolves its script context
// through the key table, and binds each member to its script.
func (r *Reader) readCast(sectionID int32, name string, castID int32, minMember uint16) (*Cast, error) {
	data, err := r.GetChunkData("CAS*", sectionID)
	if err != nil {
		return nil, err
	}
	s := bytestream.New(data, bytestream.BigEndian)
	cast := &Cast{Name: name, ID: castID, Members: make(map[int32]*CastMember)}
	for !s.EOF() {
		cast.MemberIDs = append(cast.MemberIDs, s.ReadInt32())
	}

	for _, entry := range r.KeyTable.Entries {
		fourCC := director.FourCCToString(entry.FourCC)
		if entry.CastID == castID && (fourCC == "Lctx" || fourCC == "LctX") && r.ChunkExists(fourCC, entry.SectionID) {
			lctx, err := r.readScriptContext(fourCC, entry.SectionID)
			if err != nil {
				return nil, err
			}
			cast.Lctx = lctx
			break
		}
	}

	for i, memberSectionID := range cast.MemberIDs {
		if memberSectionID <= 0 {
			continue
		}
		member, err := r.readCastMember(memberSectionID)
		if err != nil {
			continue
		}
		member.MemberID = int32(i) + int32(minMember)
		if cast.Lctx != nil {
			if sc := cast.Lctx.Scripts[int32(member.GetScriptID())]; sc != nil {
				member.Script = sc
			}
		}
		cast.Members[member.MemberID] = member
	}
	return cast, nil
}

// readCastMember materializes one `CASt` chunk, dispatching between the
// pre-500 and post-500 layouts.
func (r *Reader) readCastMember(sectionID int32) (*CastMember, error) {
	if m, ok := r.members[sectionID]; ok {
		return m, nil
	}
	data, err := r.GetChunkData("CASt", sectionID)
	if err != nil {
		return nil, err
	}
	s := bytestream.New(data, bytestream.BigEndian)
	m := &CastMember{SectionID: sectionID, version: r.Version}

	if r.Version >= 500 {
		m.Type = MemberType(s.ReadUint32())
		infoLen := s.ReadUint32()
		specificDataLen := s.ReadUint32()
		if infoLen > 0 {
			m.Info = decodeCastInfo(s.ReadBytes(int(infoLen)))
		}
		m.SpecificData = s.ReadBytes(int(specificDataLen))
	} else {
		specificDataLen := s.ReadUint16()
		infoLen := s.ReadUint32()

		// The type byte (and flags, if present) are common but stored in
		// the specific data.
		specificDataLeft := int(specificDataLen)
		m.Type = MemberType(s.ReadUint8())
		specificDataLeft--
		if specificDataLeft > 0 {
			m.HasFlags1 = true
			m.Flags1 = s.ReadUint8()
			specificDataLeft--
		}
		m.SpecificData = s.ReadBytes(specificDataLeft)
		if infoLen > 0 {
			m.Info = decodeCastInfo(s.ReadBytes(int(infoLen)))
		}
	}

	if m.Type == ScriptMember {
		ss := bytestream.New(m.SpecificData, bytestream.BigEndian)
		m.ScriptType = ScriptType(ss.ReadUint16())
	}

	r.members[sectionID] = m
	return m, nil
}

func decodeCastInfo(data []byte) *CastInfo {
	s := bytestream.New(data, bytestream.BigEndian)
	ci := &CastInfo{}
	dataOffset := s.ReadUint32()
	ci.Unk1 = s.ReadUint32()
	ci.Unk2 = s.ReadUint32()
	ci.Flags = s.ReadUint32()
	ci.ScriptID = s.ReadUint32()
	ci.items = readListItems(s, int(dataOffset))
	ci.ScriptSrcText = itemString(ci.items, 0)
	ci.Name = itemPascalString(ci.items, 1)
	return ci
}

// readScriptContext materializes one `Lctx`/`LctX` chunk: the section
// map, the shared ScriptNames, every linked Script, and the factory
// back-links.
func (r *Reader) readScriptContext(fourCC string, sectionID int32) (*script.Context, error) {
	if ctx, ok := r.contexts[sectionID]; ok {
		return ctx, nil
	}
	capitalX := fourCC == "LctX"
	r.capitalX = r.capitalX || capitalX

	data, err := r.GetChunkData(fourCC, sectionID)
	if err != nil {
		return nil, err
	}
	s := bytestream.New(data, bytestream.BigEndian)
	_ = s.ReadInt32() // unknown0
	_ = s.ReadInt32() // unknown1
	entryCount := s.ReadUint32()
	_ = s.ReadUint32() // entryCount2
	entriesOffset := s.ReadUint16()
	_ = s.ReadInt16() // unknown2
	_ = s.ReadInt32() // unknown3
	_ = s.ReadInt32() // unknown4
	_ = s.ReadInt32() // unknown5
	lnamSectionID := s.ReadInt32()
	_ = s.ReadUint16() // validCount
	_ = s.ReadUint16() // flags
	_ = s.ReadInt16()  // freePointer

	s.Seek(int(entriesOffset))
	sectionIDs := make([]int32, entryCount)
	for i := range sectionIDs {
		_ = s.ReadInt32() // unknown0
		sectionIDs[i] = s.ReadInt32()
		_ = s.ReadUint16() // unknown1
		_ = s.ReadUint16() // unknown2
	}

	names, err := r.readScriptNames(lnamSectionID)
	if err != nil {
		return nil, err
	}
	ctx := &script.Context{Names: names, Scripts: make(map[int32]*script.Script)}
	r.contexts[sectionID] = ctx

	for i := uint32(1); i <= entryCount; i++ {
		scriptSectionID := sectionIDs[i-1]
		if scriptSectionID > -1 {
			sc, err := r.readScript(scriptSectionID, capitalX)
			if err != nil {
				return nil, err
			}
			sc.SetContext(ctx)
			ctx.Scripts[int32(i)] = sc
		}
	}

	for _, sc := range ctx.Scripts {
		if sc.IsFactory() {
			if parent := ctx.Scripts[int32(sc.ParentNumber)+1]; parent != nil {
				parent.Factories = append(parent.Factories, sc)
			}
		}
	}
	return ctx, nil
}

func (r *Reader) readScriptNames(sectionID int32) (*script.Names, error) {
	if names, ok := r.names[sectionID]; ok {
		return names, nil
	}
	data, err := r.GetChunkData("Lnam", sectionID)
	if err != nil {
		return nil, err
	}
	s := bytestream.New(data, bytestream.BigEndian)
	_ = s.ReadInt32() // unknown0
	_ = s.ReadInt32() // unknown1
	_ = s.ReadUint32() // len1
	_ = s.ReadUint32() // len2
	namesOffset := s.ReadUint16()
	namesCount := s.ReadUint16()

	s.Seek(int(namesOffset))
	names := &script.Names{Names: make([]string, namesCount)}
	for i := range names.Names {
		names.Names[i] = s.ReadPascalString()
	}
	r.names[sectionID] = names
	return names, nil
}

// readScript materializes one `Lscr` chunk: the fixed header, the name-id
// tables, the handlers (records then bodies), and the literals (records
// then data).
func (r *Reader) readScript(sectionID int32, capitalX bool) (*script.Script, error) {
	data, err := r.GetChunkData("Lscr", sectionID)
	if err != nil {
		return nil, err
	}
	// Lingo payloads are always big endian regardless of file endianness.
	s := bytestream.New(data, bytestream.BigEndian)
	sc := &script.Script{
		ID:       sectionID,
		Version:  r.Version,
		CapitalX: capitalX,
		DotSyntax: r.DotSyntax,
	}

	s.Seek(8)
	/*  8 */ sc.TotalLength = s.ReadUint32()
	/* 12 */ _ = s.ReadUint32() // totalLength2
	/* 16 */ sc.HeaderLength = s.ReadUint16()
	/* 18 */ sc.ScriptNumber = s.ReadUint16()
	/* 20 */ _ = s.ReadInt16() // unk20
	/* 22 */ sc.ParentNumber = s.ReadInt16()
	s.Seek(38)
	/* 38 */ sc.Flags = s.ReadUint32()
	/* 42 */ _ = s.ReadInt16() // unk42
	/* 44 */ sc.CastID = s.ReadInt32()
	/* 48 */ sc.FactoryNameID = s.ReadInt16()
	/* 50 */ _ = s.ReadUint16() // handlerVectorsCount
	/* 52 */ _ = s.ReadUint32() // handlerVectorsOffset
	/* 56 */ _ = s.ReadUint32() // handlerVectorsSize
	/* 60 */ propertiesCount := s.ReadUint16()
	/* 62 */ propertiesOffset := s.ReadUint32()
	/* 66 */ globalsCount := s.ReadUint16()
	/* 68 */ globalsOffset := s.ReadUint32()
	/* 72 */ handlersCount := s.ReadUint16()
	/* 74 */ handlersOffset := s.ReadUint32()
	/* 78 */ literalsCount := s.ReadUint16()
	/* 80 */ literalsOffset := s.ReadUint32()
	/* 84 */ _ = s.ReadUint32() // literalsDataCount
	/* 88 */ literalsDataOffset := s.ReadUint32()

	sc.PropertyNameIDs = readVarnamesTable(s, int(propertiesOffset), int(propertiesCount))
	sc.GlobalNameIDs = readVarnamesTable(s, int(globalsOffset), int(globalsCount))

	s.Seek(int(handlersOffset))
	sc.Handlers = make([]*script.Handler, handlersCount)
	for i := range sc.Handlers {
		sc.Handlers[i] = readHandlerRecord(s, sc, capitalX)
	}
	if sc.Flags&script.FlagEventScript != 0 && handlersCount > 0 {
		sc.Handlers[0].IsGenericEvent = true
	}
	for _, h := range sc.Handlers {
		readHandlerData(s, h)
	}

	s.Seek(int(literalsOffset))
	sc.Literals = readLiterals(s, int(literalsCount), int(literalsDataOffset), r.Version)

	return sc, nil
}

func readVarnamesTable(s *bytestream.Stream, offset, count int) []int32 {
	s.Seek(offset)
	out := make([]int32, count)
	for i := range out {
		out[i] = int32(s.ReadInt16())
	}
	return out
}

func readHandlerRecord(s *bytestream.Stream, sc *script.Script, capitalX bool) *script.Handler {
	h := &script.Handler{Script: sc}
	h.NameID = int32(s.ReadInt16())
	_ = s.ReadUint16() // vectorPos
	h.CompiledLen = s.ReadUint32()
	h.CompiledOffset = s.ReadUint32()
	h.ArgumentCount = s.ReadUint16()
	h.ArgumentOffset = s.ReadUint32()
	h.LocalsCount = s.ReadUint16()
	h.LocalsOffset = s.ReadUint32()
	h.GlobalsCount = s.ReadUint16()
	h.GlobalsOffset = s.ReadUint32()
	_ = s.ReadUint32() // unknown1
	_ = s.ReadUint16() // unknown2
	_ = s.ReadUint16() // lineCount
	_ = s.ReadUint32() // lineOffset
	if capitalX {
		h.StackHeight = s.ReadUint32()
	}
	return h
}

func readHandlerData(s *bytestream.Stream, h *script.Handler) {
	s.Seek(int(h.CompiledOffset))
	raw := s.ReadBytes(int(h.CompiledLen))
	h.Bytecode, h.PosToIndex = bytecode.Decode(raw)
	h.ArgumentNameIDs = readVarnamesTable(s, int(h.ArgumentOffset), int(h.ArgumentCount))
	h.LocalNameIDs = readVarnamesTable(s, int(h.LocalsOffset), int(h.LocalsCount))
	h.GlobalNameIDs = readVarnamesTable(s, int(h.GlobalsOffset), int(h.GlobalsCount))
}

func readLiterals(s *bytestream.Stream, count, dataOffset int, version uint32) []script.Literal {
	type rec struct {
		typ    uint32
		offset uint32
	}
	recs := make([]rec, count)
	for i := range recs {
		if version >= 500 {
			recs[i].typ = s.ReadUint32()
		} else {
			recs[i].typ = uint32(s.ReadUint16())
		}
		recs[i].offset = s.ReadUint32()
	}
	out := make([]script.Literal, count)
	for i, rc := range recs {
		lit := script.Literal{Type: script.LiteralType(rc.typ)}
		switch lit.Type {
		case script.LiteralInt:
			lit.Int = int32(rc.offset)
		case script.LiteralString:
			s.Seek(dataOffset + int(rc.offset))
			length := s.ReadUint32()
			if length > 0 {
				lit.Str = s.ReadString(int(length) - 1)
			}
		case script.LiteralFloat:
			s.Seek(dataOffset + int(rc.offset))
			switch s.ReadUint32() {
			case 8:
				lit.Float = s.ReadFloat64()
			case 10:
				lit.Float = s.ReadAppleFloat80()
			}
		}
		out[i] = lit
	}
	return out
}
