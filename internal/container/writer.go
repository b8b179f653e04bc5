package container

import (
	"io"
	"io/ioutil"

	"github.com/deboservilla/rayscript/internal/bytestream"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/orcaman/writerseeker"
)

// initialMap mirrors the `imap` chunk the writer regenerates.
type initialMap struct {
	One        uint32
	MmapOffset uint32
	Version    uint32
	Unused1    uint32
	Unused2    uint32
	Unused3    uint32
}

const initialMapSize = 24

func (im *initialMap) encode(order bytestream.ByteOrder) []byte {
	buf := make([]byte, initialMapSize)
	s := bytestream.New(buf, order)
	s.WriteUint32(im.One)
	s.WriteUint32(im.MmapOffset)
	s.WriteUint32(im.Version)
	s.WriteUint32(im.Unused1)
	s.WriteUint32(im.Unused2)
	s.WriteUint32(im.Unused3)
	return buf
}

// memoryMap mirrors the `mmap` chunk the writer regenerates.
type memoryMap struct {
	HeaderLength   uint16
	EntryLength    uint16
	ChunkCountMax  int32
	ChunkCountUsed int32
	JunkHead       int32
	JunkHead2      int32
	FreeHead       int32
	MapArray       []MemoryMapEntry
}

func (mm *memoryMap) size() int {
	return int(mm.HeaderLength) + int(mm.ChunkCountMax)*int(mm.EntryLength)
}

func (mm *memoryMap) encode(order bytestream.ByteOrder) []byte {
	buf := make([]byte, mm.size())
	s := bytestream.New(buf, order)
	s.WriteUint16(mm.HeaderLength)
	s.WriteUint16(mm.EntryLength)
	s.WriteInt32(mm.ChunkCountMax)
	s.WriteInt32(mm.ChunkCountUsed)
	s.WriteInt32(mm.JunkHead)
	s.WriteInt32(mm.JunkHead2)
	s.WriteInt32(mm.FreeHead)
	for i := range mm.MapArray {
		mm.MapArray[i].write(s)
	}
	return buf
}

// Write re-emits the container as an uncompressed memory-mapped file:
// the initial map and memory map are regenerated from scratch, writable
// chunks are re-encoded with recomputed sizes, and everything else is
// copied raw (decompressed, where the compression is implemented).
// Callers wanting an editable movie call Config.Unprotect first.
func (r *Reader) Write() ([]byte, error) {
	im := r.generateInitialMap()
	mm := r.generateMemoryMap(im)

	ws := &writerseeker.WriterSeeker{}
	for _, id := range r.writeOrder(mm) {
		if err := r.writeChunk(ws, im, mm, id); err != nil {
			return nil, err
		}
	}
	return ioutil.ReadAll(ws.Reader())
}

func (r *Reader) generateInitialMap() *initialMap {
	im := &initialMap{One: 1, MmapOffset: kRIFXHeaderSize + initialMapSize}
	if r.Version >= 500 {
		im.Version = uint32(uint16(r.Config.DirectorVersion))
	}
	return im
}

func (r *Reader) generateMemoryMap(im *initialMap) *memoryMap {
	maxID := int32(2) // the mmap's id
	for id := range r.chunks {
		if id > maxID {
			maxID = id
		}
	}

	mm := &memoryMap{
		HeaderLength:   24,
		EntryLength:    20,
		ChunkCountMax:  maxID + 1,
		ChunkCountUsed: maxID + 1,
		JunkHead:       -1,
		JunkHead2:      -1,
		FreeHead:       -1,
		MapArray:       make([]MemoryMapEntry, maxID+1),
	}

	// Fill the map with free entries, then overwrite the live ones.
	for i := range mm.MapArray {
		mm.MapArray[i] = MemoryMapEntry{
			FourCC: director.FourCC('f', 'r', 'e', 'e'),
			Flags:  12,
		}
	}

	nextOffset := int32(0)

	rifxEntry := &mm.MapArray[0]
	rifxEntry.FourCC = director.FourCC('R', 'I', 'F', 'X')
	rifxEntry.Offset = nextOffset
	rifxEntry.Flags = 1
	nextOffset += kRIFXHeaderSize

	imapEntry := &mm.MapArray[1]
	imapEntry.FourCC = director.FourCC('i', 'm', 'a', 'p')
	imapEntry.Len = initialMapSize
	imapEntry.Offset = nextOffset
	imapEntry.Flags = 1
	nextOffset += imapEntry.Len

	mmapEntry := &mm.MapArray[2]
	mmapEntry.FourCC = director.FourCC('m', 'm', 'a', 'p')
	mmapEntry.Len = int32(mm.size())
	mmapEntry.Offset = nextOffset
	nextOffset += mmapEntry.Len

	for id := int32(3); id <= int32(len(mm.MapArray))-1; id++ {
		info := r.chunks[id]
		if info == nil {
			continue
		}
		entry := &mm.MapArray[id]
		tag := info.FourCC
		entry.FourCC = director.FourCC(tag[0], tag[1], tag[2], tag[3])
		entry.Len = r.chunkSize(id)
		entry.Offset = nextOffset
		nextOffset += 8 + entry.Len
	}

	rifxEntry.Len = nextOffset - 8 // minus fourCC and len

	// Link the free entries, high id first.
	for id := int32(len(mm.MapArray)) - 1; id >= 0; id-- {
		entry := &mm.MapArray[id]
		if entry.FourCC == director.FourCC('f', 'r', 'e', 'e') {
			entry.Next = mm.FreeHead
			mm.FreeHead = id
		}
	}
	return mm
}

// chunkSize returns the length a chunk's body will occupy on write.
func (r *Reader) chunkSize(id int32) int32 {
	// Writable materialized chunks recompute their own size.
	if id == r.configID && r.ConfigWritable {
		return int32(configSize(r.Config))
	}
	if m, ok := r.members[id]; ok {
		return int32(castMemberSize(m))
	}

	info := r.chunks[id]

	// A compressed font map is replaced by the default blob for the
	// detected version.
	if info.Compression == director.FontMapCompressionGUID && r.fontMap != nil {
		return int32(len(r.fontMap(r.Version)))
	}

	// An implemented compression is undone on write.
	if r.compressionImplemented(info.Compression) {
		return info.UncompressedLen
	}

	return info.Len
}

// writeOrder lists every live chunk id: the three map slots first, then
// the body chunks in ascending id order (their offsets were laid out
// that way).
func (r *Reader) writeOrder(mm *memoryMap) []int32 {
	order := []int32{0, 1, 2}
	for id := int32(3); id < int32(len(mm.MapArray)); id++ {
		if r.chunks[id] != nil {
			order = append(order, id)
		}
	}
	return order
}

func (r *Reader) writeChunk(ws *writerseeker.WriterSeeker, im *initialMap, mm *memoryMap, id int32) error {
	entry := mm.MapArray[id]

	head := make([]byte, 8)
	hs := bytestream.New(head, r.order)
	hs.WriteUint32(entry.FourCC)
	hs.WriteInt32(entry.Len)
	if _, err := ws.Seek(int64(entry.Offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := ws.Write(head); err != nil {
		return err
	}

	var body []byte
	switch {
	case id == 0:
		// The RIFX "body" is the codec tag; an MC95 or FGDC source
		// container is rewritten as MC95, everything else as MV93.
		newCodec := codecMV93
		if r.codec == codecMC95 || r.codec == codecFGDC {
			newCodec = codecMC95
		}
		codecBuf := make([]byte, 4)
		cs := bytestream.New(codecBuf, r.order)
		cs.WriteUint32(director.FourCC(newCodec[0], newCodec[1], newCodec[2], newCodec[3]))
		_, err := ws.Write(codecBuf)
		return err
	case id == 1:
		body = im.encode(r.order)
	case id == 2:
		body = mm.encode(r.order)
	case id == r.configID && r.ConfigWritable:
		body = encodeConfig(r.Config)
	default:
		if m, ok := r.members[id]; ok {
			body = encodeCastMember(m)
		} else {
			var err error
			body, err = r.GetChunkData(entry4CC(entry), id)
			if err != nil {
				return err
			}
		}
	}

	if _, err := ws.Write(body); err != nil {
		return err
	}
	if int32(len(body)) != entry.Len {
		logger.Printf("container: size estimate for %q was incorrect (expected %d bytes, wrote %d)", entry4CC(entry), entry.Len, len(body))
	}
	return nil
}

func entry4CC(e MemoryMapEntry) string {
	return director.FourCCToString(e.FourCC)
}

// castInfoSize recomputes the list-chunk layout around the current item
// contents.
func castInfoSize(ci *CastInfo) int {
	return 20 + // header
		2 + 4*len(ci.items) + // offset table
		4 + castInfoItemsLen(ci) // items length + items
}

func castInfoItemsLen(ci *CastInfo) int {
	total := 0
	for i := range ci.items {
		total += castInfoItemSize(ci, i)
	}
	return total
}

func castInfoItemSize(ci *CastInfo, i int) int {
	switch i {
	case 0:
		return len(ci.ScriptSrcText)
	case 1:
		if len(ci.Name) > 0 {
			return 1 + len(ci.Name)
		}
		return 0
	default:
		return len(ci.items[i])
	}
}

func encodeCastInfo(ci *CastInfo) []byte {
	buf := make([]byte, castInfoSize(ci))
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteUint32(20) // dataOffset == header size
	s.WriteUint32(ci.Unk1)
	s.WriteUint32(ci.Unk2)
	s.WriteUint32(ci.Flags)
	s.WriteUint32(ci.ScriptID)

	// Offsets are recomputed from current item sizes before writing.
	s.WriteUint16(uint16(len(ci.items)))
	offset := uint32(0)
	for i := range ci.items {
		s.WriteUint32(offset)
		offset += uint32(castInfoItemSize(ci, i))
	}
	s.WriteUint32(offset)
	for i := range ci.items {
		switch i {
		case 0:
			s.WriteString(ci.ScriptSrcText)
		case 1:
			if len(ci.Name) > 0 {
				s.WritePascalString(ci.Name)
			}
		default:
			s.WriteBytes(ci.items[i])
		}
	}
	return buf
}

func castMemberSize(m *CastMember) int {
	infoLen := 0
	if m.Info != nil {
		infoLen = castInfoSize(m.Info)
	}
	specificDataLen := len(m.SpecificData)

	if m.version >= 500 {
		return 12 + infoLen + specificDataLen
	}
	specificDataLen++ // type
	if m.HasFlags1 {
		specificDataLen++
	}
	return 2 + 4 + specificDataLen + infoLen
}

func encodeCastMember(m *CastMember) []byte {
	buf := make([]byte, castMemberSize(m))
	s := bytestream.New(buf, bytestream.BigEndian)

	var infoBuf []byte
	if m.Info != nil {
		infoBuf = encodeCastInfo(m.Info)
	}

	if m.version >= 500 {
		s.WriteUint32(uint32(m.Type))
		s.WriteUint32(uint32(len(infoBuf)))
		s.WriteUint32(uint32(len(m.SpecificData)))
		s.WriteBytes(infoBuf)
		s.WriteBytes(m.SpecificData)
	} else {
		specificDataLen := len(m.SpecificData) + 1
		if m.HasFlags1 {
			specificDataLen++
		}
		s.WriteUint16(uint16(specificDataLen))
		s.WriteUint32(uint32(len(infoBuf)))
		s.WriteUint8(uint8(m.Type))
		if m.HasFlags1 {
			s.WriteUint8(m.Flags1)
		}
		s.WriteBytes(m.SpecificData)
		s.WriteBytes(infoBuf)
	}
	return buf
}
