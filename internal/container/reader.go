package container

import (
	"io"
	"log"

	"github.com/deboservilla/rayscript/internal/bytestream"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/rayserr"
	"github.com/deboservilla/rayscript/internal/script"
)

// logger is the package-level diagnostic sink. The zero value is the
// standard library's default logger (os.Stderr).
var logger = log.Default()

// SetLogger redirects non-fatal container diagnostics (an unrecognized
// compression GUID, a chunk whose written size did not match its
// estimate) to l. Passing nil silences them.
func SetLogger(l *log.Logger) {
	if l == nil {
		logger = log.New(io.Discard, "", 0)
		return
	}
	logger = l
}

// Reader is an open Director/Shockwave movie container: a directory of
// chunks materialized lazily and cached, plus the resolved key table,
// casts, and script contexts needed to walk from a cast member to its
// compiled handlers.
type Reader struct {
	ra   io.ReaderAt
	size int64

	order bytestream.ByteOrder
	codec string // RIFX envelope codec tag: MV93, MC95, FGDM or FGDC

	afterburner   bool
	fileBuf       []byte // afterburner only: the whole file, read once
	ilsBodyOffset int

	chunks         map[int32]*ChunkInfo
	chunksByFourCC map[string][]int32
	cachedViews    map[int32][]byte

	// materialized typed chunks, for the writer's size/write dispatch
	configID int32
	members  map[int32]*CastMember     // by section id
	contexts map[int32]*script.Context // by Lctx section id
	names    map[int32]*script.Names   // by Lnam section id
	capitalX bool

	Config         *director.Config
	ConfigWritable bool
	KeyTable       *KeyTable
	CastList       []CastListEntry
	Casts          []*Cast

	Version           uint32
	DotSyntax         bool
	FverVersionString string

	fontMap     func(version uint32) []byte
	soundDecode func(in []byte, uncompressedLen int) ([]byte, error)
}

// Option configures Open.
type Option func(*Reader)

// WithFontMap supplies the external provider of default font-map blobs,
// keyed by detected Director version, for chunks compressed with the
// FONTMAP GUID.
func WithFontMap(f func(version uint32) []byte) Option {
	return func(r *Reader) { r.fontMap = f }
}

// WithSoundDecoder supplies the external sound-payload decoder for
// chunks compressed with the SND GUID.
func WithSoundDecoder(f func(in []byte, uncompressedLen int) ([]byte, error)) Option {
	return func(r *Reader) { r.soundDecode = f }
}

// Open parses the RIFX envelope readable through ra (size bytes long)
// and resolves the container's key table, Config, casts, and script
// contexts. The memory-mapped path reads individual chunk extents
// lazily; the afterburner path slurps and inflates its maps up front
// since every later read depends on them.
func Open(ra io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	r := &Reader{
		ra:             ra,
		size:           size,
		chunks:         make(map[int32]*ChunkInfo),
		chunksByFourCC: make(map[string][]int32),
		cachedViews:    make(map[int32][]byte),
		configID:       -1,
		members:        make(map[int32]*CastMember),
		contexts:       make(map[int32]*script.Context),
		names:          make(map[int32]*script.Names),
	}
	for _, opt := range opts {
		opt(r)
	}

	header, err := r.readAt(0, kRIFXHeaderSize)
	if err != nil {
		return nil, rayserr.UnsupportedFormat("truncated header")
	}
	switch string(header[0:4]) {
	case fourCCRIFX:
		r.order = bytestream.BigEndian
	case fourCCXFIR:
		r.order = bytestream.LittleEndian
	default:
		return nil, rayserr.UnsupportedFormat(string(header[0:4]))
	}
	// The envelope length is ignored on read: chunks are walked by
	// directory, and the writer recomputes it from scratch.
	codec := string(header[8:12])
	if r.order == bytestream.LittleEndian {
		codec = reverse4(codec)
	}
	r.codec = codec

	switch codec {
	case codecMV93, codecMC95:
		if err := r.readMemoryMap(); err != nil {
			return nil, err
		}
	case codecFGDM, codecFGDC:
		r.afterburner = true
		if err := r.readAfterburnerMap(); err != nil {
			return nil, err
		}
	default:
		return nil, rayserr.UnsupportedFormat(codec)
	}

	if err := r.readKeyTable(); err != nil {
		return nil, err
	}
	if err := r.readConfig(); err != nil {
		return nil, err
	}
	if err := r.readCasts(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) readAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := r.ra.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

// reverse4 flips a four-character tag, undoing the byte swap a
// little-endian container applies to its codec field.
func reverse4(s string) string {
	return string([]byte{s[3], s[2], s[1], s[0]})
}

// readChunkDataAt reads the 8-byte chunk header at absolute offset off,
// validates it against the expected fourCC and length, and returns the
// body. A length of -1 accepts whatever the inline header declares
// (used to bootstrap imap/mmap before the directory exists).
func (r *Reader) readChunkDataAt(off int64, fourCC string, length int32) ([]byte, error) {
	head, err := r.readAt(off, 8)
	if err != nil {
		return nil, rayserr.UnsupportedFormat("truncated chunk header")
	}
	hs := bytestream.New(head, r.order)
	validFourCC := director.FourCCToString(hs.ReadUint32())
	validLen := hs.ReadInt32()
	if length == -1 {
		length = validLen
	}
	if fourCC != validFourCC || length != validLen {
		return nil, rayserr.WrongFourCC(int32(off), fourCC, validFourCC)
	}
	body, err := r.readAt(off+8, int(length))
	if err != nil {
		return nil, rayserr.UnsupportedFormat("truncated chunk body")
	}
	return body, nil
}

// readMemoryMap bootstraps the chunk directory from the uncompressed
// imap and mmap chunks that follow the RIFX header.
func (r *Reader) readMemoryMap() error {
	imapData, err := r.readChunkDataAt(kRIFXHeaderSize, fourCCimap, -1)
	if err != nil {
		return err
	}
	imap := bytestream.New(imapData, r.order)
	_ = imap.ReadUint32() // one
	mmapOffset := imap.ReadUint32()

	mmapData, err := r.readChunkDataAt(int64(mmapOffset), fourCCmmap, -1)
	if err != nil {
		return err
	}
	mm := bytestream.New(mmapData, r.order)
	_ = mm.ReadUint16() // headerLength
	_ = mm.ReadUint16() // entryLength
	_ = mm.ReadInt32()  // chunkCountMax
	chunkCountUsed := mm.ReadInt32()
	_ = mm.ReadInt32() // junkHead
	_ = mm.ReadInt32() // junkHead2
	_ = mm.ReadInt32() // freeHead

	for id := int32(0); id < chunkCountUsed; id++ {
		var e MemoryMapEntry
		e.read(mm)

		fourCC := director.FourCCToString(e.FourCC)
		if fourCC == fourCCfree || fourCC == fourCCjunk {
			continue
		}
		r.addChunkInfo(&ChunkInfo{
			ID:              id,
			FourCC:          fourCC,
			Len:             e.Len,
			UncompressedLen: e.Len,
			Offset:          e.Offset,
			Compression:     director.NullCompressionGUID,
		})
	}
	return nil
}

func (r *Reader) addChunkInfo(ci *ChunkInfo) {
	r.chunks[ci.ID] = ci
	r.chunksByFourCC[ci.FourCC] = append(r.chunksByFourCC[ci.FourCC], ci.ID)
}

// readAfterburnerMap parses the Fver/Fcdr/ABMP/FGEI sequence: the
// compression GUID table, the zlib-compressed resource map, and the
// initial load segment whose inflated body pre-populates the chunk view
// cache.
func (r *Reader) readAfterburnerMap() error {
	buf, err := r.readAt(0, int(r.size))
	if err != nil {
		return rayserr.UnsupportedFormat("truncated afterburner body")
	}
	r.fileBuf = buf
	s := bytestream.New(buf, r.order)
	s.Seek(kRIFXHeaderSize)

	// File version
	if director.FourCCToString(s.ReadUint32()) != "Fver" {
		return rayserr.MissingSubBlob("Fver")
	}
	fverLength := s.ReadVarInt()
	start := s.Pos()
	_ = s.ReadVarInt() // version
	if uint32(s.Pos()-start) < fverLength {
		// Newer movies append a second version varint and a Pascal-style
		// product version string after the version value.
		_ = s.ReadVarInt()
		r.FverVersionString = s.ReadPascalString()
	}
	if uint32(s.Pos()-start) != fverLength {
		logger.Printf("container: expected Fver of length %d but read %d bytes", fverLength, s.Pos()-start)
		s.Seek(start + int(fverLength))
	}

	// Compression types
	if director.FourCCToString(s.ReadUint32()) != "Fcdr" {
		return rayserr.MissingSubBlob("Fcdr")
	}
	fcdrLength := s.ReadVarInt()
	fcdrBuf, err := s.ReadZlibUnbounded(int(fcdrLength))
	if err != nil {
		return rayserr.DecompressionFailed(-1, err)
	}
	fcdr := bytestream.New(fcdrBuf, r.order)
	compressionTypeCount := fcdr.ReadUint16()
	compressionIDs := make([]director.MoaID, compressionTypeCount)
	for i := range compressionIDs {
		compressionIDs[i] = readMoaID(fcdr)
	}
	for i := uint16(0); i < compressionTypeCount; i++ {
		_ = fcdr.ReadCString() // human-readable codec name
	}

	// Afterburner map
	if director.FourCCToString(s.ReadUint32()) != "ABMP" {
		return rayserr.MissingSubBlob("ABMP")
	}
	abmpLength := s.ReadVarInt()
	abmpEnd := s.Pos() + int(abmpLength)
	_ = s.ReadVarInt() // compression type of the map itself; always zlib
	abmpUncompLength := s.ReadVarInt()
	abmpBuf, err := s.ReadZlib(abmpEnd-s.Pos(), int(abmpUncompLength))
	if err != nil {
		return rayserr.DecompressionFailed(-1, err)
	}
	ab := bytestream.New(abmpBuf, r.order)
	_ = ab.ReadVarInt() // unk1
	_ = ab.ReadVarInt() // unk2
	resCount := ab.ReadVarInt()
	for i := uint32(0); i < resCount; i++ {
		resID := int32(ab.ReadVarInt())
		offset := int32(ab.ReadVarInt())
		compSize := int32(ab.ReadVarInt())
		uncompSize := int32(ab.ReadVarInt())
		compressionType := ab.ReadVarInt()
		tag := director.FourCCToString(ab.ReadUint32())

		ci := &ChunkInfo{
			ID:              resID,
			FourCC:          tag,
			Len:             compSize,
			UncompressedLen: uncompSize,
			Offset:          offset,
		}
		if compressionType < uint32(len(compressionIDs)) {
			ci.Compression = compressionIDs[compressionType]
		}
		r.addChunkInfo(ci)
	}

	// Initial load segment
	ilsInfo := r.chunks[2]
	if ilsInfo == nil {
		return rayserr.MissingSubBlob("ILS")
	}
	if director.FourCCToString(s.ReadUint32()) != "FGEI" {
		return rayserr.MissingSubBlob("FGEI")
	}
	_ = s.ReadVarInt() // unk1
	r.ilsBodyOffset = s.Pos()
	ilsBuf, err := s.ReadZlib(int(ilsInfo.Len), int(ilsInfo.UncompressedLen))
	if err != nil {
		return rayserr.DecompressionFailed(2, err)
	}
	ils := bytestream.New(ilsBuf, r.order)
	for !ils.EOF() {
		resID := int32(ils.ReadVarInt())
		info := r.chunks[resID]
		if info == nil {
			logger.Printf("container: ILS carries unknown resource %d", resID)
			break
		}
		r.cachedViews[resID] = ils.ReadBytes(int(info.Len))
	}
	return nil
}

func readMoaID(s *bytestream.Stream) director.MoaID {
	var g director.MoaID
	g.Data1 = s.ReadUint32()
	g.Data2 = s.ReadUint16()
	g.Data3 = s.ReadUint16()
	for i := range g.Data4 {
		g.Data4[i] = s.ReadUint8()
	}
	return g
}
