// Package bytestream implements the endian-aware cursor used to read and
// write Director/Shockwave container bytes: fixed-width integers, Apple
// SANE 80-bit extended floats, 7-bit continuation var-ints, and Pascal/C
// strings. Reads past the end of the buffer saturate to the zero value
// rather than failing; callers that must detect truncation check EOF
// themselves.
package bytestream

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"math"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
)

// ByteOrder selects how multi-byte fields are interpreted. The Lingo
// bytecode payload is always BigEndian regardless of the container's own
// envelope endianness.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// Stream is a cursor over a byte slice. It never owns the slice; callers
// may share one buffer between several sub-views.
type Stream struct {
	buf   []byte
	pos   int
	Order ByteOrder
}

// New wraps buf for reading or writing, starting at position 0 with the
// given byte order.
func New(buf []byte, order ByteOrder) *Stream {
	return &Stream{buf: buf, Order: order}
}

func (s *Stream) Len() int    { return len(s.buf) }
func (s *Stream) Pos() int    { return s.pos }
func (s *Stream) Bytes() []byte { return s.buf }

func (s *Stream) Seek(pos int) { s.pos = pos }
func (s *Stream) Skip(n int)   { s.pos += n }

// EOF reports whether the cursor has reached or passed the end of the
// buffer.
func (s *Stream) EOF() bool { return s.pos >= len(s.buf) }

func (s *Stream) pastEOF(after int) bool { return s.pos+after > len(s.buf) }

// ReadBytes returns a sub-view of length n starting at the cursor and
// advances the cursor by n. Past-EOF reads return nil.
func (s *Stream) ReadBytes(n int) []byte {
	p := s.pos
	s.pos += n
	if s.pastEOF(0) {
		return nil
	}
	return s.buf[p : p+n]
}

// SubStream returns a new Stream over the same underlying bytes read by
// ReadBytes(n), inheriting the byte order.
func (s *Stream) SubStream(n int) *Stream {
	b := s.ReadBytes(n)
	return &Stream{buf: b, Order: s.Order}
}

func (s *Stream) ReadUint8() uint8 {
	p := s.pos
	s.pos++
	if s.pastEOF(0) {
		return 0
	}
	return s.buf[p]
}

func (s *Stream) ReadInt8() int8 { return int8(s.ReadUint8()) }

func (s *Stream) ReadUint16() uint16 {
	p := s.pos
	s.pos += 2
	if s.pastEOF(0) {
		return 0
	}
	if s.Order == LittleEndian {
		return binary.LittleEndian.Uint16(s.buf[p:])
	}
	return binary.BigEndian.Uint16(s.buf[p:])
}

func (s *Stream) ReadInt16() int16 { return int16(s.ReadUint16()) }

func (s *Stream) ReadUint32() uint32 {
	p := s.pos
	s.pos += 4
	if s.pastEOF(0) {
		return 0
	}
	if s.Order == LittleEndian {
		return binary.LittleEndian.Uint32(s.buf[p:])
	}
	return binary.BigEndian.Uint32(s.buf[p:])
}

func (s *Stream) ReadInt32() int32 { return int32(s.ReadUint32()) }

// ReadFloat64 reads an 8-byte IEEE-754 double.
func (s *Stream) ReadFloat64() float64 {
	p := s.pos
	s.pos += 8
	if s.pastEOF(0) {
		return 0
	}
	var bits uint64
	if s.Order == LittleEndian {
		bits = binary.LittleEndian.Uint64(s.buf[p:])
	} else {
		bits = binary.BigEndian.Uint64(s.buf[p:])
	}
	return math.Float64frombits(bits)
}

// ReadAppleFloat80 decodes the 10-byte Apple SANE extended float format,
// ported from the algorithm ScummVM uses for Director's Lingo bytecode
// (engines/director/lingo/lingo-bytecode.cpp, credited there to
// moralrecordings).
func (s *Stream) ReadAppleFloat80() float64 {
	p := s.pos
	s.pos += 10
	if s.pastEOF(0) {
		return 0
	}

	exponent := binary.BigEndian.Uint16(s.buf[p:])
	f64sign := uint64(exponent&0x8000) << 48
	exponent &= 0x7fff
	fraction := binary.BigEndian.Uint64(s.buf[p+2:]) & 0x7fffffffffffffff

	var f64exp uint64
	switch {
	case exponent == 0:
		f64exp = 0
	case exponent == 0x7fff:
		f64exp = 0x7ff
	default:
		normexp := int32(exponent) - 0x3fff
		if normexp < -0x3fe || normexp >= 0x3ff {
			// Exponent does not fit in a double; saturate rather than panic
			// since decompiler paths must never abort on malformed input.
			if normexp < 0 {
				return 0
			}
			return math.Inf(1)
		}
		f64exp = uint64(normexp + 0x3ff)
	}
	f64exp <<= 52
	f64fract := fraction >> 11
	bits := f64sign | f64exp | f64fract
	return math.Float64frombits(bits)
}

// ReadVarInt decodes a 7-bit MSB-first continuation-coded unsigned integer:
// each byte contributes its low 7 bits, most-significant byte first, and
// decoding stops after a byte whose top bit is clear.
func (s *Stream) ReadVarInt() uint32 {
	var val uint32
	for {
		b := s.ReadUint8()
		val = (val << 7) | uint32(b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	return val
}

// ReadString reads len raw bytes and returns them as a string, without any
// encoding conversion.
func (s *Stream) ReadString(n int) string {
	b := s.ReadBytes(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// ReadMacRoman reads len bytes and decodes them from Mac OS Roman, the
// text encoding of legacy (pre-Unicode) Director containers. The
// container package reads only cast-list display names and paths
// through it; other strings are kept as raw bytes.
func (s *Stream) ReadMacRoman(n int) string {
	b := s.ReadBytes(n)
	if b == nil {
		return ""
	}
	out, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// ReadCString reads a NUL-terminated string.
func (s *Stream) ReadCString() string {
	var out []byte
	for !s.pastEOF(0) {
		ch := s.ReadUint8()
		if ch == 0 {
			break
		}
		out = append(out, ch)
	}
	return string(out)
}

// ReadPascalString reads a single length byte followed by that many bytes.
func (s *Stream) ReadPascalString() string {
	n := int(s.ReadUint8())
	return s.ReadString(n)
}

// ReadZlib inflates len compressed bytes at the cursor into exactly outLen
// bytes. The cursor advances past the compressed region whether or not
// inflation succeeds.
func (s *Stream) ReadZlib(length, outLen int) ([]byte, error) {
	p := s.pos
	s.pos += length
	if s.pastEOF(0) {
		return nil, io.ErrUnexpectedEOF
	}
	zr, err := zlib.NewReader(bytes.NewReader(s.buf[p : p+length]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := ioutil.ReadAll(io.LimitReader(zr, int64(outLen)+1))
	if err != nil {
		return nil, err
	}
	if len(out) != outLen {
		return nil, io.ErrUnexpectedEOF
	}
	return out, nil
}

// ReadZlibUnbounded inflates length compressed bytes at the cursor
// without a known output size, for streams whose uncompressed length is
// only discoverable from their own contents.
func (s *Stream) ReadZlibUnbounded(length int) ([]byte, error) {
	p := s.pos
	s.pos += length
	if s.pastEOF(0) {
		return nil, io.ErrUnexpectedEOF
	}
	zr, err := zlib.NewReader(bytes.NewReader(s.buf[p : p+length]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return ioutil.ReadAll(zr)
}

// Write operations are symmetric with the Read* set above. WriteBytes
// silently clamps to the remaining capacity of the buffer rather than
// growing it or erroring, matching the saturating-read semantics above.

func (s *Stream) WriteBytes(b []byte) int {
	p := s.pos
	s.pos += len(b)
	n := len(b)
	if p >= len(s.buf) {
		return 0
	}
	if p+n > len(s.buf) {
		n = len(s.buf) - p
	}
	copy(s.buf[p:p+n], b[:n])
	return n
}

func (s *Stream) WriteUint8(v uint8) { s.WriteBytes([]byte{v}) }
func (s *Stream) WriteInt8(v int8)   { s.WriteUint8(uint8(v)) }

func (s *Stream) WriteUint16(v uint16) {
	var b [2]byte
	if s.Order == LittleEndian {
		binary.LittleEndian.PutUint16(b[:], v)
	} else {
		binary.BigEndian.PutUint16(b[:], v)
	}
	s.WriteBytes(b[:])
}

func (s *Stream) WriteInt16(v int16) { s.WriteUint16(uint16(v)) }

func (s *Stream) WriteUint32(v uint32) {
	var b [4]byte
	if s.Order == LittleEndian {
		binary.LittleEndian.PutUint32(b[:], v)
	} else {
		binary.BigEndian.PutUint32(b[:], v)
	}
	s.WriteBytes(b[:])
}

func (s *Stream) WriteInt32(v int32) { s.WriteUint32(uint32(v)) }

func (s *Stream) WriteString(v string) int { return s.WriteBytes([]byte(v)) }

func (s *Stream) WritePascalString(v string) {
	s.WriteUint8(uint8(len(v)))
	s.WriteString(v)
}
