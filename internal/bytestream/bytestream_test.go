package bytestream

import (
	"bytes"
	"math"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func TestReadUint32BigEndian(t *testing.T) {
	s := New([]byte{0x00, 0x00, 0x01, 0x00}, BigEndian)
	if got, want := s.ReadUint32(), uint32(256); got != want {
		t.Errorf("ReadUint32() = %d, want %d", got, want)
	}
}

func TestReadUint32LittleEndian(t *testing.T) {
	s := New([]byte{0x00, 0x01, 0x00, 0x00}, LittleEndian)
	if got, want := s.ReadUint32(), uint32(256); got != want {
		t.Errorf("ReadUint32() = %d, want %d", got, want)
	}
}

func TestReadPastEOFSaturates(t *testing.T) {
	s := New([]byte{0x01}, BigEndian)
	if got := s.ReadUint32(); got != 0 {
		t.Errorf("ReadUint32() past EOF = %d, want 0", got)
	}
	if !s.EOF() {
		t.Error("EOF() = false, want true after overrunning the buffer")
	}
}

func TestReadVarInt(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want uint32
	}{
		{"single byte", []byte{0x05}, 5},
		{"two bytes", []byte{0x81, 0x00}, 128},
		{"three bytes", []byte{0xff, 0xff, 0x7f}, (0x7f<<14 | 0x7f<<7 | 0x7f)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.in, BigEndian)
			if got := s.ReadVarInt(); got != tc.want {
				t.Errorf("ReadVarInt() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReadCString(t *testing.T) {
	s := New([]byte("hello\x00world"), BigEndian)
	if got, want := s.ReadCString(), "hello"; got != want {
		t.Errorf("ReadCString() = %q, want %q", got, want)
	}
	if got, want := s.Pos(), 6; got != want {
		t.Errorf("Pos() after ReadCString() = %d, want %d", got, want)
	}
}

func TestReadPascalString(t *testing.T) {
	s := New([]byte{5, 'h', 'e', 'l', 'l', 'o', 'x'}, BigEndian)
	if got, want := s.ReadPascalString(), "hello"; got != want {
		t.Errorf("ReadPascalString() = %q, want %q", got, want)
	}
}

func TestWriteBytesClampsToCapacity(t *testing.T) {
	buf := make([]byte, 2)
	s := New(buf, BigEndian)
	n := s.WriteBytes([]byte{1, 2, 3, 4})
	if n != 2 {
		t.Errorf("WriteBytes() = %d, want 2 (clamped)", n)
	}
	if buf[0] != 1 || buf[1] != 2 {
		t.Errorf("buf = %v, want [1 2]", buf)
	}
}

func TestWriteReadUint32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	w := New(buf, BigEndian)
	w.WriteUint32(0xdeadbeef)
	r := New(buf, BigEndian)
	if got, want := r.ReadUint32(), uint32(0xdeadbeef); got != want {
		t.Errorf("round trip = %#x, want %#x", got, want)
	}
}

// TestReadAppleFloat80Zero exercises the degenerate (all-zero exponent and
// fraction) case, which must decode to positive zero rather than panic.
func TestReadAppleFloat80Zero(t *testing.T) {
	s := New(make([]byte, 10), BigEndian)
	if got := s.ReadAppleFloat80(); got != 0 {
		t.Errorf("ReadAppleFloat80() = %v, want 0", got)
	}
}

// TestReadAppleFloat80One checks the bit-exact decode of 1.0, encoded as
// exponent 0x3FFF and a fraction whose top bit (the explicit leading one
// SANE uses) is set.
func TestReadAppleFloat80One(t *testing.T) {
	buf := []byte{0x3f, 0xff, 0x80, 0, 0, 0, 0, 0, 0, 0}
	s := New(buf, BigEndian)
	got := s.ReadAppleFloat80()
	if !floatsEqual(got, 1.0) {
		t.Errorf("ReadAppleFloat80() = %v, want 1.0", got)
	}
}

func floatsEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func deflate(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestReadZlib(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	compressed := deflate(t, payload)

	s := New(compressed, BigEndian)
	out, err := s.ReadZlib(len(compressed), len(payload))
	if err != nil {
		t.Fatalf("ReadZlib: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Errorf("ReadZlib = %q, want %q", out, payload)
	}
}

// A declared uncompressed length that does not match the stream is a
// hard error, not a short read.
func TestReadZlibLengthMismatch(t *testing.T) {
	payload := []byte("abcdef")
	compressed := deflate(t, payload)

	s := New(compressed, BigEndian)
	if _, err := s.ReadZlib(len(compressed), len(payload)+1); err == nil {
		t.Error("ReadZlib with overlong expectation did not fail")
	}
	s = New(compressed, BigEndian)
	if _, err := s.ReadZlib(len(compressed), len(payload)-1); err == nil {
		t.Error("ReadZlib with short expectation did not fail")
	}
}
