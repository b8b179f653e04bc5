package rayscript

import (
	"bytes"
	"strings"
	"testing"

	"github.com/deboservilla/rayscript/internal/bytestream"
	"github.com/deboservilla/rayscript/internal/director"
)

// The fixture is a complete pre-Unicode (Director 4) movie: config, key
// table, one internal cast with a single script member, and the Lingo
// context/names/script chunks behind it. The script's sole handler is
//
//	on exitFrame
//	  repeat with i = 1 to 10
//	  end repeat
//	end

type fixtureChunk struct {
	fourCC string
	body   []byte
}

func buildMovie(chunks []fixtureChunk) []byte {
	n := len(chunks)
	mmapLen := 24 + (3+n)*20

	imapOff := 12
	mmapOff := 44
	off := mmapOff + 8 + mmapLen
	chunkOff := make([]int, n)
	for i, c := range chunks {
		chunkOff[i] = off
		off += 8 + len(c.body)
	}
	total := off

	buf := make([]byte, total)
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteString("RIFX")
	s.WriteInt32(int32(total - 8))
	s.WriteString("MV93")

	s.Seek(imapOff)
	s.WriteString("imap")
	s.WriteInt32(24)
	s.WriteUint32(1)
	s.WriteUint32(uint32(mmapOff))
	s.WriteUint32(0)
	s.WriteUint32(0)
	s.WriteUint32(0)
	s.WriteUint32(0)

	s.Seek(mmapOff)
	s.WriteString("mmap")
	s.WriteInt32(int32(mmapLen))
	s.WriteUint16(24)
	s.WriteUint16(20)
	s.WriteInt32(int32(3 + n))
	s.WriteInt32(int32(3 + n))
	s.WriteInt32(-1)
	s.WriteInt32(-1)
	s.WriteInt32(-1)
	writeEntry := func(fourCC string, length, offset int) {
		s.WriteString(fourCC)
		s.WriteInt32(int32(length))
		s.WriteInt32(int32(offset))
		s.WriteUint16(0)
		s.WriteInt16(0)
		s.WriteInt32(0)
	}
	writeEntry("RIFX", total-8, 0)
	writeEntry("imap", 24, imapOff)
	writeEntry("mmap", mmapLen, mmapOff)
	for i, c := range chunks {
		writeEntry(c.fourCC, len(c.body), chunkOff[i])
	}

	for i, c := range chunks {
		s.Seek(chunkOff[i])
		s.WriteString(c.fourCC)
		s.WriteInt32(int32(len(c.body)))
		s.WriteBytes(c.body)
	}
	return buf
}

func configBody(protection int16) []byte {
	c := &director.Config{
		Len: 72, FileVersion: 0x45B,
		MovieBottom: 480, MovieRight: 640,
		MinMember: 1, MaxMember: 1,
		DirectorVersion: 0x45B,
		FrameRate:       30,
		Platform:        1,
		Protection:      protection,
	}
	buf := make([]byte, 72)
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteUint16(c.Len)
	s.WriteUint16(c.FileVersion)
	s.WriteInt16(c.MovieTop)
	s.WriteInt16(c.MovieLeft)
	s.WriteInt16(c.MovieBottom)
	s.WriteInt16(c.MovieRight)
	s.WriteUint16(c.MinMember)
	s.WriteUint16(c.MaxMember)
	s.Seek(36)
	s.WriteInt16(c.DirectorVersion)
	s.Seek(54)
	s.WriteInt16(c.FrameRate)
	s.WriteInt16(c.Platform)
	s.WriteInt16(c.Protection)
	s.Seek(64)
	s.WriteUint32(c.ComputeChecksum())
	return buf
}

func keyTableBody() []byte {
	buf := make([]byte, 12+12)
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteUint16(12)
	s.WriteUint16(12)
	s.WriteUint32(1)
	s.WriteUint32(1)
	// The cast (id 1024) owns the script context in section 7.
	s.WriteInt32(7)
	s.WriteInt32(1024)
	s.WriteString("Lctx")
	return buf
}

func castInfoBody() []byte {
	// 20-byte header, two empty items; scriptId 1 binds the member to
	// context slot 1.
	buf := make([]byte, 20+2+2*4+4)
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteUint32(20) // dataOffset
	s.WriteUint32(0)
	s.WriteUint32(0)
	s.WriteUint32(0)
	s.WriteUint32(1) // scriptId
	s.WriteUint16(2) // offsetTableLen
	s.WriteUint32(0)
	s.WriteUint32(0)
	s.WriteUint32(0) // itemsLen
	return buf
}

func castMemberBody() []byte {
	info := castInfoBody()
	buf := make([]byte, 2+4+2+2+len(info))
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteUint16(4) // specificDataLen: type + flags1 + scriptType
	s.WriteUint32(uint32(len(info)))
	s.WriteUint8(11) // script member
	s.WriteUint8(0)  // flags1
	s.WriteUint16(3) // movie script
	s.WriteBytes(info)
	return buf
}

func castBody() []byte {
	buf := make([]byte, 4)
	bytestream.New(buf, bytestream.BigEndian).WriteInt32(6) // member chunk id
	return buf
}

func scriptContextBody() []byte {
	buf := make([]byte, 96+12)
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteInt32(0)  // unknown0
	s.WriteInt32(0)  // unknown1
	s.WriteUint32(1) // entryCount
	s.WriteUint32(1) // entryCount2
	s.WriteUint16(96)
	s.WriteInt16(0)
	s.WriteInt32(0)
	s.WriteInt32(0)
	s.WriteInt32(0)
	s.WriteInt32(9) // lnamSectionID
	s.WriteUint16(1)
	s.WriteUint16(0)
	s.WriteInt16(-1)
	s.Seek(96)
	s.WriteInt32(0)
	s.WriteInt32(8) // the script lives in section 8
	s.WriteUint16(0)
	s.WriteUint16(0)
	return buf
}

func scriptNamesBody() []byte {
	buf := make([]byte, 20+10+2)
	s := bytestream.New(buf, bytestream.BigEndian)
	s.WriteInt32(0)
	s.WriteInt32(0)
	s.WriteUint32(0)
	s.WriteUint32(0)
	s.WriteUint16(20) // namesOffset
	s.WriteUint16(2)  // namesCount
	s.WritePascalString("exitFrame")
	s.WritePascalString("i")
	return buf
}

func scriptBody() []byte {
	handlerBytecode := []byte{
		0x41, 0x01, // pushint8 1
		0x52, 0x00, // setlocal i
		0x4c, 0x00, // getlocal i
		0x41, 0x0a, // pushint8 10
		0x0d,       // lteq
		0x55, 0x0b, // jmpifz -> 20
		0x41, 0x01, // pushint8 1
		0x4c, 0x00, // getlocal i
		0x05,       // add
		0x52, 0x00, // setlocal i
		0x54, 0x0e, // endrepeat -> 4
		0x01, // ret
	}
	const (
		headerLen      = 92
		recordLen      = 42
		compiledOffset = headerLen + recordLen
	)
	localsOffset := compiledOffset + len(handlerBytecode)
	total := localsOffset + 2

	buf := make([]byte, total)
	s := bytestream.New(buf, bytestream.BigEndian)
	s.Seek(8)
	s.WriteUint32(uint32(total)) // totalLength
	s.WriteUint32(uint32(total))
	s.WriteUint16(headerLen)
	s.WriteUint16(0) // scriptNumber
	s.WriteInt16(0)
	s.WriteInt16(0) // parentNumber
	s.Seek(38)
	s.WriteUint32(0) // scriptFlags
	s.WriteInt16(0)
	s.WriteInt32(0)  // castID
	s.WriteInt16(-1) // factoryNameID
	s.WriteUint16(0) // handlerVectorsCount
	s.WriteUint32(0)
	s.WriteUint32(0)
	s.WriteUint16(0) // propertiesCount
	s.WriteUint32(uint32(total))
	s.WriteUint16(0) // globalsCount
	s.WriteUint32(uint32(total))
	s.WriteUint16(1) // handlersCount
	s.WriteUint32(headerLen)
	s.WriteUint16(0) // literalsCount
	s.WriteUint32(uint32(total))
	s.WriteUint32(0)
	s.WriteUint32(uint32(total))

	s.Seek(headerLen)
	s.WriteInt16(0)  // nameID: exitFrame
	s.WriteUint16(0) // vectorPos
	s.WriteUint32(uint32(len(handlerBytecode)))
	s.WriteUint32(compiledOffset)
	s.WriteUint16(0) // argumentCount
	s.WriteUint32(uint32(total))
	s.WriteUint16(1) // localsCount
	s.WriteUint32(uint32(localsOffset))
	s.WriteUint16(0) // globalsCount
	s.WriteUint32(uint32(total))
	s.WriteUint32(0)
	s.WriteUint16(0)
	s.WriteUint16(0) // lineCount
	s.WriteUint32(0)

	s.Seek(compiledOffset)
	s.WriteBytes(handlerBytecode)
	s.WriteUint16(1) // local name id: i

	return buf
}

func testMovie() []byte {
	return buildMovie([]fixtureChunk{
		{"VWCF", configBody(0)}, // id 3
		{"KEY*", keyTableBody()}, // id 4
		{"CAS*", castBody()},     // id 5
		{"CASt", castMemberBody()}, // id 6
		{"Lctx", scriptContextBody()}, // id 7
		{"Lscr", scriptBody()}, // id 8
		{"Lnam", scriptNamesBody()}, // id 9
	})
}

func openTestMovie(t *testing.T, data []byte) *Movie {
	t.Helper()
	m, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func TestDecompileMovieScript(t *testing.T) {
	m := openTestMovie(t, testMovie())
	if got := m.Version(); got != 400 {
		t.Fatalf("Version = %d, want 400", got)
	}
	scripts := m.Scripts()
	if len(scripts) != 1 {
		t.Fatalf("Scripts() returned %d scripts, want 1", len(scripts))
	}
	want := "on exitFrame" + director.LingoLineEnding +
		"  repeat with i = 1 to 10" + director.LingoLineEnding +
		"  end repeat" + director.LingoLineEnding +
		"end" + director.LingoLineEnding
	if got := m.ScriptText(scripts[0]); got != want {
		t.Errorf("ScriptText:\ngot  %q\nwant %q", got, want)
	}
}

func TestCastMemberScriptBinding(t *testing.T) {
	m := openTestMovie(t, testMovie())
	casts := m.Casts()
	if len(casts) != 1 {
		t.Fatalf("Casts() returned %d, want 1", len(casts))
	}
	member := casts[0].Members[1]
	if member == nil {
		t.Fatal("member 1 not populated")
	}
	if member.Script == nil {
		t.Fatal("member 1 has no script bound through the key table")
	}
	if member.ScriptType != 3 {
		t.Errorf("ScriptType = %d, want 3 (movie script)", member.ScriptType)
	}
}

func TestBytecodeListingNamesLoop(t *testing.T) {
	m := openTestMovie(t, testMovie())
	listing := m.BytecodeText(m.Scripts()[0])
	for _, wantLine := range []string{
		"on exitFrame",
		"pushint8 1",
		"jmpifz [ 20]",
		"endrepeat [  4]",
		"repeat with i = 1 to 10",
	} {
		if !strings.Contains(listing, wantLine) {
			t.Errorf("listing missing %q:\n%s", wantLine, listing)
		}
	}
}

func TestRestoreScriptTextAndWrite(t *testing.T) {
	m := openTestMovie(t, testMovie())
	m.Unprotect()
	m.RestoreScriptText()
	out, err := m.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	m2 := openTestMovie(t, out)
	member := m2.Casts()[0].Members[1]
	if member == nil || member.Info == nil {
		t.Fatal("rewritten movie lost its cast member info")
	}
	if !strings.Contains(member.Info.ScriptSrcText, "repeat with i = 1 to 10") {
		t.Errorf("restored script text not carried through the write: %q", member.Info.ScriptSrcText)
	}
	// The decompiler still produces the same text from the rewritten
	// container.
	want := m.ScriptText(m.Scripts()[0])
	if got := m2.ScriptText(m2.Scripts()[0]); got != want {
		t.Errorf("script text changed across write:\ngot  %q\nwant %q", got, want)
	}
}
