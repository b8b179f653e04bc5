// Package rayscript reads Director/Shockwave movie containers, extracts
// their compiled Lingo scripts, and reconstructs readable source text
// from the bytecode. It is the library surface a front-end drives: open
// a movie, translate its scripts, print them, and optionally write an
// unprotected container back out.
package rayscript

import (
	"io"
	"sort"

	"golang.org/x/exp/mmap"

	"github.com/deboservilla/rayscript/internal/ast"
	"github.com/deboservilla/rayscript/internal/astprint"
	"github.com/deboservilla/rayscript/internal/container"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/script"
)

// Movie is an open Director movie container and its scripts.
type Movie struct {
	reader *container.Reader
	closer io.Closer

	translated bool
}

// OpenFile memory-maps the movie at path and parses its container.
func OpenFile(path string, opts ...container.Option) (*Movie, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := Open(ra, int64(ra.Len()), opts...)
	if err != nil {
		ra.Close()
		return nil, err
	}
	m.closer = ra
	return m, nil
}

// Open parses a movie container readable through ra.
func Open(ra io.ReaderAt, size int64, opts ...container.Option) (*Movie, error) {
	r, err := container.Open(ra, size, opts...)
	if err != nil {
		return nil, err
	}
	return &Movie{reader: r}, nil
}

// Close releases the mapping behind OpenFile; it is a no-op for movies
// opened from a plain ReaderAt.
func (m *Movie) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

// Container exposes the underlying chunk-level reader.
func (m *Movie) Container() *container.Reader {
	return m.reader
}

// Version is the detected human Director version (700 for Director 7).
func (m *Movie) Version() uint32 {
	return m.reader.Version
}

// VersionString renders the product banner for the detected version.
func (m *Movie) VersionString() string {
	return director.VersionString(m.reader.Version, m.reader.FverVersionString)
}

// Casts lists the movie's cast libraries.
func (m *Movie) Casts() []*container.Cast {
	return m.reader.Casts
}

// Scripts returns every compiled script reachable from the movie's cast
// script contexts, in cast order.
func (m *Movie) Scripts() []*script.Script {
	var out []*script.Script
	for _, cast := range m.reader.Casts {
		if cast.Lctx == nil {
			continue
		}
		slots := make([]int32, 0, len(cast.Lctx.Scripts))
		for slot := range cast.Lctx.Scripts {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
		for _, slot := range slots {
			out = append(out, cast.Lctx.Scripts[slot])
		}
	}
	return out
}

// Translate decompiles every handler of every script. Translation never
// fails; structural anomalies surface as comment lines in the output.
func (m *Movie) Translate() {
	if m.translated {
		return
	}
	for _, sc := range m.Scripts() {
		ast.Translate(sc)
	}
	m.translated = true
}

// ScriptText renders one script as Lingo source, using dot syntax when
// the movie's Director version calls for it.
func (m *Movie) ScriptText(sc *script.Script) string {
	m.Translate()
	return astprint.ScriptText(sc, director.LingoLineEnding, m.reader.DotSyntax)
}

// BytecodeText renders one script's handlers as a bytecode listing with
// inline translations.
func (m *Movie) BytecodeText(sc *script.Script) string {
	m.Translate()
	return astprint.BytecodeText(sc, director.LingoLineEnding, m.reader.DotSyntax)
}

// RestoreScriptText writes each member's decompiled source back into
// its cast-info record, so the written container carries source text
// again.
func (m *Movie) RestoreScriptText() {
	m.Translate()
	for _, cast := range m.reader.Casts {
		if cast.Lctx == nil {
			continue
		}
		for _, member := range cast.Members {
			if member.Script != nil {
				member.SetScriptText(astprint.ScriptText(member.Script, director.LingoLineEnding, m.reader.DotSyntax))
			}
		}
	}
}

// Unprotect makes the container editable again: the file version is
// restored and the protection field perturbed off its marker modulus.
func (m *Movie) Unprotect() {
	m.reader.Config.Unprotect()
}

// Write re-emits the container as an uncompressed memory-mapped movie.
func (m *Movie) Write() ([]byte, error) {
	return m.reader.Write()
}
