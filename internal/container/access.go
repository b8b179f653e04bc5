package container

import (
	"github.com/deboservilla/rayscript/internal/bytestream"
	"github.com/deboservilla/rayscript/internal/director"
	"github.com/deboservilla/rayscript/internal/rayserr"
)

// ChunkIDs returns every chunk id tagged with fourCC, in directory order.
func (r *Reader) ChunkIDs(fourCC string) []int32 {
	return r.chunksByFourCC[fourCC]
}

// Info returns the directory entry for id, or nil if id is not present.
func (r *Reader) Info(id int32) *ChunkInfo {
	return r.chunks[id]
}

func (r *Reader) firstChunkInfo(fourCC string) *ChunkInfo {
	ids := r.chunksByFourCC[fourCC]
	if len(ids) == 0 {
		return nil
	}
	return r.chunks[ids[0]]
}

// ChunkExists reports whether id is present in the directory under the
// given fourCC.
func (r *Reader) ChunkExists(fourCC string, id int32) bool {
	ci := r.chunks[id]
	return ci != nil && ci.FourCC == fourCC
}

// GetChunkData returns id's fully decoded (decompressed, if needed) raw
// bytes, validating the directory's fourCC against the caller's
// expectation. Views are cached for the life of the container; callers
// must not mutate them.
func (r *Reader) GetChunkData(fourCC string, id int32) ([]byte, error) {
	ci := r.chunks[id]
	if ci == nil {
		return nil, rayserr.MissingChunk(id)
	}
	if ci.FourCC != fourCC {
		return nil, rayserr.WrongFourCC(id, fourCC, ci.FourCC)
	}

	if view, ok := r.cachedViews[id]; ok {
		return view, nil
	}

	if r.afterburner {
		view, err := r.readAfterburnerChunk(ci)
		if err != nil {
			return nil, err
		}
		r.cachedViews[id] = view
		return view, nil
	}

	view, err := r.readChunkDataAt(int64(ci.Offset), ci.FourCC, ci.Len)
	if err != nil {
		return nil, err
	}
	r.cachedViews[id] = view
	return view, nil
}

// compressionImplemented reports whether this module can decompress the
// given codec itself (zlib) or through the external sound decoder.
func (r *Reader) compressionImplemented(id director.MoaID) bool {
	return id == director.ZlibCompressionGUID || id == director.SndCompressionGUID
}

// readAfterburnerChunk decodes one resource living in the file body
// after the ILS, at its ABMP offset.
func (r *Reader) readAfterburnerChunk(ci *ChunkInfo) ([]byte, error) {
	s := bytestream.New(r.fileBuf, r.order)
	s.Seek(r.ilsBodyOffset + int(ci.Offset))

	switch {
	case ci.Compression == director.ZlibCompressionGUID:
		out, err := s.ReadZlib(int(ci.Len), int(ci.UncompressedLen))
		if err != nil {
			return nil, rayserr.DecompressionFailed(ci.ID, err)
		}
		return out, nil
	case ci.Compression == director.SndCompressionGUID:
		in := s.ReadBytes(int(ci.Len))
		if r.soundDecode == nil {
			return nil, rayserr.UnimplementedChunk(ci.FourCC)
		}
		out, err := r.soundDecode(in, int(ci.UncompressedLen))
		if err != nil {
			return nil, rayserr.DecompressionFailed(ci.ID, err)
		}
		if len(out) != int(ci.UncompressedLen) {
			return nil, rayserr.DecompressionFailed(ci.ID, rayserr.ErrDecompressionFailed)
		}
		return out, nil
	case ci.Compression == director.FontMapCompressionGUID:
		if r.fontMap == nil {
			return nil, rayserr.UnimplementedChunk(ci.FourCC)
		}
		return r.fontMap(r.Version), nil
	default:
		if ci.Compression != director.NullCompressionGUID {
			logger.Printf("container: chunk %d (%s) uses unhandled compression %s; returning raw bytes", ci.ID, ci.FourCC, ci.Compression)
		}
		return s.ReadBytes(int(ci.Len)), nil
	}
}
