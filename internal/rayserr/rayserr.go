// Package rayserr defines the container-level error taxonomy. Decompiler
// anomalies never surface here; they are folded into the AST as Comment
// nodes instead (see package ast).
package rayserr

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Sentinel errors a caller can match with errors.Is.
var (
	ErrUnsupportedFormat  = xerrors.New("unsupported format")
	ErrMissingSubBlob     = xerrors.New("missing sub-blob")
	ErrDecompressionFailed = xerrors.New("decompression failed")
	ErrMissingChunk       = xerrors.New("missing chunk")
	ErrWrongFourCC        = xerrors.New("wrong fourCC")
	ErrUnimplementedChunk = xerrors.New("unimplemented chunk")
	ErrChecksumMismatch   = xerrors.New("checksum mismatch")
)

// UnsupportedFormat reports a bad magic or codec tag.
func UnsupportedFormat(tag string) error {
	return xerrors.Errorf("%s: %w", tag, ErrUnsupportedFormat)
}

// MissingSubBlob reports an absent afterburner sub-blob.
func MissingSubBlob(fourCC string) error {
	return xerrors.Errorf("sub-blob %s: %w", fourCC, ErrMissingSubBlob)
}

// DecompressionFailed reports a zlib error or a length mismatch, naming the
// chunk id and wrapping the underlying cause.
func DecompressionFailed(id int32, cause error) error {
	return fmt.Errorf("chunk %d: %w: %w", id, ErrDecompressionFailed, cause)
}

// MissingChunk reports that id is not present in the chunk directory.
func MissingChunk(id int32) error {
	return xerrors.Errorf("chunk %d: %w", id, ErrMissingChunk)
}

// MissingChunkFourCC reports that no chunk with the given tag exists in
// the directory at all.
func MissingChunkFourCC(fourCC string) error {
	return xerrors.Errorf("no %s chunk: %w", fourCC, ErrMissingChunk)
}

// WrongFourCC reports that the directory's fourCC for id does not match what
// the caller expected.
func WrongFourCC(id int32, expected, actual string) error {
	return xerrors.Errorf("chunk %d: expected %q, got %q: %w", id, expected, actual, ErrWrongFourCC)
}

// UnimplementedChunk reports a fourCC this module has no codec for.
func UnimplementedChunk(fourCC string) error {
	return xerrors.Errorf("%s: %w", fourCC, ErrUnimplementedChunk)
}

// ChecksumMismatch reports that a Config chunk's stored checksum did not
// match the recomputed value. The caller does not abort the read on this
// error; Config is simply marked non-writable.
func ChecksumMismatch(stored, computed uint32) error {
	return xerrors.Errorf("stored %#x, computed %#x: %w", stored, computed, ErrChecksumMismatch)
}
