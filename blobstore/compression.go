// Package blobstore implements the §6 "Blob store adapter": content-
// addressed put/get of compressed blobs on top of ociimage, per-blob
// fs-verity measurement, and manifest tagging.
package blobstore

import (
	"io"

	"github.com/puzzlefs/puzzlefs-go/errs"
	"github.com/puzzlefs/puzzlefs-go/metadata"
)

// SeekableDecoder is a decompressed view that supports ranged reads, the
// shape the reader needs to serve a chunk read without decompressing an
// entire blob.
type SeekableDecoder interface {
	io.ReaderAt
	io.Closer
	// UncompressedLength returns the total decompressed size.
	UncompressedLength() int64
}

// Compression is the collaborator contract from spec.md §6: compress a
// full blob to a writer, decompress (with random access) from a
// ReaderAt, and supply the media-type suffix a compressed blob's media
// type gains.
type Compression interface {
	// Compress reads all of src and writes the compressed form to dst.
	Compress(dst io.Writer, src io.Reader) error
	// Decompress wraps src (size bytes of compressed content) for ranged
	// reads against the uncompressed view.
	Decompress(src io.ReaderAt, size int64) (SeekableDecoder, error)
	// Suffix is appended to a blob's media type when stored compressed
	// ("" for Noop, "+zstd" for Zstandard, ...).
	Suffix() string
}

// Noop stores blobs uncompressed. It is always available and is what a
// producer falls back to when compression does not strictly shrink a
// blob (spec.md §6, "Rule for compression suffix").
type Noop struct{}

func (Noop) Compress(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (Noop) Decompress(src io.ReaderAt, size int64) (SeekableDecoder, error) {
	return &noopDecoder{src: src, size: size}, nil
}

func (Noop) Suffix() string { return "" }

type noopDecoder struct {
	src  io.ReaderAt
	size int64
}

func (d *noopDecoder) ReadAt(p []byte, off int64) (int, error) { return d.src.ReadAt(p, off) }
func (d *noopDecoder) UncompressedLength() int64               { return d.size }
func (d *noopDecoder) Close() error                             { return nil }

// codecRegistry maps a metadata.Codec to the Compression that encodes/
// decodes it. Zstd is always registered; Xz registers itself from an
// init() in xz.go, which only builds under the "xz" tag, mirroring the
// teacher's comp_xz.go RegisterCompHandler gating — so a non-xz build
// still links, it just can't open blobs stored with CodecXz.
var codecRegistry = map[metadata.Codec]Compression{
	metadata.CodecNone: Noop{},
	metadata.CodecZstd: Zstd{},
}

// registerCodec is called from gated codec files' init() functions.
func registerCodec(c metadata.Codec, comp Compression) {
	codecRegistry[c] = comp
}

// CompressionForCodec resolves the Compression implementation that reads
// (and, for new blobs, writes) the wire Codec c.
func CompressionForCodec(c metadata.Codec) (Compression, error) {
	comp, ok := codecRegistry[c]
	if !ok {
		return nil, errs.New(errs.InvalidSchema, "unsupported blob codec (built without xz support?)")
	}
	return comp, nil
}

// CodecFor reports the metadata.Codec that describes how Put actually
// stored a blob: CodecNone if compression did not shrink the payload
// (spec.md §6's "Rule for compression suffix"), otherwise whichever
// Codec comp's media-type suffix names.
func CodecFor(comp Compression, compressed bool) metadata.Codec {
	if !compressed {
		return metadata.CodecNone
	}
	return metadata.CodecFromSuffix(comp.Suffix())
}
