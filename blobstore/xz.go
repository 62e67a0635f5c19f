//go:build xz

package blobstore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/puzzlefs/puzzlefs-go/metadata"
)

func init() {
	registerCodec(metadata.CodecXz, Xz{})
}

// Xz is an alternate Compression implementation, built only when the "xz"
// build tag is set, mirroring the teacher's comp_xz.go gating of its xz
// support. Unlike Zstd, Xz is not seekable: a ranged read decompresses the
// whole blob once and serves subsequent reads from memory. spec.md's
// seekable-framing requirement names Zstandard specifically, so this is an
// acceptable alternate codec rather than the default.
type Xz struct{}

func (Xz) Suffix() string { return "+xz" }

func (Xz) Compress(dst io.Writer, src io.Reader) error {
	w, err := xz.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (Xz) Decompress(src io.ReaderAt, size int64) (SeekableDecoder, error) {
	r, err := xz.NewReader(io.NewSectionReader(src, 0, size))
	if err != nil {
		return nil, err
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobstore: decompressing xz blob: %w", err)
	}
	return &xzDecoder{data: plain}, nil
}

type xzDecoder struct {
	data []byte
}

func (d *xzDecoder) UncompressedLength() int64 { return int64(len(d.data)) }
func (d *xzDecoder) Close() error              { return nil }

func (d *xzDecoder) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(d.data).ReadAt(p, off)
}
