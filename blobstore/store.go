package blobstore

import (
	"bytes"
	"fmt"

	digest "github.com/opencontainers/go-digest"

	"github.com/puzzlefs/puzzlefs-go/errs"
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/ociimage"
)

// PutResult is what Put reports back about a stored blob.
type PutResult struct {
	Digest     metadata.Digest
	Verity     metadata.VerityDigest
	Compressed bool
}

// BlobStore is the §6 "Blob store adapter": content-addressed put/get on
// top of an OCI layout, applying compression and fs-verity measurement.
type BlobStore struct {
	Image *ociimage.Image
	// EnableFsVerity turns on kernel fs-verity enablement for every blob
	// this store writes. It requires Linux and a filesystem that supports
	// fs-verity; tests run with it disabled.
	EnableFsVerity bool
}

// Open wraps an existing OCI layout directory as a BlobStore.
func Open(dir string) (*BlobStore, error) {
	img, err := ociimage.Open(dir)
	if err != nil {
		return nil, err
	}
	return &BlobStore{Image: img}, nil
}

// New creates (or reopens) an OCI layout directory as a BlobStore.
func New(dir string) (*BlobStore, error) {
	img, err := ociimage.New(dir)
	if err != nil {
		return nil, err
	}
	return &BlobStore{Image: img}, nil
}

// Put compresses data with comp and stores it as a content-addressed blob.
// Per spec.md §6's "Rule for compression suffix": if the compressed
// payload is not strictly smaller than the uncompressed payload, the
// uncompressed form is stored instead and Compressed is reported false.
func (bs *BlobStore) Put(data []byte, comp Compression) (PutResult, error) {
	var compressedBuf bytes.Buffer
	if err := comp.Compress(&compressedBuf, bytes.NewReader(data)); err != nil {
		return PutResult{}, errs.Wrap(errs.IO, "compressing blob", err)
	}

	stored := data
	compressed := false
	if compressedBuf.Len() < len(data) {
		stored = compressedBuf.Bytes()
		compressed = true
	}

	d, err := bs.Image.WriteBlob(stored)
	if err != nil {
		return PutResult{}, err
	}

	parsedDigest, err := metadata.ParseDigest(d.Encoded())
	if err != nil {
		return PutResult{}, errs.Wrap(errs.IO, "parsing stored blob digest", err)
	}
	result := PutResult{Digest: parsedDigest, Compressed: compressed}

	if bs.EnableFsVerity {
		f, err := bs.Image.OpenBlob(d)
		if err != nil {
			return PutResult{}, err
		}
		defer f.Close()
		if err := EnableVerity(f); err != nil {
			return PutResult{}, err
		}
		v, err := MeasureVerity(f)
		if err != nil {
			return PutResult{}, err
		}
		result.Verity = v
	}

	return result, nil
}

// Open opens a stored blob for ranged reads through comp's decompressor.
// If expectedVerity is non-nil, the blob's measured fs-verity digest must
// match or VerityMismatch is returned.
func (bs *BlobStore) Open(d metadata.Digest, comp Compression, expectedVerity *metadata.VerityDigest) (SeekableDecoder, error) {
	ociDigest := digest.NewDigestFromEncoded(digest.SHA256, d.String())

	f, err := bs.Image.OpenBlob(ociDigest)
	if err != nil {
		return nil, err
	}

	if expectedVerity != nil {
		measured, err := MeasureVerity(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		if measured != *expectedVerity {
			f.Close()
			return nil, errs.New(errs.VerityMismatch, fmt.Sprintf("blob %s: expected %s, measured %s", d, expectedVerity, measured))
		}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, "stat blob", err)
	}

	dec, err := comp.Decompress(f, info.Size())
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, "decompressing blob", err)
	}
	return &closingDecoder{SeekableDecoder: dec, file: f}, nil
}

type closingDecoder struct {
	SeekableDecoder
	file interface{ Close() error }
}

func (c *closingDecoder) Close() error {
	c.SeekableDecoder.Close()
	return c.file.Close()
}
