// Package reader opens a tagged PuzzleFS image and serves inode lookups,
// path resolution, and ranged file reads across its stacked metadata
// layers.
package reader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/puzzlefs/puzzlefs-go/blobstore"
	"github.com/puzzlefs/puzzlefs-go/errs"
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/ociimage"
)

// compressionFor resolves a blob's media type suffix to the Compression
// implementation that can decode it.
func compressionFor(mediaType string) blobstore.Compression {
	if strings.HasSuffix(mediaType, "+zstd") {
		return blobstore.Zstd{}
	}
	return blobstore.Noop{}
}

// Image is an opened PuzzleFS image: its rootfs manifest plus the decoded
// metadata layers it references, newest first.
type Image struct {
	Store  *blobstore.BlobStore
	Rootfs *metadata.Rootfs
	Layers []*metadata.Layer

	verify bool
}

// Open opens the image tagged tag within store. If rootDigest is non-empty,
// the OCI manifest's rootfs blob must measure to it via fs-verity or
// Open refuses with VerityMismatch; a mount with verification enabled also
// verifies every subsequently opened metadata and chunk blob.
func Open(store *blobstore.BlobStore, tag string, rootDigest string) (*Image, error) {
	manifestDesc, err := store.Image.FindManifest(tag)
	if err != nil {
		return nil, err
	}
	manifest, err := store.Image.ReadManifest(manifestDesc)
	if err != nil {
		return nil, err
	}
	if len(manifest.Layers) == 0 {
		return nil, errs.New(errs.InvalidSchema, "manifest has no layers")
	}
	rootfsLayer := manifest.Layers[0]

	verify := rootDigest != ""
	var expectedRootVerity *metadata.VerityDigest
	if verify {
		v, err := metadata.ParseDigest(rootDigest)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, "root digest", err)
		}
		var vv metadata.VerityDigest
		copy(vv[:], v[:])
		expectedRootVerity = &vv
	}

	rootfsDigest, err := metadata.ParseDigest(rootfsLayer.Digest.Encoded())
	if err != nil {
		return nil, errs.Wrap(errs.InvalidSchema, "rootfs layer digest", err)
	}

	rootfsDec, err := store.Open(rootfsDigest, compressionFor(rootfsLayer.MediaType), expectedRootVerity)
	if err != nil {
		return nil, err
	}
	defer rootfsDec.Close()

	rootfsBytes := make([]byte, rootfsDec.UncompressedLength())
	if _, err := rootfsDec.ReadAt(rootfsBytes, 0); err != nil {
		return nil, errs.Wrap(errs.IO, "reading rootfs blob", err)
	}

	rootfs, err := metadata.DecodeRootfs(bytes.NewReader(rootfsBytes))
	if err != nil {
		return nil, err
	}

	if verify {
		pinned := rootfsLayer.Annotations[ociimage.VerityRootHashAnnotation]
		if pinned != "" && pinned != rootDigest {
			return nil, errs.New(errs.VerityMismatch, fmt.Sprintf("rootfs annotation %s does not match requested pin %s", pinned, rootDigest))
		}
	}

	img := &Image{Store: store, Rootfs: rootfs, verify: verify}

	for _, ref := range rootfs.Metadatas {
		var expected *metadata.VerityDigest
		if verify {
			if v, ok := rootfs.FsVerityData[ref.Digest]; ok {
				expected = &v
			} else {
				return nil, errs.New(errs.VerityMismatch, fmt.Sprintf("no verity entry for metadata layer %s", ref.Digest))
			}
		}
		comp, err := blobstore.CompressionForCodec(ref.Codec)
		if err != nil {
			return nil, err
		}
		dec, err := store.Open(ref.Digest, comp, expected)
		if err != nil {
			return nil, err
		}
		layerBytes := make([]byte, dec.UncompressedLength())
		if _, err := dec.ReadAt(layerBytes, 0); err != nil {
			dec.Close()
			return nil, errs.Wrap(errs.IO, "reading metadata layer blob", err)
		}
		dec.Close()

		layer, err := metadata.DecodeLayer(bytes.NewReader(layerBytes))
		if err != nil {
			return nil, err
		}
		img.Layers = append(img.Layers, layer)
	}

	return img, nil
}

// Lookup resolves ino against the stacked layers, newest first. The first
// hit wins; a Wht hit reports NotFound.
func (img *Image) Lookup(ino metadata.Ino) (*metadata.Inode, error) {
	for _, layer := range img.Layers {
		if found, ok := layer.Lookup(ino); ok {
			if found.Kind == metadata.KindWht {
				return nil, errs.New(errs.NotFound, fmt.Sprintf("inode %d is whited out", ino))
			}
			return found, nil
		}
	}
	return nil, errs.New(errs.NotFound, fmt.Sprintf("inode %d", ino))
}

// ReadDir returns dir's children as they appear in the composed view: any
// entry that resolves to a whiteout (or otherwise fails to resolve) is
// dropped, per spec.md §8 scenario 4 ("listing /a does not yield b"). The
// on-wire DirList itself still carries the whiteout entry; only this
// composed view filters it.
func (img *Image) ReadDir(ino metadata.Ino) ([]metadata.DirEnt, error) {
	dir, err := img.Lookup(ino)
	if err != nil {
		return nil, err
	}
	if dir.Kind != metadata.KindDir {
		return nil, errs.New(errs.NotADirectory, fmt.Sprintf("inode %d", ino))
	}
	var out []metadata.DirEnt
	for _, e := range dir.Dir.Entries {
		if _, err := img.Lookup(e.Ino); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// MaxIno returns the greatest Ino present across all layers, for delta
// builds to allocate fresh numbers above it.
func (img *Image) MaxIno() metadata.Ino {
	var max metadata.Ino
	for _, layer := range img.Layers {
		if m := layer.MaxIno(); m > max {
			max = m
		}
	}
	return max
}

// dirChild is the directory-entry lookup a path-lookup step needs: find
// dir's child named name. A name deleted by a higher layer is still listed
// in that layer's DirList, pointing at a Wht inode; the whiteout itself is
// an inode, not a directory-entry marker, so the caller's Lookup of the
// returned Ino is what reports NotFound for it.
func dirChild(dir *metadata.DirList, name []byte) (metadata.Ino, bool) {
	for _, e := range dir.Entries {
		if string(e.Name) == string(name) {
			return e.Ino, true
		}
	}
	return 0, false
}

// LookupPath resolves an absolute, slash-separated path starting at the
// root inode. Symlinks are not followed; the caller decides.
func (img *Image) LookupPath(p string) (metadata.Ino, *metadata.Inode, error) {
	if !strings.HasPrefix(p, "/") {
		return 0, nil, errs.New(errs.InvalidArgument, fmt.Sprintf("path %q is not absolute", p))
	}

	cur := metadata.RootIno
	curInode, err := img.Lookup(cur)
	if err != nil {
		return 0, nil, err
	}

	if p == "/" {
		return cur, curInode, nil
	}

	for _, comp := range strings.Split(strings.Trim(p, "/"), "/") {
		if curInode.Kind != metadata.KindDir {
			return 0, nil, errs.New(errs.NotADirectory, p)
		}
		next, ok := dirChild(curInode.Dir, []byte(comp))
		if !ok {
			return 0, nil, errs.New(errs.NotFound, p)
		}
		nextInode, err := img.Lookup(next)
		if err != nil {
			return 0, nil, err
		}
		cur = next
		curInode = nextInode
	}
	return cur, curInode, nil
}

// ReadFile performs a ranged read against a KindFile inode's chunk list,
// per spec.md §4.4.
func (img *Image) ReadFile(ino *metadata.Inode, offset int64, buf []byte) (int, error) {
	if ino.Kind != metadata.KindFile {
		return 0, errs.New(errs.IsADirectory, "not a regular file")
	}

	var fileOffset int64
	var written int
	for _, chunk := range ino.Chunks {
		chunkStart := fileOffset
		chunkEnd := fileOffset + int64(chunk.Len)
		fileOffset = chunkEnd

		if chunkEnd <= offset {
			continue
		}
		if offset+int64(written) >= chunkEnd {
			continue
		}

		mediaComp, err := blobstore.CompressionForCodec(chunk.Blob.Codec)
		if err != nil {
			return written, err
		}
		var expected *metadata.VerityDigest
		if img.verify {
			v, ok := img.Rootfs.FsVerityData[chunk.Blob.Digest]
			if !ok {
				return written, errs.New(errs.VerityMismatch, fmt.Sprintf("no verity entry for chunk blob %s", chunk.Blob.Digest))
			}
			expected = &v
		}
		dec, err := img.Store.Open(chunk.Blob.Digest, mediaComp, expected)
		if err != nil {
			return written, err
		}

		readStart := chunk.Blob.Offset
		wantStart := offset + int64(written)
		if wantStart > chunkStart {
			readStart += uint64(wantStart - chunkStart)
		}
		remaining := len(buf) - written
		avail := chunkEnd - wantStart
		take := remaining
		if int64(take) > avail {
			take = int(avail)
		}

		n, err := dec.ReadAt(buf[written:written+take], int64(readStart))
		dec.Close()
		written += n
		if err != nil {
			return written, err
		}
		if written >= len(buf) {
			break
		}
	}
	return written, nil
}

