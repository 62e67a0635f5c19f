// Package ociimage manages the on-disk OCI image layout PuzzleFS stores
// its blobs and manifests in: the oci-layout marker, blobs/sha256/, and
// index.json. It is the low-level half of the §6 "Blob store adapter"
// collaborator contract; github.com/puzzlefs/puzzlefs-go/blobstore builds
// compression and fs-verity on top of it.
package ociimage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/puzzlefs/puzzlefs-go/errs"
)

// LayoutVersion is the version string PuzzleFS writes and expects in
// oci-layout. It intentionally does not match the upstream OCI spec's
// "1.0.0" — grounded on original_source/puzzlefs-lib/src/oci.rs, which
// checks for this exact non-standard marker. Any other value is refused
// with InvalidSchema (spec.md §9, resolved Open Question 2).
const LayoutVersion = "puzzlefs-dev"

// RefNameAnnotation is the index.json manifest annotation carrying a
// human-assigned tag, per the OCI image spec.
const RefNameAnnotation = "org.opencontainers.image.ref.name"

// VerityRootHashAnnotation carries the lower-case hex fs-verity measurement
// of the rootfs blob referenced by a manifest's first layer entry.
const VerityRootHashAnnotation = "io.puzzlefsoci.puzzlefs.puzzlefs_verity_root_hash"

const (
	MediaTypeRootfs   = "application/vnd.puzzlefs.image.rootfs.v1"
	MediaTypeFiledata = "application/vnd.puzzlefs.image.filedata.v1"
)

// Image is an opened OCI image layout directory.
type Image struct {
	Dir string
}

// New creates a fresh OCI layout at dir: oci-layout, blobs/sha256/, and an
// empty index.json. If dir already contains a layout, it is opened instead
// (New is the builder's entry point and must be idempotent across delta
// builds against the same store).
func New(dir string) (*Image, error) {
	if _, err := os.Stat(filepath.Join(dir, "oci-layout")); err == nil {
		return Open(dir)
	}

	if err := os.MkdirAll(filepath.Join(dir, "blobs", "sha256"), 0o755); err != nil {
		return nil, errs.Wrap(errs.IO, "creating blobs directory", err)
	}

	layout := v1.ImageLayout{Version: LayoutVersion}
	if err := writeJSON(filepath.Join(dir, "oci-layout"), layout); err != nil {
		return nil, err
	}

	idx := v1.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: v1.MediaTypeImageIndex,
		Manifests: []v1.Descriptor{},
	}
	if err := writeJSON(filepath.Join(dir, "index.json"), idx); err != nil {
		return nil, err
	}

	return &Image{Dir: dir}, nil
}

// Open opens an existing OCI layout, validating the oci-layout version
// marker.
func Open(dir string) (*Image, error) {
	b, err := os.ReadFile(filepath.Join(dir, "oci-layout"))
	if err != nil {
		return nil, errs.Wrap(errs.IO, "reading oci-layout", err)
	}
	var layout v1.ImageLayout
	if err := json.Unmarshal(b, &layout); err != nil {
		return nil, errs.Wrap(errs.InvalidSchema, "parsing oci-layout", err)
	}
	if layout.Version != LayoutVersion {
		return nil, errs.New(errs.InvalidSchema, fmt.Sprintf("unrecognized image layout version %q", layout.Version))
	}
	return &Image{Dir: dir}, nil
}

func writeJSON(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.IO, "marshaling "+filepath.Base(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errs.Wrap(errs.IO, "writing "+filepath.Base(path), err)
	}
	return nil
}

// BlobPath returns the on-disk path for a blob addressed by d.
func (img *Image) BlobPath(d digest.Digest) string {
	return filepath.Join(img.Dir, "blobs", d.Algorithm().String(), d.Encoded())
}

// WriteBlob writes data as a new content-addressed blob and returns its
// digest. WriteBlob is idempotent: writing data whose digest already exists in
// the store is a no-op, verified byte-for-byte; a digest collision against
// different bytes is refused as corruption (spec.md §4.3's "the store must
// reject non-matching overwrites as a corruption signal").
func (img *Image) WriteBlob(data []byte) (digest.Digest, error) {
	d := digest.FromBytes(data)
	path := img.BlobPath(d)

	if existing, err := os.ReadFile(path); err == nil {
		if !bytes.Equal(existing, data) {
			return "", errs.New(errs.IO, fmt.Sprintf("blob %s exists with different content (hash collision or corruption)", d))
		}
		return d, nil
	} else if !os.IsNotExist(err) {
		return "", errs.Wrap(errs.IO, "checking existing blob", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errs.Wrap(errs.IO, "creating blob directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-blob-*")
	if err != nil {
		return "", errs.Wrap(errs.IO, "creating temp blob file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errs.Wrap(errs.IO, "writing temp blob file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", errs.Wrap(errs.IO, "closing temp blob file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errs.Wrap(errs.IO, "renaming temp blob file into place", err)
	}
	return d, nil
}

// OpenBlob opens a stored blob for reading by digest.
func (img *Image) OpenBlob(d digest.Digest) (*os.File, error) {
	f, err := os.Open(img.BlobPath(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, d.String(), err)
		}
		return nil, errs.Wrap(errs.IO, "opening blob", err)
	}
	return f, nil
}

func (img *Image) readIndex() (*v1.Index, error) {
	b, err := os.ReadFile(filepath.Join(img.Dir, "index.json"))
	if err != nil {
		return nil, errs.Wrap(errs.IO, "reading index.json", err)
	}
	var idx v1.Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, errs.Wrap(errs.InvalidSchema, "parsing index.json", err)
	}
	return &idx, nil
}

// AddTag records desc in index.json under the given tag name, replacing
// any existing manifest with the same tag annotation (original_source's
// add_tag: "untags existing manifests with same name, appends new").
func (img *Image) AddTag(tag string, desc v1.Descriptor) error {
	idx, err := img.readIndex()
	if err != nil {
		return err
	}
	if desc.Annotations == nil {
		desc.Annotations = map[string]string{}
	}
	desc.Annotations[RefNameAnnotation] = tag

	kept := idx.Manifests[:0]
	for _, m := range idx.Manifests {
		if m.Annotations[RefNameAnnotation] != tag {
			kept = append(kept, m)
		}
	}
	idx.Manifests = append(kept, desc)

	return writeJSON(filepath.Join(img.Dir, "index.json"), idx)
}

// FindManifest looks up the manifest descriptor tagged with tag.
func (img *Image) FindManifest(tag string) (v1.Descriptor, error) {
	idx, err := img.readIndex()
	if err != nil {
		return v1.Descriptor{}, err
	}
	for _, m := range idx.Manifests {
		if m.Annotations[RefNameAnnotation] == tag {
			return m, nil
		}
	}
	return v1.Descriptor{}, errs.New(errs.NotFound, fmt.Sprintf("no manifest tagged %q", tag))
}

// EmptyConfigDescriptor writes (if needed) and returns the descriptor for
// the empty OCI image config PuzzleFS manifests reference, matching the
// blob-store collaborator contract's get_empty_config().
func (img *Image) EmptyConfigDescriptor() (v1.Descriptor, error) {
	d, err := img.WriteBlob([]byte("{}"))
	if err != nil {
		return v1.Descriptor{}, err
	}
	return v1.Descriptor{
		MediaType: v1.MediaTypeImageConfig,
		Digest:    d,
		Size:      int64(len("{}")),
	}, nil
}

// WriteManifest writes and returns a descriptor for an OCI image manifest
// whose single layer is the rootfs blob rootfsDigest/rootfsSize, annotated
// with its fs-verity root hash. The rootfs is always the first (and only)
// layer entry (spec.md §6).
func (img *Image) WriteManifest(rootfsDigest digest.Digest, rootfsSize int64, compressed bool, verityRootHash string) (v1.Descriptor, error) {
	mediaType := MediaTypeRootfs
	if compressed {
		mediaType += "+zstd"
	}

	config, err := img.EmptyConfigDescriptor()
	if err != nil {
		return v1.Descriptor{}, err
	}

	manifest := v1.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: v1.MediaTypeImageManifest,
		Config:    config,
		Layers: []v1.Descriptor{
			{
				MediaType: mediaType,
				Digest:    rootfsDigest,
				Size:      rootfsSize,
				Annotations: map[string]string{
					VerityRootHashAnnotation: verityRootHash,
				},
			},
		},
	}

	b, err := json.Marshal(manifest)
	if err != nil {
		return v1.Descriptor{}, errs.Wrap(errs.IO, "marshaling manifest", err)
	}
	d, err := img.WriteBlob(b)
	if err != nil {
		return v1.Descriptor{}, err
	}
	return v1.Descriptor{
		MediaType: v1.MediaTypeImageManifest,
		Digest:    d,
		Size:      int64(len(b)),
	}, nil
}

// ReadManifest reads back a manifest blob by descriptor.
func (img *Image) ReadManifest(desc v1.Descriptor) (*v1.Manifest, error) {
	f, err := img.OpenBlob(desc.Digest)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var manifest v1.Manifest
	dec := json.NewDecoder(f)
	if err := dec.Decode(&manifest); err != nil {
		return nil, errs.Wrap(errs.InvalidSchema, "parsing manifest", err)
	}
	return &manifest, nil
}
