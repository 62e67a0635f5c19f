package metadata

import (
	"bufio"
	"encoding/binary"
	"io"
	"sort"

	"github.com/puzzlefs/puzzlefs-go/errs"
)

const (
	rootfsMagic   = "PzFsRoot"
	rootfsVersion = uint32(1)
)

// Rootfs is the top-level PuzzleFS manifest: the ordered list of metadata
// layers (newest first; lookups consult index 0 first), the fs-verity
// table for every blob the image references, and a manifest version
// number. The builder sets ManifestVersion to 1 for a fresh image and to
// the base image's value plus one for a delta build.
type Rootfs struct {
	Metadatas       []BlobRef
	FsVerityData    map[Digest]VerityDigest
	ManifestVersion uint64
}

// EncodeRootfs writes the rootfs manifest. The verity table is encoded in
// digest-sorted order so that byte-identical rootfs content always
// produces a byte-identical encoding (spec.md's reproducibility
// invariant).
func EncodeRootfs(w io.Writer, rf *Rootfs) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(rootfsMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, rootfsVersion); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, rf.ManifestVersion); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(rf.Metadatas))); err != nil {
		return err
	}
	for _, m := range rf.Metadatas {
		if err := encodeBlobRef(bw, m); err != nil {
			return err
		}
	}

	digests := make([]Digest, 0, len(rf.FsVerityData))
	for d := range rf.FsVerityData {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool {
		return string(digests[i][:]) < string(digests[j][:])
	})

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(digests))); err != nil {
		return err
	}
	for _, d := range digests {
		if _, err := bw.Write(d[:]); err != nil {
			return err
		}
		v := rf.FsVerityData[d]
		if _, err := bw.Write(v[:]); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// DecodeRootfs reads a rootfs manifest produced by EncodeRootfs.
func DecodeRootfs(r io.Reader) (*Rootfs, error) {
	magic := make([]byte, len(rootfsMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != rootfsMagic {
		return nil, errs.New(errs.InvalidSchema, "bad rootfs magic")
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != rootfsVersion {
		return nil, errs.New(errs.InvalidSchema, "unsupported rootfs manifest version")
	}

	rf := &Rootfs{FsVerityData: map[Digest]VerityDigest{}}
	if err := binary.Read(r, binary.LittleEndian, &rf.ManifestVersion); err != nil {
		return nil, err
	}

	var metaCount uint32
	if err := binary.Read(r, binary.LittleEndian, &metaCount); err != nil {
		return nil, err
	}
	rf.Metadatas = make([]BlobRef, metaCount)
	for i := range rf.Metadatas {
		b, err := decodeBlobRef(r)
		if err != nil {
			return nil, err
		}
		rf.Metadatas[i] = b
	}

	var verityCount uint32
	if err := binary.Read(r, binary.LittleEndian, &verityCount); err != nil {
		return nil, err
	}
	for i := uint32(0); i < verityCount; i++ {
		var d Digest
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return nil, err
		}
		var v VerityDigest
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return nil, err
		}
		rf.FsVerityData[d] = v
	}

	return rf, nil
}
