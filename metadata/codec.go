package metadata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/puzzlefs/puzzlefs-go/errs"
)

// EncodeInode writes a single inode record to w. Variable-length fields
// (directory entries, chunk lists, xattrs, symlink targets) are each
// length-prefixed, following the teacher's per-field explicit binary.Write
// style rather than reflection (reflection only suits fixed-layout
// records).
func EncodeInode(w io.Writer, ino *Inode) error {
	fields := []interface{}{
		uint64(ino.Ino),
		uint8(ino.Kind),
		ino.Uid,
		ino.Gid,
		ino.Perm,
		ino.Major,
		ino.Minor,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	if ino.Kind == KindDir && ino.Dir != nil {
		if err := binary.Write(w, binary.LittleEndian, uint8(1)); err != nil {
			return err
		}
		if err := encodeDirList(w, ino.Dir); err != nil {
			return err
		}
	} else {
		if err := binary.Write(w, binary.LittleEndian, uint8(0)); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(ino.Chunks))); err != nil {
		return err
	}
	for _, c := range ino.Chunks {
		if err := encodeBlobRef(w, c.Blob); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, c.Len); err != nil {
			return err
		}
	}

	if ino.Additional != nil {
		if err := binary.Write(w, binary.LittleEndian, uint8(1)); err != nil {
			return err
		}
		if err := encodeAdditional(w, ino.Additional); err != nil {
			return err
		}
	} else {
		if err := binary.Write(w, binary.LittleEndian, uint8(0)); err != nil {
			return err
		}
	}

	return nil
}

func encodeDirList(w io.Writer, dl *DirList) error {
	lookBelow := uint8(0)
	if dl.LookBelow {
		lookBelow = 1
	}
	if err := binary.Write(w, binary.LittleEndian, lookBelow); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(dl.Entries))); err != nil {
		return err
	}
	for _, e := range dl.Entries {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(e.Name))); err != nil {
			return err
		}
		if _, err := w.Write(e.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(e.Ino)); err != nil {
			return err
		}
	}
	return nil
}

func encodeBlobRef(w io.Writer, b BlobRef) error {
	if _, err := w.Write(b.Digest[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, b.Offset); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint8(b.Codec))
}

func encodeAdditional(w io.Writer, a *Additional) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(a.Xattrs))); err != nil {
		return err
	}
	for _, x := range a.Xattrs {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(x.Key))); err != nil {
			return err
		}
		if _, err := w.Write(x.Key); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(x.Value))); err != nil {
			return err
		}
		if _, err := w.Write(x.Value); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(a.SymlinkTarget))); err != nil {
		return err
	}
	_, err := w.Write(a.SymlinkTarget)
	return err
}

// DecodeInode reads a single inode record from r, the inverse of
// EncodeInode.
func DecodeInode(r io.Reader) (*Inode, error) {
	ino := &Inode{}
	var kind uint8

	for _, f := range []interface{}{
		&ino.Ino, &kind, &ino.Uid, &ino.Gid, &ino.Perm, &ino.Major, &ino.Minor,
	} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	ino.Kind = Kind(kind)

	var hasDir uint8
	if err := binary.Read(r, binary.LittleEndian, &hasDir); err != nil {
		return nil, err
	}
	if hasDir == 1 {
		dl, err := decodeDirList(r)
		if err != nil {
			return nil, err
		}
		ino.Dir = dl
	}

	var chunkCount uint32
	if err := binary.Read(r, binary.LittleEndian, &chunkCount); err != nil {
		return nil, err
	}
	ino.Chunks = make([]FileChunk, chunkCount)
	for i := range ino.Chunks {
		blob, err := decodeBlobRef(r)
		if err != nil {
			return nil, err
		}
		ino.Chunks[i].Blob = blob
		if err := binary.Read(r, binary.LittleEndian, &ino.Chunks[i].Len); err != nil {
			return nil, err
		}
	}

	var hasAdditional uint8
	if err := binary.Read(r, binary.LittleEndian, &hasAdditional); err != nil {
		return nil, err
	}
	if hasAdditional == 1 {
		add, err := decodeAdditional(r)
		if err != nil {
			return nil, err
		}
		ino.Additional = add
	}

	if ino.Dir != nil && ino.Dir.LookBelow {
		return nil, errs.New(errs.InvalidSchema, "look_below is reserved and must be false")
	}

	return ino, nil
}

func decodeDirList(r io.Reader) (*DirList, error) {
	dl := &DirList{}
	var lookBelow uint8
	if err := binary.Read(r, binary.LittleEndian, &lookBelow); err != nil {
		return nil, err
	}
	dl.LookBelow = lookBelow == 1

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	dl.Entries = make([]DirEnt, count)
	for i := range dl.Entries {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		dl.Entries[i].Name = name
		var ino uint64
		if err := binary.Read(r, binary.LittleEndian, &ino); err != nil {
			return nil, err
		}
		dl.Entries[i].Ino = Ino(ino)
	}
	return dl, nil
}

func decodeBlobRef(r io.Reader) (BlobRef, error) {
	var b BlobRef
	if _, err := io.ReadFull(r, b.Digest[:]); err != nil {
		return b, err
	}
	if err := binary.Read(r, binary.LittleEndian, &b.Offset); err != nil {
		return b, err
	}
	var codec uint8
	if err := binary.Read(r, binary.LittleEndian, &codec); err != nil {
		return b, err
	}
	b.Codec = Codec(codec)
	return b, nil
}

func decodeAdditional(r io.Reader) (*Additional, error) {
	a := &Additional{}
	var xattrCount uint32
	if err := binary.Read(r, binary.LittleEndian, &xattrCount); err != nil {
		return nil, err
	}
	a.Xattrs = make([]Xattr, xattrCount)
	for i := range a.Xattrs {
		var keyLen uint16
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}
		var valLen uint32
		if err := binary.Read(r, binary.LittleEndian, &valLen); err != nil {
			return nil, err
		}
		val := make([]byte, valLen)
		if _, err := io.ReadFull(r, val); err != nil {
			return nil, err
		}
		a.Xattrs[i] = Xattr{Key: key, Value: val}
	}

	var symlinkLen uint32
	if err := binary.Read(r, binary.LittleEndian, &symlinkLen); err != nil {
		return nil, err
	}
	target := make([]byte, symlinkLen)
	if _, err := io.ReadFull(r, target); err != nil {
		return nil, err
	}
	a.SymlinkTarget = target
	return a, nil
}

// magic identifies a metadata-layer blob; layerVersion guards the layout.
const (
	layerMagic   = "PzFsMeta"
	layerVersion = uint32(1)
)

// EncodeLayer writes a metadata layer: a magic/version header followed by
// the inode count and each inode record in order. Callers must pass inodes
// already sorted strictly ascending by Ino (spec.md invariant 4).
func EncodeLayer(w io.Writer, inodes []Inode) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(layerMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, layerVersion); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(inodes))); err != nil {
		return err
	}
	var prev Ino
	for i, ino := range inodes {
		if i > 0 && ino.Ino <= prev {
			return errs.New(errs.InvalidArgument, fmt.Sprintf("inodes not strictly ascending at index %d", i))
		}
		prev = ino.Ino
		if err := EncodeInode(bw, &inodes[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Layer is a decoded metadata layer: an Ino-sorted vector of inodes
// supporting O(log n) lookup.
type Layer struct {
	Inodes []Inode
}

// DecodeLayer reads a metadata layer produced by EncodeLayer.
func DecodeLayer(r io.Reader) (*Layer, error) {
	magic := make([]byte, len(layerMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != layerMagic {
		return nil, errs.New(errs.InvalidSchema, "bad metadata layer magic")
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != layerVersion {
		return nil, errs.New(errs.InvalidSchema, fmt.Sprintf("unsupported metadata layer version %d", version))
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	inodes := make([]Inode, count)
	var prev Ino
	for i := uint32(0); i < count; i++ {
		ino, err := DecodeInode(r)
		if err != nil {
			return nil, err
		}
		if i > 0 && ino.Ino <= prev {
			return nil, errs.New(errs.InvalidSchema, fmt.Sprintf("inodes not strictly ascending at index %d", i))
		}
		prev = ino.Ino
		inodes[i] = *ino
	}
	return &Layer{Inodes: inodes}, nil
}

// Lookup performs a binary search for ino within the layer.
func (l *Layer) Lookup(ino Ino) (*Inode, bool) {
	idx := sort.Search(len(l.Inodes), func(i int) bool {
		return l.Inodes[i].Ino >= ino
	})
	if idx < len(l.Inodes) && l.Inodes[idx].Ino == ino {
		return &l.Inodes[idx], true
	}
	return nil, false
}

// MaxIno returns the greatest Ino present in the layer, or 0 if empty.
func (l *Layer) MaxIno() Ino {
	if len(l.Inodes) == 0 {
		return 0
	}
	return l.Inodes[len(l.Inodes)-1].Ino
}
