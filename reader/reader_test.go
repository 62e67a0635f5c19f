package reader

import (
	"bytes"
	"testing"

	digest "github.com/opencontainers/go-digest"

	"github.com/puzzlefs/puzzlefs-go/blobstore"
	"github.com/puzzlefs/puzzlefs-go/metadata"
)

// buildTinyImage hand-assembles a one-file, one-directory image directly
// through blobstore/metadata/ociimage, bypassing builder, so reader can be
// tested independently of it.
func buildTinyImage(t *testing.T, dir string, content []byte) *blobstore.BlobStore {
	t.Helper()
	bs, err := blobstore.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	put, err := bs.Put(content, blobstore.Noop{})
	if err != nil {
		t.Fatalf("Put file: %v", err)
	}

	fileInode := metadata.Inode{
		Ino:  2,
		Kind: metadata.KindFile,
		Perm: 0o644,
		Chunks: []metadata.FileChunk{
			{Blob: metadata.BlobRef{Digest: put.Digest, Codec: metadata.CodecNone}, Len: uint64(len(content))},
		},
	}
	rootInode := metadata.Inode{
		Ino:  metadata.RootIno,
		Kind: metadata.KindDir,
		Perm: 0o755,
		Dir: &metadata.DirList{
			Entries: []metadata.DirEnt{{Name: []byte("hello.txt"), Ino: 2}},
		},
	}

	var layerBuf bytes.Buffer
	if err := metadata.EncodeLayer(&layerBuf, []metadata.Inode{rootInode, fileInode}); err != nil {
		t.Fatalf("EncodeLayer: %v", err)
	}
	layerPut, err := bs.Put(layerBuf.Bytes(), blobstore.Noop{})
	if err != nil {
		t.Fatalf("Put layer: %v", err)
	}

	rootfs := metadata.Rootfs{
		Metadatas: []metadata.BlobRef{
			{Digest: layerPut.Digest, Codec: metadata.CodecNone},
		},
		FsVerityData: map[metadata.Digest]metadata.VerityDigest{},
	}
	var rootfsBuf bytes.Buffer
	if err := metadata.EncodeRootfs(&rootfsBuf, &rootfs); err != nil {
		t.Fatalf("EncodeRootfs: %v", err)
	}
	rootfsPut, err := bs.Put(rootfsBuf.Bytes(), blobstore.Noop{})
	if err != nil {
		t.Fatalf("Put rootfs: %v", err)
	}

	ociDigest := digest.NewDigestFromEncoded(digest.SHA256, rootfsPut.Digest.String())
	desc, err := bs.Image.WriteManifest(ociDigest, int64(rootfsBuf.Len()), rootfsPut.Compressed, "")
	if err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	if err := bs.Image.AddTag("latest", desc); err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	return bs
}

func TestOpenAndReadFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello, puzzlefs")
	bs := buildTinyImage(t, dir, content)

	img, err := Open(bs, "latest", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ino, inode, err := img.LookupPath("/hello.txt")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	if ino != 2 || inode.Kind != metadata.KindFile {
		t.Fatalf("unexpected lookup result: ino=%d kind=%v", ino, inode.Kind)
	}

	buf := make([]byte, len(content))
	n, err := img.ReadFile(inode, 0, buf)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n != len(content) || string(buf) != string(content) {
		t.Fatalf("ReadFile returned %q, want %q", buf[:n], content)
	}

	partial := make([]byte, 5)
	n, err = img.ReadFile(inode, 7, partial)
	if err != nil {
		t.Fatalf("ranged ReadFile: %v", err)
	}
	if string(partial[:n]) != "puzzl" {
		t.Fatalf("ranged read got %q, want %q", partial[:n], "puzzl")
	}
}

func TestLookupPathNotFound(t *testing.T) {
	dir := t.TempDir()
	bs := buildTinyImage(t, dir, []byte("x"))
	img, err := Open(bs, "latest", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := img.LookupPath("/missing"); err == nil {
		t.Fatal("expected NotFound error")
	}
}
