package extractor

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/puzzlefs/puzzlefs-go/blobstore"
	"github.com/puzzlefs/puzzlefs-go/builder"
	"github.com/puzzlefs/puzzlefs-go/internal/xattr"
	"github.com/puzzlefs/puzzlefs-go/reader"
)

func buildAndOpen(t *testing.T, src string) *reader.Image {
	t.Helper()
	storeDir := t.TempDir()
	bs, err := blobstore.New(storeDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	if _, err := builder.Build(bs, src, builder.Options{Tag: "test"}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	img, err := reader.Open(bs, "test", "")
	if err != nil {
		t.Fatalf("reader.Open: %v", err)
	}
	return img
}

func TestExtractFileTreeAndSymlink(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "dir"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := []byte("hello, puzzlefs")
	if err := os.WriteFile(filepath.Join(src, "dir", "hello.txt"), content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Symlink("hello.txt", filepath.Join(src, "dir", "link")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	img := buildAndOpen(t, src)

	dest := t.TempDir()
	if err := Extract(img, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "dir", "hello.txt"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("extracted content %q, want %q", got, content)
	}

	target, err := os.Readlink(filepath.Join(dest, "dir", "link"))
	if err != nil {
		t.Fatalf("reading extracted symlink: %v", err)
	}
	if target != "hello.txt" {
		t.Fatalf("extracted symlink target %q, want %q", target, "hello.txt")
	}
}

func TestExtractedXattrs(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("xattrs are only captured/replayed on Linux")
	}

	src := t.TempDir()
	foo := filepath.Join(src, "foo")
	bar := filepath.Join(src, "bar")
	if err := os.MkdirAll(foo, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(bar, []byte("bar"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	pairs := []xattr.Pair{{Key: "user.meshuggah", Value: []byte("rocks")}}
	for _, p := range []string{foo, bar} {
		if err := xattr.Set(p, pairs); err != nil {
			t.Skipf("xattrs unsupported on this filesystem: %v", err)
		}
	}

	img := buildAndOpen(t, src)

	dest := t.TempDir()
	if err := Extract(img, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for _, name := range []string{"foo", "bar"} {
		got, err := xattr.List(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("listing xattrs on %s: %v", name, err)
		}
		var found bool
		for _, p := range got {
			if p.Key == "user.meshuggah" && string(p.Value) == "rocks" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected xattr user.meshuggah=rocks on extracted %s, got %+v", name, got)
		}
	}
}

func TestExtractHardLinks(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("hard-link detection requires Linux host stat")
	}

	src := t.TempDir()
	target := filepath.Join(src, "foo")
	if err := os.WriteFile(target, []byte("foo"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Link(target, filepath.Join(src, "bar")); err != nil {
		t.Fatalf("Link: %v", err)
	}

	img := buildAndOpen(t, src)

	dest := t.TempDir()
	if err := Extract(img, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	fi1, err := os.Stat(filepath.Join(dest, "foo"))
	if err != nil {
		t.Fatalf("Stat foo: %v", err)
	}
	fi2, err := os.Stat(filepath.Join(dest, "bar"))
	if err != nil {
		t.Fatalf("Stat bar: %v", err)
	}
	if !os.SameFile(fi1, fi2) {
		t.Fatal("expected foo and bar to be hard-linked in extracted output")
	}
}

func TestExtractWhiteoutIsAbsent(t *testing.T) {
	storeDir := t.TempDir()
	bs, err := blobstore.New(storeDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	src1 := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src1, "a"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src1, "a", "b"), []byte("gone soon"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := builder.Build(bs, src1, builder.Options{Tag: "base"}); err != nil {
		t.Fatalf("base Build: %v", err)
	}

	src2 := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src2, "a"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if _, err := builder.Build(bs, src2, builder.Options{Tag: "delta", BaseTag: "base"}); err != nil {
		t.Fatalf("delta Build: %v", err)
	}

	img, err := reader.Open(bs, "delta", "")
	if err != nil {
		t.Fatalf("reader.Open: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(img, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a", "b")); !os.IsNotExist(err) {
		t.Fatalf("expected whited-out /a/b to be absent, stat err = %v", err)
	}
}
