package builder

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/puzzlefs/puzzlefs-go/blobstore"
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/reader"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func openStore(t *testing.T, storeDir string) *blobstore.BlobStore {
	t.Helper()
	bs, err := blobstore.New(storeDir)
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	return bs
}

func TestSingleFileBuild(t *testing.T) {
	src := t.TempDir()
	content := make([]byte, 109466)
	for i := range content {
		content[i] = byte(i)
	}
	writeFile(t, filepath.Join(src, "SekienAkashita.jpg"), content)

	storeDir := t.TempDir()
	bs := openStore(t, storeDir)

	if _, err := Build(bs, src, Options{Tag: "test"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	img, err := reader.Open(bs, "test", "")
	if err != nil {
		t.Fatalf("reader.Open: %v", err)
	}
	if len(img.Rootfs.Metadatas) != 1 {
		t.Fatalf("expected 1 metadata layer, got %d", len(img.Rootfs.Metadatas))
	}
	if len(img.Layers[0].Inodes) != 2 {
		t.Fatalf("expected exactly 2 inodes, got %d", len(img.Layers[0].Inodes))
	}

	ino, fileInode, err := img.LookupPath("/SekienAkashita.jpg")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	if ino != 2 {
		t.Fatalf("expected Ino 2, got %d", ino)
	}
	if fileInode.FileSize() != uint64(len(content)) {
		t.Fatalf("chunk sum %d != file size %d", fileInode.FileSize(), len(content))
	}
	if len(fileInode.Chunks) != 1 {
		t.Fatalf("expected a single chunk blob for a file under max, got %d", len(fileInode.Chunks))
	}

	buf := make([]byte, len(content))
	n, err := img.ReadFile(fileInode, 0, buf)
	if err != nil || n != len(content) {
		t.Fatalf("ReadFile: n=%d err=%v", n, err)
	}
	for i := range content {
		if buf[i] != content[i] {
			t.Fatalf("content mismatch at byte %d", i)
		}
	}
}

func TestDeltaBuild(t *testing.T) {
	storeDir := t.TempDir()
	bs := openStore(t, storeDir)

	src1 := t.TempDir()
	jpeg := []byte("pretend jpeg bytes")
	writeFile(t, filepath.Join(src1, "SekienAkashita.jpg"), jpeg)
	if _, err := Build(bs, src1, Options{Tag: "test"}); err != nil {
		t.Fatalf("base Build: %v", err)
	}

	src2 := t.TempDir()
	writeFile(t, filepath.Join(src2, "SekienAkashita.jpg"), jpeg)
	if err := os.MkdirAll(filepath.Join(src2, "foo"), 0o755); err != nil {
		t.Fatalf("MkdirAll foo: %v", err)
	}
	if _, err := Build(bs, src2, Options{Tag: "test2", BaseTag: "test"}); err != nil {
		t.Fatalf("delta Build: %v", err)
	}

	img, err := reader.Open(bs, "test2", "")
	if err != nil {
		t.Fatalf("reader.Open: %v", err)
	}
	if len(img.Rootfs.Metadatas) != 2 {
		t.Fatalf("expected 2 metadata layers, got %d", len(img.Rootfs.Metadatas))
	}

	ino, inode, err := img.LookupPath("/SekienAkashita.jpg")
	if err != nil {
		t.Fatalf("LookupPath jpeg: %v", err)
	}
	if ino != 2 {
		t.Fatalf("expected reused Ino 2, got %d", ino)
	}
	if inode.Kind != metadata.KindFile {
		t.Fatalf("expected file kind, got %v", inode.Kind)
	}

	fooIno, fooInode, err := img.LookupPath("/foo")
	if err != nil {
		t.Fatalf("LookupPath foo: %v", err)
	}
	if fooIno != 3 {
		t.Fatalf("expected fresh Ino 3 for /foo, got %d", fooIno)
	}
	if fooInode.Kind != metadata.KindDir {
		t.Fatalf("expected dir kind, got %v", fooInode.Kind)
	}

	root, err := img.Lookup(metadata.RootIno)
	if err != nil {
		t.Fatalf("Lookup root: %v", err)
	}
	if len(root.Dir.Entries) != 2 {
		t.Fatalf("expected 2 root entries, got %d", len(root.Dir.Entries))
	}
	if string(root.Dir.Entries[0].Name) != "SekienAkashita.jpg" || string(root.Dir.Entries[1].Name) != "foo" {
		t.Fatalf("unexpected root entry order: %+v", root.Dir.Entries)
	}
}

func TestBuildIsReproducible(t *testing.T) {
	makeTree := func(root string) {
		for _, d := range []string{"foo", "bar", "baz"} {
			if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
				t.Fatalf("MkdirAll %s: %v", d, err)
			}
		}
		for _, f := range []string{"foo_file", "bar_file", "baz_file"} {
			writeFile(t, filepath.Join(root, f), []byte("some file contents"))
		}
	}

	var blobSets [][]string
	for i := 0; i < 10; i++ {
		src := t.TempDir()
		makeTree(src)

		storeDir := t.TempDir()
		bs := openStore(t, storeDir)
		if _, err := Build(bs, src, Options{Tag: "test"}); err != nil {
			t.Fatalf("build %d: %v", i, err)
		}

		var names []string
		err := filepath.Walk(filepath.Join(storeDir, "blobs", "sha256"), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				names = append(names, info.Name())
			}
			return nil
		})
		if err != nil {
			t.Fatalf("walking blobs: %v", err)
		}
		blobSets = append(blobSets, names)
	}

	first := toSet(blobSets[0])
	for i, names := range blobSets[1:] {
		if !setsEqual(first, toSet(names)) {
			t.Fatalf("build %d produced a different blob set: %v vs %v", i+1, names, blobSets[0])
		}
	}
}

func toSet(names []string) map[string]bool {
	s := map[string]bool{}
	for _, n := range names {
		s[n] = true
	}
	return s
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func TestWhiteout(t *testing.T) {
	storeDir := t.TempDir()
	bs := openStore(t, storeDir)

	src1 := t.TempDir()
	writeFile(t, filepath.Join(src1, "a", "b"), []byte("gone soon"))
	if _, err := Build(bs, src1, Options{Tag: "base"}); err != nil {
		t.Fatalf("base Build: %v", err)
	}

	src2 := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src2, "a"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if _, err := Build(bs, src2, Options{Tag: "delta", BaseTag: "base"}); err != nil {
		t.Fatalf("delta Build: %v", err)
	}

	img, err := reader.Open(bs, "delta", "")
	if err != nil {
		t.Fatalf("reader.Open: %v", err)
	}

	if _, _, err := img.LookupPath("/a/b"); err == nil {
		t.Fatal("expected NotFound looking up whited-out /a/b")
	}

	aIno, _, err := img.LookupPath("/a")
	if err != nil {
		t.Fatalf("LookupPath /a: %v", err)
	}
	entries, err := img.ReadDir(aIno)
	if err != nil {
		t.Fatalf("ReadDir /a: %v", err)
	}
	for _, e := range entries {
		if string(e.Name) == "b" {
			t.Fatal("listing /a should not yield b")
		}
	}
}

func TestHardLinksPreserveOneBody(t *testing.T) {
	// Hard-link detection relies on host inode numbers (syscall.Stat_t),
	// which this process can only observe on Linux; elsewhere hostStat
	// reports !ok and every entry is treated as distinct, so the test
	// only asserts the shared-body behavior on Linux.
	if runtime.GOOS != "linux" {
		t.Skip("hard-link detection requires Linux host stat")
	}

	src := t.TempDir()
	target := filepath.Join(src, "foo")
	writeFile(t, target, []byte("foo"))
	if err := os.Link(target, filepath.Join(src, "bar")); err != nil {
		t.Fatalf("Link: %v", err)
	}

	storeDir := t.TempDir()
	bs := openStore(t, storeDir)
	if _, err := Build(bs, src, Options{Tag: "test"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	img, err := reader.Open(bs, "test", "")
	if err != nil {
		t.Fatalf("reader.Open: %v", err)
	}
	fooIno, _, err := img.LookupPath("/foo")
	if err != nil {
		t.Fatalf("LookupPath /foo: %v", err)
	}
	barIno, _, err := img.LookupPath("/bar")
	if err != nil {
		t.Fatalf("LookupPath /bar: %v", err)
	}
	if fooIno != barIno {
		t.Fatalf("expected shared Ino, got %d and %d", fooIno, barIno)
	}

	var fileInodeCount int
	for _, ino := range img.Layers[0].Inodes {
		if ino.Kind == metadata.KindFile {
			fileInodeCount++
		}
	}
	if fileInodeCount != 1 {
		t.Fatalf("expected the file body to be emitted once, found %d file inodes", fileInodeCount)
	}
}
