package blobstore_test

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/puzzlefs/puzzlefs-go/blobstore"
)

func TestNoopRoundTrip(t *testing.T) {
	data := []byte("some file contents")
	var buf bytes.Buffer
	var comp blobstore.Noop
	if err := comp.Compress(&buf, bytes.NewReader(data)); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dec, err := comp.Decompress(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	defer dec.Close()

	got := make([]byte, len(data))
	if _, err := dec.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestZstdRoundTripRanged(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	data := make([]byte, blobstore.DefaultZstdFrameSize*3+123)
	r.Read(data)

	comp := blobstore.Zstd{}
	var buf bytes.Buffer
	if err := comp.Compress(&buf, bytes.NewReader(data)); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	dec, err := comp.Decompress(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	defer dec.Close()

	if dec.UncompressedLength() != int64(len(data)) {
		t.Fatalf("UncompressedLength() = %d, want %d", dec.UncompressedLength(), len(data))
	}

	// Read a range spanning a frame boundary.
	start := blobstore.DefaultZstdFrameSize - 10
	want := data[start : start+40]
	got := make([]byte, 40)
	if _, err := dec.ReadAt(got, int64(start)); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ranged read mismatch at offset %d", start)
	}

	// Full round trip via sequential reads.
	full := make([]byte, 0, len(data))
	chunk := make([]byte, 997) // deliberately not frame-aligned
	var off int64
	for {
		n, err := dec.ReadAt(chunk, off)
		full = append(full, chunk[:n]...)
		off += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadAt: %v", err)
		}
		if n == 0 {
			break
		}
	}
	if !bytes.Equal(full, data) {
		t.Fatalf("full sequential read mismatch: got %d bytes, want %d", len(full), len(data))
	}
}

func TestPutAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bs, err := blobstore.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := []byte("some file contents")
	res, err := bs.Put(data, blobstore.Noop{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if res.Compressed {
		t.Errorf("expected Noop-compressed blob to report Compressed=false")
	}

	dec, err := bs.Open(res.Digest, blobstore.Noop{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dec.Close()

	got := make([]byte, len(data))
	if _, err := dec.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestPutFallsBackToUncompressedWhenNotSmaller(t *testing.T) {
	dir := t.TempDir()
	bs, err := blobstore.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Tiny input: zstd framing overhead makes the compressed form larger
	// than the original, so Put must store it uncompressed per spec.md's
	// compression-suffix rule.
	data := []byte("x")
	res, err := bs.Put(data, blobstore.Zstd{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if res.Compressed {
		t.Errorf("expected tiny blob to be stored uncompressed, got Compressed=true")
	}
}
