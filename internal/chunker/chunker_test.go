package chunker_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/puzzlefs/puzzlefs-go/internal/chunker"
)

func chunkAll(t *testing.T, data []byte, min, avg, max int) []chunker.Chunk {
	t.Helper()
	c := chunker.New(min, avg, max)
	if err := c.Push(data); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return c.Drain()
}

// TestRoundTrip checks that concatenating the chunk data fields reproduces
// the original input exactly, for any chunker configuration.
func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	data := make([]byte, 5*chunker.DefaultAvg+777)
	r.Read(data)

	chunks := chunkAll(t, data, chunker.DefaultMin, chunker.DefaultAvg, chunker.DefaultMax)

	var got bytes.Buffer
	for _, c := range chunks {
		got.Write(c.Data)
	}
	if !bytes.Equal(got.Bytes(), data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", got.Len(), len(data))
	}
}

// TestBounds checks that every chunk respects the configured min/max, except
// that the final chunk may be shorter than min (residual flush).
func TestBounds(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	data := make([]byte, 8*chunker.DefaultAvg)
	r.Read(data)

	chunks := chunkAll(t, data, chunker.DefaultMin, chunker.DefaultAvg, chunker.DefaultMax)
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}

	var offset uint64
	for i, c := range chunks {
		if c.Offset != offset {
			t.Errorf("chunk %d: offset %d, want %d", i, c.Offset, offset)
		}
		if c.Len > uint64(chunker.DefaultMax) {
			t.Errorf("chunk %d: len %d exceeds max %d", i, c.Len, chunker.DefaultMax)
		}
		if i < len(chunks)-1 && c.Len < uint64(chunker.DefaultMin) {
			t.Errorf("chunk %d: len %d below min %d (not the final chunk)", i, c.Len, chunker.DefaultMin)
		}
		offset += c.Len
	}
}

// TestEmptyInput checks that finishing without pushing anything yields no
// chunks.
func TestEmptyInput(t *testing.T) {
	chunks := chunkAll(t, nil, chunker.DefaultMin, chunker.DefaultAvg, chunker.DefaultMax)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

// TestForcedMaxCut checks that a run with no natural cut points (all zero
// bytes) is still split at the max boundary.
func TestForcedMaxCut(t *testing.T) {
	data := make([]byte, 3*chunker.DefaultMax)
	chunks := chunkAll(t, data, chunker.DefaultMin, chunker.DefaultAvg, chunker.DefaultMax)

	for i, c := range chunks {
		if c.Len > uint64(chunker.DefaultMax) {
			t.Errorf("chunk %d: len %d exceeds max %d", i, c.Len, chunker.DefaultMax)
		}
	}
	var total uint64
	for _, c := range chunks {
		total += c.Len
	}
	if total != uint64(len(data)) {
		t.Fatalf("total chunked bytes %d, want %d", total, len(data))
	}
}

// TestStabilization checks the quantified stability property for small
// edits: flipping one byte, 1KiB, or min bytes at offset 2*avg leaves every
// chunk boundary (offset and length) unchanged.
func TestStabilization(t *testing.T) {
	const avg = chunker.DefaultAvg
	min, max := chunker.DefaultMin, chunker.DefaultMax

	r := rand.New(rand.NewSource(42))
	original := make([]byte, 10*avg)
	r.Read(original)

	flipAt := func(buf []byte, at, n int) []byte {
		out := make([]byte, len(buf))
		copy(out, buf)
		r2 := rand.New(rand.NewSource(99))
		for i := 0; i < n; i++ {
			out[at+i] ^= byte(r2.Intn(255) + 1)
		}
		return out
	}

	chunksOf := func(buf []byte) []chunker.Chunk {
		return chunkAll(t, buf, min, avg, max)
	}

	sameChunks := func(a, b []chunker.Chunk) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i].Offset != b[i].Offset || a[i].Len != b[i].Len {
				return false
			}
		}
		return true
	}

	original1 := flipAt(original, 2*avg, 1)
	c0 := chunksOf(original)
	c1 := chunksOf(original1)
	if !sameChunks(c0, c1) {
		t.Errorf("flipping a single byte changed the chunk sequence")
	}

	originalKiB := flipAt(original, 2*avg, 1024)
	cKiB := chunksOf(originalKiB)
	if !sameChunks(c0, cKiB) {
		t.Errorf("flipping 1KiB changed the chunk sequence")
	}

	originalMin := flipAt(original, 2*avg, min)
	cMin := chunksOf(originalMin)
	if !sameChunks(c0, cMin) {
		t.Errorf("flipping min bytes changed the chunk sequence")
	}
}
