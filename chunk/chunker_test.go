package chunk

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func testData(n int) []byte {
	data := make([]byte, n)
	rng := rand.New(rand.NewSource(42))
	rng.Read(data)
	return data
}

func TestCount(t *testing.T) {
	tests := []struct {
		name      string
		fileSize  int64
		chunkSize int
		want      int
	}{
		{"zero byte file", 0, 65536, 1},
		{"exact single chunk", 65536, 65536, 1},
		{"one byte over", 65537, 65536, 2},
		{"one byte file", 1, 65536, 1},
		{"partial final chunk", 150000, 65536, 3},
		{"exact multiple", 3 * 65536, 65536, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.fileSize, tt.chunkSize); got != tt.want {
				t.Errorf("Count(%d, %d) = %d, want %d", tt.fileSize, tt.chunkSize, got, tt.want)
			}
		})
	}
}

func TestChunkerSequence(t *testing.T) {
	data := testData(150000)

	c, err := NewChunker(bytes.NewReader(data), int64(len(data)), 65536)
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	if c.Total() != 3 {
		t.Fatalf("expected 3 chunks, got %d", c.Total())
	}

	wantLens := []int{65536, 65536, 18928}
	var reassembled []byte
	for i := 0; ; i++ {
		chunk, err := c.Next()
		if err == io.EOF {
			if i != 3 {
				t.Fatalf("sequence ended after %d chunks, want 3", i)
			}
			break
		}
		if err != nil {
			t.Fatalf("Next failed at chunk %d: %v", i, err)
		}
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if len(chunk.Data) != wantLens[i] {
			t.Errorf("chunk %d has %d bytes, want %d", i, len(chunk.Data), wantLens[i])
		}
		if chunk.Last != (i == 2) {
			t.Errorf("chunk %d Last = %v", i, chunk.Last)
		}
		reassembled = append(reassembled, chunk.Data...)
	}

	if !bytes.Equal(reassembled, data) {
		t.Error("concatenated chunks differ from source data")
	}
}

func TestChunkerZeroByteFile(t *testing.T) {
	c, err := NewChunker(bytes.NewReader(nil), 0, 65536)
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	chunk, err := c.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if chunk.Index != 0 || len(chunk.Data) != 0 || !chunk.Last {
		t.Errorf("zero-byte file should yield one empty last chunk, got index=%d len=%d last=%v",
			chunk.Index, len(chunk.Data), chunk.Last)
	}

	if _, err := c.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after single chunk, got %v", err)
	}
}

func TestChunkerRestartable(t *testing.T) {
	data := testData(100000)

	collect := func() [][]byte {
		c, err := NewChunker(bytes.NewReader(data), int64(len(data)), 4096)
		if err != nil {
			t.Fatalf("NewChunker failed: %v", err)
		}
		var chunks [][]byte
		for {
			chunk, err := c.Next()
			if err == io.EOF {
				return chunks
			}
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			chunks = append(chunks, chunk.Data)
		}
	}

	first, second := collect(), collect()
	if len(first) != len(second) {
		t.Fatalf("runs produced %d and %d chunks", len(first), len(second))
	}
	for i := range first {
		if !bytes.Equal(first[i], second[i]) {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkerInvalidConfig(t *testing.T) {
	if _, err := NewChunker(bytes.NewReader(nil), 10, 0); err != ErrInvalidChunkSize {
		t.Errorf("expected ErrInvalidChunkSize, got %v", err)
	}
	if _, err := NewChunker(bytes.NewReader(nil), -1, 1024); err != ErrInvalidFileSize {
		t.Errorf("expected ErrInvalidFileSize, got %v", err)
	}
}

func TestChunkerShortSource(t *testing.T) {
	c, err := NewChunker(bytes.NewReader(make([]byte, 100)), 5000, 1024)
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}
	if _, err := c.Next(); err == nil {
		t.Error("expected read error when source is shorter than declared size")
	}
}
