package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// ErrIndexOutOfRange indicates a chunk index outside [0, total_chunks).
var ErrIndexOutOfRange = errors.New("chunk index out of range")

// ErrChunkMismatch indicates an already-stored index re-delivered with
// different bytes. That is an integrity fault, never a silent overwrite.
var ErrChunkMismatch = errors.New("chunk re-delivered with different bytes")

// ErrLengthMismatch indicates a chunk whose length is inconsistent with
// the chunks already received for the same transfer.
var ErrLengthMismatch = errors.New("chunk length inconsistent with stream")

// ErrIncomplete indicates Assemble was called before every chunk arrived.
var ErrIncomplete = errors.New("assembly attempted before all chunks received")

// ErrSizeMismatch indicates the assembled byte count differs from the
// size announced at transfer start.
var ErrSizeMismatch = errors.New("assembled size differs from announced size")

// Meta is the expected file metadata announced by the sender's start
// message.
type Meta struct {
	Name        string
	Size        int64
	Hash        string
	TotalChunks int
}

// Assembler buffers chunks of one incoming transfer and reconstructs the
// original file once every index has arrived. Chunks may arrive in any
// order; the assembler never requires contiguous delivery.
type Assembler struct {
	meta Meta

	mu       sync.Mutex
	parts    map[int][]byte
	received int
	bytes    int64

	// Length every non-final chunk must share, learned from the first
	// non-final chunk to arrive. The wire does not announce the sender's
	// chunk size, but a fixed-size chunking makes it uniform.
	bodyLen int
}

// NewAssembler creates an assembler for the transfer described by meta.
func NewAssembler(meta Meta) (*Assembler, error) {
	if meta.TotalChunks < 1 {
		return nil, fmt.Errorf("total_chunks must be at least 1, got %d", meta.TotalChunks)
	}
	if meta.Size < 0 {
		return nil, ErrInvalidFileSize
	}
	return &Assembler{
		meta:  meta,
		parts: make(map[int][]byte, meta.TotalChunks),
	}, nil
}

// Meta returns the expected file metadata.
func (a *Assembler) Meta() Meta { return a.meta }

// ExpectedHash returns the content digest announced by the sender.
func (a *Assembler) ExpectedHash() string { return a.meta.Hash }

// AddChunk stores the bytes for one index and reports whether the transfer
// is now complete. Re-delivering an index with identical bytes is
// idempotent and does not advance progress; re-delivering it with
// different bytes returns ErrChunkMismatch.
func (a *Assembler) AddChunk(index int, data []byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index >= a.meta.TotalChunks {
		return false, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, a.meta.TotalChunks)
	}

	if existing, ok := a.parts[index]; ok {
		if !bytes.Equal(existing, data) {
			return false, fmt.Errorf("%w: index %d", ErrChunkMismatch, index)
		}
		return a.received == a.meta.TotalChunks, nil
	}

	if err := a.checkLength(index, len(data)); err != nil {
		return false, err
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	a.parts[index] = stored
	a.received++
	a.bytes += int64(len(data))

	return a.received == a.meta.TotalChunks, nil
}

// checkLength enforces the fixed-size chunking invariant: every non-final
// chunk has the same length and the final chunk is never longer.
func (a *Assembler) checkLength(index, length int) error {
	final := index == a.meta.TotalChunks-1
	if final {
		if a.bodyLen > 0 && length > a.bodyLen {
			return fmt.Errorf("%w: final chunk %d longer than body chunks", ErrLengthMismatch, length)
		}
		return nil
	}
	if a.bodyLen == 0 {
		if length == 0 {
			return fmt.Errorf("%w: empty non-final chunk", ErrLengthMismatch)
		}
		a.bodyLen = length
		return nil
	}
	if length != a.bodyLen {
		return fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, length, a.bodyLen)
	}
	return nil
}

// Received returns the number of distinct chunks stored so far.
func (a *Assembler) Received() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.received
}

// Bytes returns the number of payload bytes stored so far.
func (a *Assembler) Bytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

// Progress returns fractional completion as an integer percentage. It is
// monotonically non-decreasing as chunks arrive.
func (a *Assembler) Progress() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.received * 100 / a.meta.TotalChunks
}

// Assemble concatenates the chunks in index order into one contiguous
// buffer. Calling it before AddChunk has reported completion is a
// programming error and fails with ErrIncomplete rather than returning a
// truncated file.
func (a *Assembler) Assemble() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.received != a.meta.TotalChunks {
		return nil, fmt.Errorf("%w: %d of %d chunks", ErrIncomplete, a.received, a.meta.TotalChunks)
	}
	if a.bytes != a.meta.Size {
		return nil, fmt.Errorf("%w: assembled %d bytes, announced %d", ErrSizeMismatch, a.bytes, a.meta.Size)
	}

	out := make([]byte, 0, a.bytes)
	for i := 0; i < a.meta.TotalChunks; i++ {
		out = append(out, a.parts[i]...)
	}
	return out, nil
}
