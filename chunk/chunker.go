// Package chunk splits files into fixed-size indexed chunks on the send
// side and reassembles them from arbitrary arrival order on the receive
// side.
package chunk

import (
	"errors"
	"fmt"
	"io"
)

// DefaultSize is the default chunk payload size in bytes. It is chosen
// conservatively below the maximum single-message size a peer data channel
// will reliably deliver.
const DefaultSize = 64 * 1024

// ErrInvalidChunkSize indicates a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ErrInvalidFileSize indicates a negative file size.
var ErrInvalidFileSize = errors.New("file size must not be negative")

// Chunk is one contiguous byte range of a file, tagged with its position
// in the stream.
type Chunk struct {
	Index int
	Data  []byte
	Last  bool
}

// Count returns the number of chunks a file of fileSize bytes splits into.
// A zero-byte file maps to exactly one zero-length chunk so that empty
// files still round-trip through the protocol.
func Count(fileSize int64, chunkSize int) int {
	if fileSize <= 0 {
		return 1
	}
	return int((fileSize + int64(chunkSize) - 1) / int64(chunkSize))
}

// Chunker produces the finite ordered chunk sequence for one file. A fresh
// Chunker over a fresh reader yields the identical sequence, which is what
// lets the send path take a second pass after hashing.
type Chunker struct {
	src       io.Reader
	fileSize  int64
	chunkSize int
	total     int
	index     int
}

// NewChunker creates a chunker over src, which must deliver exactly
// fileSize bytes.
func NewChunker(src io.Reader, fileSize int64, chunkSize int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if fileSize < 0 {
		return nil, ErrInvalidFileSize
	}
	return &Chunker{
		src:       src,
		fileSize:  fileSize,
		chunkSize: chunkSize,
		total:     Count(fileSize, chunkSize),
	}, nil
}

// Total returns the number of chunks the sequence will produce.
func (c *Chunker) Total() int { return c.total }

// Next produces the next chunk in ascending index order, returning io.EOF
// once the sequence is exhausted. All chunks carry exactly chunkSize bytes
// except the final one, which holds the remainder.
func (c *Chunker) Next() (Chunk, error) {
	if c.index >= c.total {
		return Chunk{}, io.EOF
	}

	length := c.lengthAt(c.index)
	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(c.src, data); err != nil {
			return Chunk{}, fmt.Errorf("read chunk %d: %w", c.index, err)
		}
	}

	chunk := Chunk{
		Index: c.index,
		Data:  data,
		Last:  c.index == c.total-1,
	}
	c.index++
	return chunk, nil
}

// lengthAt returns the payload length of the chunk at index.
func (c *Chunker) lengthAt(index int) int {
	if index < c.total-1 {
		return c.chunkSize
	}
	return int(c.fileSize - int64(c.total-1)*int64(c.chunkSize))
}
