package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is a restartable byte source. The send path opens it twice: once
// for the whole-file digest and once for the chunked read, so Open must
// yield the same bytes on every call.
type File interface {
	// Name returns the display name announced to the peer.
	Name() string

	// Size returns the content length in bytes.
	Size() int64

	// Open returns a fresh reader positioned at the start of the content.
	Open() (io.ReadCloser, error)
}

type osFile struct {
	path string
	name string
	size int64
}

// OSFile wraps a file on disk as a transfer source.
func OSFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &osFile{path: path, name: filepath.Base(path), size: info.Size()}, nil
}

func (f *osFile) Name() string { return f.name }
func (f *osFile) Size() int64  { return f.size }

func (f *osFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

type memFile struct {
	name string
	data []byte
}

// MemFile wraps an in-memory byte slice as a transfer source.
func MemFile(name string, data []byte) File {
	return &memFile{name: name, data: data}
}

func (f *memFile) Name() string { return f.name }
func (f *memFile) Size() int64  { return int64(len(f.data)) }

func (f *memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}
