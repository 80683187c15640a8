// Package intake turns candidate files into queue-ready sources: it opens,
// validates and fingerprints them without ever inspecting their content type.
package intake

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Source is a file-like payload: a name, a declared size and a way to read
// its bytes. Open may be called more than once (hash, then upload).
type Source interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// FileSource reads a file from disk
type FileSource struct {
	path string
	size int64
}

// NewFileSource stats path and returns a source for it
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileSource{path: path, size: info.Size()}, nil
}

func (f *FileSource) Name() string { return filepath.Base(f.path) }

func (f *FileSource) Size() int64 { return f.size }

func (f *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Path returns the on-disk location
func (f *FileSource) Path() string { return f.path }

// BytesSource is an in-memory payload
type BytesSource struct {
	name string
	data []byte
}

func NewBytesSource(name string, data []byte) *BytesSource {
	return &BytesSource{name: name, data: data}
}

func (b *BytesSource) Name() string { return b.name }

func (b *BytesSource) Size() int64 { return int64(len(b.data)) }

func (b *BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// MultipartSource is a file part received by the session API. Parts within
// the size limit are copied into memory since the request's temporary files
// are removed once the handler returns.
type MultipartSource struct {
	header *multipart.FileHeader
	data   []byte
}

// NewMultipartSource buffers header's content when it fits in limit. Larger
// parts keep only the header so validation can still reject them by size.
func NewMultipartSource(header *multipart.FileHeader, limit int64) (*MultipartSource, error) {
	src := &MultipartSource{header: header}
	if limit > 0 && header.Size > limit {
		return src, nil
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", header.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", header.Filename, err)
	}
	src.data = data
	return src, nil
}

func (m *MultipartSource) Name() string { return filepath.Base(m.header.Filename) }

func (m *MultipartSource) Size() int64 { return m.header.Size }

func (m *MultipartSource) Open() (io.ReadCloser, error) {
	if m.data != nil {
		return io.NopCloser(bytes.NewReader(m.data)), nil
	}
	return m.header.Open()
}
