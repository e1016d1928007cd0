// Package attachment manages the evidence files each party submits with a
// case. A party may attach between MinFiles and MaxFiles files.
package attachment

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	MinFiles = 1
	MaxFiles = 3
)

// File is a handle to one evidence file. The content is opened lazily so
// large documents are streamed straight into the upload.
type File struct {
	ID   uuid.UUID
	Name string
	Size int64

	open func() (io.ReadCloser, error)
}

// FromPath returns a handle for the file at path.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("attachment %s is a directory", path)
	}
	return File{
		ID:   uuid.New(),
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes returns a handle for in-memory content, such as a file received
// in an upload.
func FromBytes(name string, data []byte) File {
	return File{
		ID:   uuid.New(),
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Open returns a reader over the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("attachment %q has no content", f.Name)
	}
	return f.open()
}

// Add appends incoming to existing. The operation is all-or-nothing: when the
// combined count would exceed MaxFiles it returns a *CapacityError and
// existing is left as it was.
func Add(existing, incoming []File) ([]File, error) {
	total := len(existing) + len(incoming)
	if total > MaxFiles {
		return existing, &CapacityError{Limit: MaxFiles, Attempted: total}
	}
	out := make([]File, 0, total)
	out = append(out, existing...)
	return append(out, incoming...), nil
}

// ReplaceAt returns a copy of existing with the file at index replaced.
func ReplaceAt(existing []File, index int, f File) ([]File, error) {
	if index < 0 || index >= len(existing) {
		return existing, &IndexError{Index: index, Len: len(existing)}
	}
	out := make([]File, len(existing))
	copy(out, existing)
	out[index] = f
	return out, nil
}

// RemoveAt returns a copy of existing without the file at index.
func RemoveAt(existing []File, index int) ([]File, error) {
	if index < 0 || index >= len(existing) {
		return existing, &IndexError{Index: index, Len: len(existing)}
	}
	out := make([]File, 0, len(existing)-1)
	out = append(out, existing[:index]...)
	return append(out, existing[index+1:]...), nil
}

// IsValid reports whether list holds an acceptable number of files.
func IsValid(list []File) bool {
	return len(list) >= MinFiles && len(list) <= MaxFiles
}

// Names returns the file names in order.
func Names(list []File) []string {
	names := make([]string, len(list))
	for i, f := range list {
		names[i] = f.Name
	}
	return names
}
