package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned when a referenced file doesn't exist.
var ErrNotFound = errors.New("upload: file not found")

// ErrInvalidRef is returned when a file reference can't be parsed.
var ErrInvalidRef = errors.New("upload: invalid file reference")

// Source opens files by reference.
type Source interface {
	Open(ctx context.Context, ref string) (*File, error)
}

// File is a file attached to a mutation call.
type File struct {
	// Key is the form field the file is sent under.
	Key string

	// Filename is the name reported to the server.
	Filename string

	// ContentType is the MIME type of the file.
	ContentType string

	// Size is the file size in bytes, or -1 if unknown.
	Size int64

	// Reader provides the file contents.
	Reader io.ReadCloser
}

// Close closes the file reader if open.
func (f *File) Close() error {
	if f.Reader != nil {
		return f.Reader.Close()
	}
	return nil
}

// CloseAll closes every file, returning the first error.
func CloseAll(files []File) error {
	var first error
	for i := range files {
		if err := files[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Resolver dispatches references to the disk or S3 source.
type Resolver struct {
	Disk Source
	S3   Source
}

// Open opens ref with the matching source.
func (r *Resolver) Open(ctx context.Context, ref string) (*File, error) {
	if strings.HasPrefix(ref, "s3://") {
		if r.S3 == nil {
			return nil, fmt.Errorf("%w: no S3 source configured for %q", ErrInvalidRef, ref)
		}
		return r.S3.Open(ctx, ref)
	}
	if r.Disk == nil {
		return nil, fmt.Errorf("%w: no disk source configured for %q", ErrInvalidRef, ref)
	}
	return r.Disk.Open(ctx, ref)
}

// OpenField parses a "key=ref" pair and opens ref with src, setting the
// file's form key.
func OpenField(ctx context.Context, src Source, field string) (*File, error) {
	key, ref, ok := strings.Cut(field, "=")
	if !ok || key == "" || ref == "" {
		return nil, fmt.Errorf("%w: %q is not key=path", ErrInvalidRef, field)
	}
	f, err := src.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	f.Key = key
	return f, nil
}
