package upload

import (
	"context"
	"errors"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

// DiskSource opens files from the local filesystem.
type DiskSource struct {
	// Dir resolves relative paths. Empty means the working directory.
	Dir string
}

// Open opens the file at path.
func (s *DiskSource) Open(_ context.Context, path string) (*File, error) {
	if s.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.Dir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &File{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Reader:      f,
	}, nil
}
