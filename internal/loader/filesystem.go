package loader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/raphaelgruber/spidersync/internal/syncerr"
)

// FileSystem reads spider files below a base directory.
type FileSystem struct {
	basePath string
}

// NewFileSystem creates a loader rooted at basePath.
func NewFileSystem(basePath string) *FileSystem {
	return &FileSystem{basePath: basePath}
}

// Open opens name relative to the base path. Names may not escape the base path.
func (f *FileSystem) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.OpenInRoot(f.basePath, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, syncerr.NotFound(name, err)
		}
		return nil, syncerr.Transport(name, err)
	}
	return file, nil
}
