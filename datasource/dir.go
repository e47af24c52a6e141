package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/IvanBrykalov/lodcache/cache"
)

// Dir reads one file per id, named by Key, from a directory.
type Dir struct {
	root string
}

// NewDir returns a source rooted at root.
func NewDir(root string) *Dir { return &Dir{root: root} }

// Path returns the file path for id.
func (d *Dir) Path(id cache.ID) string { return filepath.Join(d.root, Key(id)) }

func (d *Dir) Read(ctx context.Context, id cache.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, d.Path(id))
	}
	return data, err
}

// Write stores data for id, creating the directory if needed.
func (d *Dir) Write(id cache.ID, data []byte) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.Path(id), data, 0o644)
}
