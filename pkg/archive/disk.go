package archive

import (
	"context"
	"os"
	"path/filepath"
)

// DiskArchiver stores exports under a local directory.
type DiskArchiver struct {
	dir string
}

// NewDiskArchiver creates dir if needed.
func NewDiskArchiver(dir string) (*DiskArchiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DiskArchiver{dir: dir}, nil
}

// Store implements Archiver. The file is written to a temporary name and
// renamed into place.
func (a *DiskArchiver) Store(ctx context.Context, obj *Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(a.dir, filepath.FromSlash(obj.Key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, obj.Body, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
