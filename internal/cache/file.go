package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"marketsnapshot/internal/store"
)

// FileStore keeps each entry in its own JSON file, <dir>/<key>_cache.json.
// Writes go to a temporary file that is renamed over the entry, so a
// reader never observes a partially written entry.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fsys, dir: dir}
}

// Path returns the file an entry is stored in.
func (f *FileStore) Path(key string) string {
	return filepath.Join(f.dir, key+"_cache.json")
}

// Get implements Store.
func (f *FileStore) Get(key string) ([]byte, error) {
	raw, err := afero.ReadFile(f.fs, f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", key, err)
	}
	return raw, nil
}

// Put implements Store.
func (f *FileStore) Put(key string, value []byte) error {
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("cache: create %s: %w", f.dir, err)
	}

	if err := store.WriteFileAtomic(f.fs, f.Path(key), value); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}
