// Package store persists snapshots under a dated and a "latest" identity.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"marketsnapshot/internal/snapshot"
)

const (
	filePrefix = "markets_"
	latestName = filePrefix + "latest.json"
)

// Paths are the files a snapshot was written to.
type Paths struct {
	Dated  string
	Latest string
}

// Writer writes snapshots into a directory.
type Writer struct {
	fs  afero.Fs
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(fsys afero.Fs, dir string) *Writer {
	return &Writer{fs: fsys, dir: dir}
}

// DatedPath returns the file a snapshot taken on day is stored in.
func (w *Writer) DatedPath(day time.Time) string {
	return filepath.Join(w.dir, filePrefix+day.Format(snapshot.DateLayout)+".json")
}

// LatestPath returns the file the most recent snapshot is stored in.
func (w *Writer) LatestPath() string {
	return filepath.Join(w.dir, latestName)
}

// Write stores snap as the snapshot of day and as the latest snapshot. Both
// files receive the same bytes; an existing file for the same day is
// replaced. Each file is written to a temporary name and renamed into place.
func (w *Writer) Write(snap snapshot.Snapshot, day time.Time) (Paths, error) {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("store: encode snapshot: %w", err)
	}
	raw = append(raw, '\n')

	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("store: create %s: %w", w.dir, err)
	}

	paths := Paths{Dated: w.DatedPath(day), Latest: w.LatestPath()}
	if err := WriteFileAtomic(w.fs, paths.Dated, raw); err != nil {
		return Paths{}, err
	}
	if err := WriteFileAtomic(w.fs, paths.Latest, raw); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

// Latest reads the most recently written snapshot.
func (w *Writer) Latest() (snapshot.Snapshot, error) {
	return w.read(w.LatestPath())
}

// ForDate reads the snapshot written for day.
func (w *Writer) ForDate(day time.Time) (snapshot.Snapshot, error) {
	return w.read(w.DatedPath(day))
}

func (w *Writer) read(path string) (snapshot.Snapshot, error) {
	raw, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("store: read %s: %w", path, err)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return snap, nil
}

// FileMode is the permission of every file written by WriteFileAtomic.
const FileMode = 0o644

// WriteFileAtomic replaces path with data via a temporary file in the same
// directory.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("store: temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := fsys.Chmod(tmpName, FileMode); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("store: chmod %s: %w", path, err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", path, err)
	}
	return nil
}
