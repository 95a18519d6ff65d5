package cache

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(afero.NewMemMapFs(), "data/raw"),
		"os":     NewFileStore(afero.NewOsFs(), t.TempDir()),
		"sqlite": sqlite,
	}
}

func TestStore_MissingKey(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get("fii_dii")
			assert.ErrorIs(t, err, ErrNotFound)

			var e entry
			assert.ErrorIs(t, Load(s, "fii_dii", &e), ErrNotFound)
		})
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, Save(s, "fii_dii", entry{Date: "2024-01-01", Value: 1}))
			require.NoError(t, Save(s, "fii_dii", entry{Date: "2024-01-02", Value: 2}))

			var got entry
			require.NoError(t, Load(s, "fii_dii", &got))
			assert.Equal(t, entry{Date: "2024-01-02", Value: 2}, got)
		})
	}
}

func TestStore_KeysAreIndependent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put("a", []byte(`"one"`)))
			require.NoError(t, s.Put("b", []byte(`"two"`)))

			a, err := s.Get("a")
			require.NoError(t, err)
			assert.Equal(t, `"one"`, string(a))
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewFileStore(fsys, "data/raw")

	require.NoError(t, s.Put("fii_dii", []byte(`{}`)))

	ok, err := afero.Exists(fsys, filepath.Join("data", "raw", "fii_dii_cache.json"))
	require.NoError(t, err)
	assert.True(t, ok)

	files, err := afero.ReadDir(fsys, "data/raw")
	require.NoError(t, err)
	assert.Len(t, files, 1, "temporary files are renamed away")
}

func TestLoad_CorruptEntry(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put("fii_dii", []byte(`{not json`)))

	var e entry
	err := Load(s, "fii_dii", &e)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
