package storageserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfcarvalho/distfs/internal/path"
)

func TestDiskBackendCreateWriteReadSize(t *testing.T) {
	b, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)

	p, _ := path.Parse("/a/b")
	require.NoError(t, b.Create(p))

	n, err := b.Size(p)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, b.WriteAt(p, 0, []byte("hello")))
	n, err = b.Size(p)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	data, err := b.ReadAt(p, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "ell", string(data))
}

func TestDiskBackendReadPastEndOfFileIsShort(t *testing.T) {
	b, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	p, _ := path.Parse("/f")
	require.NoError(t, b.Create(p))
	require.NoError(t, b.WriteAt(p, 0, []byte("ab")))

	data, err := b.ReadAt(p, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

func TestDiskBackendSizeOfMissingFileIsNotExist(t *testing.T) {
	b, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	p, _ := path.Parse("/missing")
	_, err = b.Size(p)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestDiskBackendDeletePrunesEmptyAncestors(t *testing.T) {
	root := t.TempDir()
	b, err := NewDiskBackend(root)
	require.NoError(t, err)
	p, _ := path.Parse("/a/b/c")
	require.NoError(t, b.Create(p))
	require.NoError(t, b.Delete(p))

	var found []path.Path
	require.NoError(t, b.ForEach(func(p path.Path) error {
		found = append(found, p)
		return nil
	}))
	assert.Empty(t, found)

	_, err = os.Stat(filepath.Join(root, "a"))
	assert.True(t, os.IsNotExist(err), "empty ancestor directories should have been pruned")
}

func TestDiskBackendForEachEnumeratesStoredFiles(t *testing.T) {
	b, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	a, _ := path.Parse("/a")
	c, _ := path.Parse("/b/c")
	require.NoError(t, b.Create(a))
	require.NoError(t, b.Create(c))

	var found []string
	require.NoError(t, b.ForEach(func(p path.Path) error {
		found = append(found, p.String())
		return nil
	}))
	assert.ElementsMatch(t, []string{"/a", "/b/c"}, found)
}
