package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegorkir/imgrotate/internal/fault"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestManagerCreatesLocalDir(t *testing.T) {
	parent := t.TempDir()
	m := NewManager("", filepath.Join(t.TempDir(), "fallback"))

	dir, err := m.Dir(parent)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, DefaultDirName), dir)
	assert.False(t, m.Fallback(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe must not be left behind")
}

func TestManagerCachesPerParent(t *testing.T) {
	parent := t.TempDir()
	m := NewManager("bk", "")

	first, err := m.Dir(parent)
	require.NoError(t, err)

	// Break the directory; a cached answer must not probe again.
	require.NoError(t, os.RemoveAll(first))
	writeFile(t, first, []byte("now a file"))

	second, err := m.Dir(parent)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A fresh manager has its own cache and sees the broken path.
	_, err = NewManager("bk", "").Dir(parent)
	assert.ErrorIs(t, err, fault.ErrBackupDirUnavailable)
}

func TestManagerFallsBack(t *testing.T) {
	parent := t.TempDir()
	// A regular file where the backup directory should go cannot be turned
	// into a directory, even by root.
	writeFile(t, filepath.Join(parent, DefaultDirName), []byte("blocker"))
	fallback := filepath.Join(t.TempDir(), "home", DefaultDirName)

	m := NewManager(DefaultDirName, fallback)
	dir, err := m.Dir(parent)
	require.NoError(t, err)
	assert.Equal(t, fallback, dir)
	assert.True(t, m.Fallback(dir))

	info, err := os.Stat(fallback)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestManagerFallbackUnavailable(t *testing.T) {
	parent := t.TempDir()
	writeFile(t, filepath.Join(parent, DefaultDirName), []byte("blocker"))
	fallback := filepath.Join(t.TempDir(), "fallback")
	writeFile(t, fallback, []byte("also a blocker"))

	m := NewManager(DefaultDirName, fallback)
	dir, err := m.Dir(parent)
	assert.Empty(t, dir)
	require.ErrorIs(t, err, fault.ErrBackupDirUnavailable)
	assert.Contains(t, err.Error(), fallback)

	// Failures are not cached.
	require.NoError(t, os.Remove(filepath.Join(parent, DefaultDirName)))
	dir, err = m.Dir(parent)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, DefaultDirName), dir)
}

func TestNextAvailableName(t *testing.T) {
	dir := t.TempDir()

	name, err := NextAvailableName(dir, "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)

	writeFile(t, filepath.Join(dir, "photo.jpg"), []byte("a"))
	name, err = NextAvailableName(dir, "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo_1.jpg", name)

	writeFile(t, filepath.Join(dir, "photo_1.jpg"), []byte("b"))
	writeFile(t, filepath.Join(dir, "photo_2.jpg"), []byte("c"))
	name, err = NextAvailableName(dir, "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo_3.jpg", name)
}

func TestNextAvailableNameWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README"), []byte("a"))

	name, err := NextAvailableName(dir, "README")
	require.NoError(t, err)
	assert.Equal(t, "README_1", name)
}

func TestCopyNeverOverwrites(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.jpg")
	dir := t.TempDir()

	writeFile(t, src, []byte("first version"))
	first, size, err := Copy(src, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo.jpg"), first)
	assert.Equal(t, int64(len("first version")), size)

	writeFile(t, src, []byte("second version!"))
	second, _, err := Copy(src, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo_1.jpg"), second)

	got, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first version", string(got))

	got, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "second version!", string(got))
}

func TestCopyMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Copy(filepath.Join(dir, "gone.png"), dir)
	assert.ErrorIs(t, err, fault.ErrBackupFailed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnsureWritableDirRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	writeFile(t, path, []byte("x"))
	assert.Error(t, EnsureWritableDir(path))
}
