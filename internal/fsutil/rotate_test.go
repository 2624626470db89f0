package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestRotate_DeletesOldFilesOnly(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "old.log", 10*24*time.Hour)
	fresh := writeAged(t, dir, "fresh.log", time.Hour)

	n, err := Rotate(dir, "*.log", 7*24*time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestRotate_ArchiveGzipsInsteadOfDeleting(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "old.log", 10*24*time.Hour)

	n, err := Rotate(dir, "*.log", 7*24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, old)
	assert.FileExists(t, old+".gz")

	// A second pass leaves the archive alone.
	n, err = Rotate(dir, "*", 7*24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRotate_MissingDirectoryIsNotAnError(t *testing.T) {
	n, err := Rotate(filepath.Join(t.TempDir(), "nope"), "*", time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
