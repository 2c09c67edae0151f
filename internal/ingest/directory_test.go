package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), []byte("image-a"))
	writeFile(t, filepath.Join(dir, "b.PNG"), []byte("image-b"))
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("not a receipt"))
	writeFile(t, filepath.Join(dir, "sub", "c.pdf"), []byte("doc-c"))

	s := NewScanner(nil)

	got, stats, err := s.ScanDirectory(dir, true)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 4, stats.Scanned)
	assert.Equal(t, 3, stats.Matched)
	assert.Zero(t, stats.Deduplicated)

	exts := map[string]bool{}
	for _, c := range got {
		exts[c.Ext] = true
		assert.Len(t, c.ContentHash, 64)
		assert.Positive(t, c.Size)
	}
	assert.True(t, exts["jpg"] && exts["png"] && exts["pdf"])
}

func TestScanDirectory_NonRecursiveSkipsSubdirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), []byte("image-a"))
	writeFile(t, filepath.Join(dir, "sub", "c.pdf"), []byte("doc-c"))

	got, _, err := NewScanner(nil).ScanDirectory(dir, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), got[0].Path)
}

func TestScanDirectory_DedupesIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "original.jpg"), []byte("same-bytes"))
	writeFile(t, filepath.Join(dir, "copy.jpg"), []byte("same-bytes"))

	got, stats, err := NewScanner(nil).ScanDirectory(dir, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, stats.Deduplicated)
}

func TestScanDirectory_Missing(t *testing.T) {
	_, _, err := NewScanner(nil).ScanDirectory(filepath.Join(t.TempDir(), "nope"), true)
	assert.Error(t, err)
}
