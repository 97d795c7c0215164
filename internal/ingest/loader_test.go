package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	text, err := FileLoader{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestFileLoader_MissingFile(t *testing.T) {
	_, err := FileLoader{}.Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestFileLoader_BrokenPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	_, err := FileLoader{}.Load(path)
	assert.Error(t, err)
}
