package host

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func TestOpenDocumentMissing(t *testing.T) {
	_, err := OpenDocument(filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}

func TestDocumentDirtyTitle(t *testing.T) {
	doc, err := OpenDocument(writeDoc(t, "a"))
	require.NoError(t, err)

	assert.Equal(t, "doc.md", doc.Title())
	assert.False(t, doc.Apply("a"))
	assert.True(t, doc.Apply("b"))
	assert.True(t, doc.Dirty())
	assert.Equal(t, "[edit]doc.md", doc.Title())

	assert.True(t, doc.Apply("a"))
	assert.False(t, doc.Dirty())
}

func TestDocumentSaveKeepsMode(t *testing.T) {
	path := writeDoc(t, "a")
	doc, err := OpenDocument(path)
	require.NoError(t, err)

	doc.Apply("b")
	require.NoError(t, doc.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestDocumentReload(t *testing.T) {
	path := writeDoc(t, "a")
	doc, err := OpenDocument(path)
	require.NoError(t, err)

	changed, err := doc.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("disk"), 0o640))
	changed, err = doc.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "disk", doc.Content())
	assert.False(t, doc.Dirty())
}

func TestDocumentReloadKeepsUnsavedEdits(t *testing.T) {
	path := writeDoc(t, "a")
	doc, err := OpenDocument(path)
	require.NoError(t, err)
	doc.Apply("mine")

	require.NoError(t, os.WriteFile(path, []byte("theirs"), 0o640))
	changed, err := doc.Reload()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "mine", doc.Content())
	assert.True(t, doc.Dirty())
}
