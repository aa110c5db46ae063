package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadStore_SanitizesFilenames(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), true, 0)
	require.NoError(t, err)

	tests := map[string]string{
		"report.pdf":           "uploaded_report.pdf",
		"../../etc/passwd":     "uploaded_passwd",
		"/abs/path/notes.txt":  "uploaded_notes.txt",
		`..\..\windows\x.txt`: "uploaded_x.txt",
	}
	for in, want := range tests {
		path, err := store.sanitizeFilename(in)
		require.NoError(t, err, in)
		assert.Equal(t, filepath.Join(store.Dir, want), path, in)
	}

	for _, bad := range []string{"", "/", ".."} {
		_, err := store.sanitizeFilename(bad)
		assert.Equal(t, CodeInvalidRequest, CodeOf(err), "input %q", bad)
	}
}

func TestUploadStore_SaveOverwritesAndCleansUp(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), false, 0)
	require.NoError(t, err)

	first, err := store.Save("doc.txt", []byte("one"))
	require.NoError(t, err)
	second, err := store.Save("doc.txt", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	store.Cleanup(second)
	_, err = os.Stat(second)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadStore_RetainKeepsFiles(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), true, 0)
	require.NoError(t, err)

	path, err := store.Save("doc.txt", []byte("keep me"))
	require.NoError(t, err)
	store.Cleanup(path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestUploadStore_RejectsOversizedContent(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), false, 8)
	require.NoError(t, err)

	_, err = store.Save("big.txt", []byte(strings.Repeat("x", 9)))
	assert.Equal(t, CodeUploadTooLarge, CodeOf(err))
}

func TestExtractTextFromFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, content []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, content, 0o644))
		return p
	}

	text, err := ExtractTextFromFile(write("a.txt", []byte("\ufeffHéllo wörld")))
	require.NoError(t, err)
	assert.Equal(t, "Héllo wörld", text)

	_, err = ExtractTextFromFile(write("b.txt", []byte{0xff, 0xfe, 0x00, 'a'}))
	assert.Equal(t, CodeUnsupportedFile, CodeOf(err))

	_, err = ExtractTextFromFile(write("c.pdf", []byte("not a pdf")))
	assert.Equal(t, CodeUnsupportedFile, CodeOf(err))
}

func TestIsSupportedFile(t *testing.T) {
	assert.True(t, IsSupportedFile("notes.TXT"))
	assert.True(t, IsSupportedFile("/x/readme.md"))
	assert.True(t, IsSupportedFile("paper.pdf"))
	assert.False(t, IsSupportedFile("image.png"))
	assert.False(t, IsSupportedFile("noext"))
}
