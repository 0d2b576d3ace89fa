package misc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.False(t, IsFileExists(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, IsFileExists(path))
}

func TestCleanFilename(t *testing.T) {
	assert.Equal(t, "week-1-intro", CleanFilename("week-1-intro"))
	assert.Equal(t, "lec-1-_intro", CleanFilename("lec:1/ intro"))
	assert.Equal(t, "notes_v2", CleanFilename(" notes v2. "))
	assert.Equal(t, "a-b", CleanFilename("a\\b\n"))
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t,
		"https://host/path/lec1.mp4",
		CleanURL("https://host/path/lec1.mp4?Expires=123&Signature=abc#t=10"))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "mp4", FormatOf("https://host/lec1.mp4?sig=a"))
	assert.Equal(t, "pdf", FormatOf("notes.PDF"))
	assert.Equal(t, "", FormatOf("https://host/no-extension"))
}
