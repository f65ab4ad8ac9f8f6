package blobcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_PutGetRoundTrip(t *testing.T) {
	t.Parallel()

	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Put("video_00001.mp4", []byte("mp4-bytes")))

	got, ok := d.Get("video_00001.mp4")
	require.True(t, ok)
	assert.Equal(t, "mp4-bytes", string(got))
}

func TestDir_StoresDataURLs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d, err := NewDir(dir)
	require.NoError(t, err)
	require.NoError(t, d.Put("a.png", []byte{1, 2, 3}))

	raw, err := os.ReadFile(filepath.Join(dir, "a.png.b64"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "data:image/png;base64,"))
}

func TestDir_UnknownExtensionDefaultsOctetStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d, err := NewDir(dir)
	require.NoError(t, err)
	require.NoError(t, d.Put("blob.weird", []byte("x")))

	raw, err := os.ReadFile(filepath.Join(dir, "blob.weird.b64"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "data:application/octet-stream;base64,"))
}

func TestDir_GetMisses(t *testing.T) {
	t.Parallel()

	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	_, ok := d.Get("absent.png")
	assert.False(t, ok)
}

func TestDir_GetRejectsCorruptEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d, err := NewDir(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png.b64"), []byte("not a data url"), 0o644))

	_, ok := d.Get("bad.png")
	assert.False(t, ok)
}

func TestDir_KeyIsBasenamed(t *testing.T) {
	t.Parallel()

	// Path-ish keys must not escape the cache directory.
	dir := t.TempDir()
	d, err := NewDir(dir)
	require.NoError(t, err)
	require.NoError(t, d.Put("../escape.png", []byte("x")))

	_, err = os.Stat(filepath.Join(dir, "escape.png.b64"))
	assert.NoError(t, err)
}
