// Package blobcache is a small filename-keyed blob store used to keep
// base64 copies of downloaded artifacts for offline fallback.
package blobcache

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Store is the key/value contract the downloader consumes.
type Store interface {
	// Get returns the cached blob for key, if present.
	Get(key string) ([]byte, bool)
	// Put stores a blob under key, replacing any previous value.
	Put(key string, data []byte) error
}

// Dir stores each blob as a <key>.b64 file holding a data URL, which
// keeps the cache directly usable by web tooling.
type Dir struct {
	path string
}

// NewDir returns a Dir rooted at path, creating it if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("blobcache: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) file(key string) string {
	return filepath.Join(d.path, filepath.Base(key)+".b64")
}

// Get decodes the cached data URL for key.
func (d *Dir) Get(key string) ([]byte, bool) {
	raw, err := os.ReadFile(d.file(key))
	if err != nil {
		return nil, false
	}
	s := string(raw)
	_, encoded, ok := strings.Cut(s, ";base64,")
	if !ok {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put writes data as a data URL, inferring the media type from the key's
// extension.
func (d *Dir) Put(key string, data []byte) error {
	mediaType := mime.TypeByExtension(filepath.Ext(key))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	payload := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
	if err := os.WriteFile(d.file(key), []byte(payload), 0o644); err != nil {
		return fmt.Errorf("blobcache: %w", err)
	}
	return nil
}
