package comfy

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/vk/comfyrun/internal/blobcache"
	"github.com/vk/comfyrun/internal/ctxlog"
)

// Downloader pairs a Client with an optional local blob cache. A
// successful download is mirrored into the cache; when both transports
// fail, a cached copy downgrades the failure to a degraded success.
type Downloader struct {
	Client *Client
	Cache  blobcache.Store
}

// Fetch downloads the artifact into destDir. The cached return flag is
// true when the bytes came from the local cache because the remote fetch
// failed on both transports.
func (d *Downloader) Fetch(ctx context.Context, a Artifact, destDir string) (path string, cached bool, err error) {
	logger := ctxlog.FromContext(ctx)

	path, err = d.Client.Download(ctx, a, destDir)
	if err == nil {
		if d.Cache != nil {
			if data, readErr := os.ReadFile(path); readErr == nil {
				if putErr := d.Cache.Put(a.Filename, data); putErr != nil {
					logger.Warn("Failed to mirror artifact into cache.", "file", a.Filename, "error", putErr)
				}
			}
		}
		return path, false, nil
	}

	var dlErr *DownloadError
	if d.Cache == nil || !errors.As(err, &dlErr) {
		return "", false, err
	}

	data, ok := d.Cache.Get(a.Filename)
	if !ok {
		return "", false, err
	}
	logger.Warn("Both transports failed, serving artifact from local cache.",
		"file", a.Filename, "error", err)

	if mkErr := os.MkdirAll(destDir, 0o755); mkErr != nil {
		return "", false, err
	}
	path = filepath.Join(destDir, a.Filename)
	if writeErr := os.WriteFile(path, data, 0o644); writeErr != nil {
		return "", false, err
	}
	return path, true, nil
}
