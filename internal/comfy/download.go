package comfy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vk/comfyrun/internal/ctxlog"
)

// Download fetches an artifact into destDir (created if absent) and
// returns the written path. The fetch is two-phase: a warm-up request
// first, because artifact authorization hangs off cookies the server sets
// on first contact, then the real streamed GET through the session
// transport. When the session transport fails, one fallback is attempted
// on the direct transport with the credential embedded as a query
// parameter. Both failures are reported together via DownloadError.
func (c *Client) Download(ctx context.Context, a Artifact, destDir string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	target := c.viewURL(a)

	c.warmUp(ctx, target, a.Kind)

	primaryErr := c.fetchTo(ctx, c.session, target, a, destDir)
	if primaryErr == nil {
		path := filepath.Join(destDir, a.Filename)
		logger.Info("Downloaded artifact.", "file", path)
		return path, nil
	}
	logger.Warn("Primary download transport failed, trying direct transport.",
		"file", a.Filename, "error", primaryErr)

	fallbackErr := c.fetchTo(ctx, c.direct, target+"&"+apiKeyParam+"="+c.apiKey, a, destDir)
	if fallbackErr == nil {
		path := filepath.Join(destDir, a.Filename)
		logger.Info("Downloaded artifact via direct transport.", "file", path)
		return path, nil
	}

	return "", &DownloadError{Filename: a.Filename, Primary: primaryErr, Fallback: fallbackErr}
}

// warmUp issues a HEAD against the artifact URL to let the server set its
// session cookies. Failures are deliberately ignored; the real fetch will
// surface them.
func (c *Client) warmUp(ctx context.Context, target string, kind Kind) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if kind == KindVideo {
		req.Header.Set("Accept", "video/mp4,video/webm,video/*;q=0.8,*/*;q=0.5")
	}
	resp, err := c.session.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// fetchTo streams target into destDir/filename via the given transport.
func (c *Client) fetchTo(ctx context.Context, client *http.Client, target string, a Artifact, destDir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(destDir, a.Filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
