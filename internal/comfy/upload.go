package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vk/comfyrun/internal/ctxlog"
)

// Upload sends a local file to the engine's input store and returns the
// name the engine assigned to it, which is what gets injected into
// file-consuming nodes. Audio goes through the same endpoint as images;
// the engine has no separate audio upload.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("upload: reading %s: %w", path, err)
	}
	if err := mw.WriteField("type", "input"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.session.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload: server returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("upload: decoding response: %w", err)
	}
	if result.Name == "" {
		return "", fmt.Errorf("upload: server reported no stored name")
	}

	logger.Info("Uploaded file.", "local", path, "stored", result.Name)
	return result.Name, nil
}
