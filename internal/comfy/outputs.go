package comfy

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ListOutputs returns every artifact the job has recorded so far, ordered
// by node id. It is side-effect-free and safe to call repeatedly,
// including before the job finishes.
func (c *Client) ListOutputs(ctx context.Context, jobID string) ([]Artifact, error) {
	st, err := c.Status(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing outputs: %w", err)
	}

	var out []Artifact
	for _, nodeID := range st.OutputNodes() {
		out = append(out, st.Outputs[nodeID]...)
	}
	return out, nil
}

// viewURL builds the authenticated retrieval URL for an artifact. Videos
// go through the dedicated streaming endpoint, which needs the container
// format and frame rate echoed back; everything else uses the plain view
// endpoint.
func (c *Client) viewURL(a Artifact) string {
	params := url.Values{}
	params.Set("filename", a.Filename)
	params.Set("type", "output")
	if a.Subfolder != "" {
		params.Set("subfolder", a.Subfolder)
	}

	if a.Kind == KindVideo {
		format := a.Format
		if format == "" {
			format = "video/h264-mp4"
		}
		rate := a.FrameRate
		if rate == 0 {
			rate = 24
		}
		params.Set("format", format)
		params.Set("frame_rate", strconv.FormatFloat(rate, 'f', -1, 64))
		return c.baseURL + "/api/viewvideo?" + params.Encode()
	}
	return c.baseURL + "/api/view?" + params.Encode()
}
