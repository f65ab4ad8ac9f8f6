package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an output artifact.
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// Artifact is one named output file a job produced, as recorded by the
// engine. Format and FrameRate are populated for video artifacts only.
type Artifact struct {
	NodeID    string
	Kind      Kind
	Filename  string
	Subfolder string
	Format    string
	FrameRate float64
}

// NodeError is the deepest failure detail the engine reported for an
// errored job. Any field may be empty when the engine withheld it.
type NodeError struct {
	NodeID    string
	NodeType  string
	Exception string
}

// JobStatus is one observation of a job's remote state, already lifted
// out of the engine's loosely shaped history payload.
type JobStatus struct {
	// Completed is the engine's explicit completion flag.
	Completed bool
	// Errored is set when the engine explicitly reported failure.
	Errored bool
	// Error carries per-node failure detail when available.
	Error *NodeError
	// Outputs maps node id to the artifacts recorded for it.
	Outputs map[string][]Artifact
	// Executing lists node ids the engine reports as currently running,
	// when the payload carries that signal at all.
	Executing []string
}

// HasOutput reports whether any artifact has been recorded for nodeID.
func (s *JobStatus) HasOutput(nodeID string) bool {
	return len(s.Outputs[nodeID]) > 0
}

// OutputNodes returns the ids of nodes with recorded outputs, sorted.
func (s *JobStatus) OutputNodes() []string {
	ids := make([]string, 0, len(s.Outputs))
	for id := range s.Outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// historyEntry is the wire shape of one job's history record.
type historyEntry struct {
	Status *struct {
		StatusStr string            `json:"status_str"`
		Completed bool              `json:"completed"`
		Messages  []json.RawMessage `json:"messages"`
	} `json:"status"`
	Outputs   map[string]map[string][]artifactRecord `json:"outputs"`
	Executing []string                               `json:"executing"`
}

// artifactRecord is the wire shape of one recorded output file.
type artifactRecord struct {
	Filename  string  `json:"filename"`
	Subfolder string  `json:"subfolder"`
	Type      string  `json:"type"`
	Format    string  `json:"format"`
	FrameRate float64 `json:"frame_rate"`
}

// Status fetches and interprets the job's history record. The payload may
// nest the record under the job id or carry it flat; both are accepted.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/history/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history query returned %d", resp.StatusCode)
	}

	raw, err := decodeHistory(resp.Body, jobID)
	if err != nil {
		return nil, err
	}
	return liftStatus(raw), nil
}

// decodeHistory unwraps the job's entry from either payload nesting.
func decodeHistory(r io.Reader, jobID string) (*historyEntry, error) {
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding history response: %w", err)
	}

	data, ok := envelope[jobID]
	if !ok {
		// Flat payload: re-assemble the envelope as the entry itself.
		flat, err := json.Marshal(envelope)
		if err != nil {
			return nil, err
		}
		data = flat
	}

	var entry historyEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding history entry: %w", err)
	}
	return &entry, nil
}

// liftStatus converts the loosely shaped wire record into a JobStatus as
// early as possible, classifying artifacts and extracting error detail.
func liftStatus(entry *historyEntry) *JobStatus {
	st := &JobStatus{
		Outputs:   map[string][]Artifact{},
		Executing: entry.Executing,
	}

	if entry.Status != nil {
		st.Completed = entry.Status.Completed
		if entry.Status.StatusStr == "error" {
			st.Errored = true
			st.Error = deepestErrorDetail(entry.Status.Messages)
		}
	}

	for nodeID, byField := range entry.Outputs {
		// History keys beginning with '$' are engine-internal bookkeeping.
		if strings.HasPrefix(nodeID, "$") {
			continue
		}
		for field, records := range byField {
			for _, rec := range records {
				if rec.Filename == "" {
					continue
				}
				st.Outputs[nodeID] = append(st.Outputs[nodeID], Artifact{
					NodeID:    nodeID,
					Kind:      classify(field, rec.Format),
					Filename:  rec.Filename,
					Subfolder: rec.Subfolder,
					Format:    rec.Format,
					FrameRate: rec.FrameRate,
				})
			}
		}
	}
	return st
}

// classify decides an artifact's kind from the output field it was
// recorded under and its container format. Video combiners record their
// files under "gifs" for historical reasons.
func classify(field, format string) Kind {
	switch {
	case strings.HasPrefix(format, "video/"), field == "videos", field == "gifs":
		return KindVideo
	case field == "images", strings.HasPrefix(format, "image/"):
		return KindImage
	default:
		return KindOther
	}
}

// deepestErrorDetail scans status messages for the most specific
// execution_error payload. A nil return means the engine gave no detail.
func deepestErrorDetail(messages []json.RawMessage) *NodeError {
	var detail *NodeError
	for _, msg := range messages {
		var pair []json.RawMessage
		if err := json.Unmarshal(msg, &pair); err != nil || len(pair) < 2 {
			continue
		}
		var name string
		if json.Unmarshal(pair[0], &name) != nil || name != "execution_error" {
			continue
		}
		var payload struct {
			NodeID    string `json:"node_id"`
			NodeType  string `json:"node_type"`
			Exception string `json:"exception_message"`
		}
		if json.Unmarshal(pair[1], &payload) != nil {
			continue
		}
		detail = &NodeError{
			NodeID:    payload.NodeID,
			NodeType:  payload.NodeType,
			Exception: payload.Exception,
		}
	}
	return detail
}
