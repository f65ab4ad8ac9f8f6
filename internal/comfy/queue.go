package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// QueueSnapshot is one cheap, side-effect-free reading of the shared
// execution queue as it relates to a single job.
type QueueSnapshot struct {
	// InQueue reports whether the job appears anywhere in the queue.
	InQueue bool
	// Running reports whether the job is the one currently executing.
	Running bool
	// Position is the job's 1-based position among pending entries, or 0
	// when running or absent.
	Position int
	// Pending is the total number of pending entries.
	Pending int
}

// queueEntry tolerates the two shapes queue rows arrive in: a positional
// array with the job id at index 1, or an object with a prompt_id field.
type queueEntry struct {
	id string
}

func (e *queueEntry) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var row []json.RawMessage
		if err := json.Unmarshal(data, &row); err != nil {
			return err
		}
		if len(row) > 1 {
			// Best effort: a non-string id leaves the entry anonymous.
			_ = json.Unmarshal(row[1], &e.id)
		}
		return nil
	}
	var obj struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.id = obj.PromptID
	return nil
}

// Queue reads the engine's queue and reports where, if anywhere, jobID
// sits in it.
func (c *Client) Queue(ctx context.Context, jobID string) (QueueSnapshot, error) {
	var snap QueueSnapshot

	req, err := c.newRequest(ctx, http.MethodGet, "/queue", nil)
	if err != nil {
		return snap, err
	}
	resp, err := c.session.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("queue query returned %d", resp.StatusCode)
	}

	var body struct {
		Running []queueEntry `json:"queue_running"`
		Pending []queueEntry `json:"queue_pending"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return snap, fmt.Errorf("decoding queue response: %w", err)
	}

	snap.Pending = len(body.Pending)
	for _, e := range body.Running {
		if e.id == jobID {
			snap.InQueue = true
			snap.Running = true
			return snap, nil
		}
	}
	for i, e := range body.Pending {
		if e.id == jobID {
			snap.InQueue = true
			snap.Position = i + 1
			return snap, nil
		}
	}
	return snap, nil
}
