package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/comfyrun/internal/ctxlog"
	"github.com/vk/comfyrun/internal/workflow"
)

// submitAttempts is the fixed retry budget for a submission. The delay
// before each retry starts at Config.RetryWait and doubles.
const submitAttempts = 3

// submitPayload is the wire shape of a submission.
type submitPayload struct {
	Prompt   workflow.ExecForm                  `json:"prompt"`
	ClientID string                             `json:"client_id"`
	Extra    map[string]ctyjson.SimpleJSONValue `json:"extra_data,omitempty"`
}

// Submit queues a compiled workflow for execution and returns the
// engine-assigned job id. Transient failures (network errors and 5xx
// responses) are retried with doubling delay up to the attempt budget;
// anything else fails immediately. There is no deduplication: calling
// Submit twice queues two jobs.
func (c *Client) Submit(ctx context.Context, form workflow.ExecForm, extra map[string]ctyjson.SimpleJSONValue) (string, error) {
	logger := ctxlog.FromContext(ctx)
	payload := submitPayload{Prompt: form, ClientID: c.clientID, Extra: extra}

	wait := c.retryWait
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		if attempt > 1 {
			logger.Info("Retrying submission.", "attempt", attempt, "wait", wait)
			c.sleep(wait)
			wait *= 2
		}

		jobID, retryable, err := c.submitOnce(ctx, payload)
		if err == nil {
			logger.Info("Workflow queued.", "jobID", jobID)
			return jobID, nil
		}
		lastErr = err
		if !retryable {
			return "", &SubmissionError{Attempts: attempt, Err: err}
		}
		logger.Warn("Submission attempt failed.", "attempt", attempt, "error", err)
	}

	return "", &SubmissionError{Attempts: submitAttempts, Err: lastErr}
}

// submitOnce performs a single POST /prompt. The second return reports
// whether the failure is worth retrying.
func (c *Client) submitOnce(ctx context.Context, payload submitPayload) (string, bool, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/prompt", payload)
	if err != nil {
		return "", false, err
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
		return "", resp.StatusCode >= 500, err
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false, fmt.Errorf("decoding submit response: %w", err)
	}
	if result.PromptID == "" {
		return "", false, fmt.Errorf("submit response carried no job id")
	}
	return result.PromptID, false, nil
}
