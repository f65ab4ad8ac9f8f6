package comfy

import "fmt"

// SubmissionError reports an exhausted submit retry budget.
type SubmissionError struct {
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// DownloadError reports that both the session transport and the direct
// fallback transport failed for one artifact. Both causes are preserved.
type DownloadError struct {
	Filename string
	Primary  error
	Fallback error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: primary transport: %v; fallback transport: %v",
		e.Filename, e.Primary, e.Fallback)
}
