package track

import (
	"fmt"
	"time"
)

// State is the tracker's view of a job. Complete, Errored and TimedOut
// are terminal.
type State int

const (
	StateQueued State = iota
	StateRunning
	StateComplete
	StateErrored
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	case StateErrored:
		return "errored"
	case StateTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the state ends the poll loop.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateErrored || s == StateTimedOut
}

// Status is one observation delivered to the caller's callback.
type Status struct {
	State State
	// Progress is an advisory estimate in [0,100]. It reaches 100 only
	// together with StateComplete.
	Progress int
	// Detail is a short human-readable description of the current stage.
	Detail string
}

// StatusFunc receives tracker observations. It is called from the polling
// goroutine; implementations should return quickly.
type StatusFunc func(Status)

// RemoteExecutionError is an engine-reported node failure.
type RemoteExecutionError struct {
	NodeID    string
	NodeType  string
	Exception string
}

func (e *RemoteExecutionError) Error() string {
	if e.NodeID == "" && e.NodeType == "" && e.Exception == "" {
		return "workflow execution failed"
	}
	return fmt.Sprintf("error in node %s (%s): %s", e.NodeID, e.NodeType, e.Exception)
}

// TimeoutError reports that the wall-clock budget elapsed with the job in
// a non-terminal state. It is distinct from RemoteExecutionError: the job
// may still be running remotely.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job did not reach a terminal state within %s", e.Budget)
}
