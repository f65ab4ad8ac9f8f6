package track

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/comfyrun/internal/comfy"
	"github.com/vk/comfyrun/internal/ctxlog"
)

// Backend is the slice of the engine client the tracker polls. Both calls
// are idempotent and side-effect-free.
type Backend interface {
	Queue(ctx context.Context, jobID string) (comfy.QueueSnapshot, error)
	Status(ctx context.Context, jobID string) (*comfy.JobStatus, error)
}

// Defaults for Config fields left zero.
const (
	DefaultBudget         = 2 * time.Hour
	DefaultInitialPoll    = 5 * time.Second
	DefaultMaxPoll        = 8 * time.Second
	DefaultPollGrowth     = 1.05
	DefaultQueueExitPolls = 5
)

// Config tunes one tracker instance.
type Config struct {
	// TerminalNode is the node whose recorded output is the authoritative
	// completion signal.
	TerminalNode string

	// Budget is the wall-clock limit for the whole wait; expiry yields
	// StateTimedOut. Checked once per poll.
	Budget time.Duration

	// InitialPoll, MaxPoll and PollGrowth shape the adaptive cadence: the
	// interval starts short and grows geometrically up to the cap.
	InitialPoll time.Duration
	MaxPoll     time.Duration
	PollGrowth  float64

	// QueueExitPolls is how many consecutive polls may miss the job in
	// the queue, with no executing-node evidence, before the tracker
	// concludes it actually left.
	QueueExitPolls int

	// Progress tunes the advisory estimator.
	Progress Estimator

	// Descriptions maps node ids to human-readable stage names used in
	// status details.
	Descriptions map[string]string
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.InitialPoll <= 0 {
		c.InitialPoll = DefaultInitialPoll
	}
	if c.MaxPoll <= 0 {
		c.MaxPoll = DefaultMaxPoll
	}
	if c.PollGrowth <= 1 {
		c.PollGrowth = DefaultPollGrowth
	}
	if c.QueueExitPolls <= 0 {
		c.QueueExitPolls = DefaultQueueExitPolls
	}
	return c
}

// Tracker polls one job to a terminal state.
type Tracker struct {
	backend Backend
	cfg     Config

	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a Tracker. Zero Config fields get conservative defaults.
func New(backend Backend, cfg Config) *Tracker {
	return &Tracker{
		backend: backend,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Wait polls until the job reaches a terminal state or the budget
// elapses. On StateComplete it returns the final status with the recorded
// outputs; StateErrored yields a RemoteExecutionError and StateTimedOut a
// TimeoutError. onStatus, when non-nil, receives one observation per poll.
func (t *Tracker) Wait(ctx context.Context, jobID string, onStatus StatusFunc) (*comfy.JobStatus, error) {
	logger := ctxlog.FromContext(ctx).With("jobID", jobID)

	emit := func(s Status) {
		if onStatus != nil {
			onStatus(s)
		}
	}

	start := t.now()
	interval := t.cfg.InitialPoll
	state := StateQueued
	best := 0
	notInQueue := 0
	queueExited := false
	lastExecuting := ""

	for {
		elapsed := t.now().Sub(start)
		if elapsed > t.cfg.Budget {
			logger.Error("Job timed out.", "budget", t.cfg.Budget)
			emit(Status{State: StateTimedOut, Progress: best, Detail: "timed out"})
			return nil, &TimeoutError{Budget: t.cfg.Budget}
		}

		st, err := t.backend.Status(ctx, jobID)
		if err != nil {
			// A flaky history read costs one poll; the budget bounds how
			// long flakiness can be tolerated.
			logger.Warn("Status poll failed.", "error", err)
			st = nil
		}

		if st != nil {
			if st.Errored {
				rerr := &RemoteExecutionError{}
				if st.Error != nil {
					rerr.NodeID = st.Error.NodeID
					rerr.NodeType = st.Error.NodeType
					rerr.Exception = st.Error.Exception
				}
				logger.Error("Job failed remotely.", "error", rerr)
				emit(Status{State: StateErrored, Progress: best, Detail: rerr.Error()})
				return nil, rerr
			}

			if st.HasOutput(t.cfg.TerminalNode) || st.Completed {
				logger.Info("Job complete.")
				emit(Status{State: StateComplete, Progress: 100, Detail: "complete"})
				return st, nil
			}

			if len(st.Executing) > 0 {
				lastExecuting = st.Executing[len(st.Executing)-1]
			}
		}

		// Reconcile the queue reading. Recorded outputs are harder
		// evidence than the queue, so they flip the state to running even
		// when the queue still claims the job is pending.
		detail := ""
		if !queueExited {
			snap, qerr := t.backend.Queue(ctx, jobID)
			switch {
			case qerr != nil:
				logger.Warn("Queue poll failed.", "error", qerr)
			case snap.Running:
				notInQueue = 0
				state = StateRunning
			case snap.InQueue:
				notInQueue = 0
				state = StateQueued
				detail = fmt.Sprintf("queued at position %d of %d", snap.Position, snap.Pending)
			default:
				if st != nil && len(st.Executing) > 0 {
					// Executing-node evidence contradicts the queue miss.
					notInQueue = 0
				} else {
					notInQueue++
				}
				if notInQueue >= t.cfg.QueueExitPolls {
					logger.Debug("Job left the queue.", "consecutiveMisses", notInQueue)
					queueExited = true
					state = StateRunning
				}
			}
		}
		if st != nil && len(st.Outputs) > 0 {
			state = StateRunning
		}

		if state == StateQueued {
			emit(Status{State: state, Progress: 0, Detail: detail})
		} else {
			var done []string
			if st != nil {
				done = st.OutputNodes()
			}
			best = t.cfg.Progress.Estimate(done, lastExecuting, elapsed, best)
			if detail == "" {
				detail = t.describe(lastExecuting, done)
			}
			emit(Status{State: state, Progress: best, Detail: detail})
		}

		t.sleep(interval)
		interval = time.Duration(float64(interval) * t.cfg.PollGrowth)
		if interval > t.cfg.MaxPoll {
			interval = t.cfg.MaxPoll
		}
	}
}

// describe names the stage the job appears to be in.
func (t *Tracker) describe(executing string, done []string) string {
	if d, ok := t.cfg.Descriptions[executing]; ok {
		return d
	}
	for i := len(done) - 1; i >= 0; i-- {
		if d, ok := t.cfg.Descriptions[done[i]]; ok {
			return "finished " + d
		}
	}
	return "processing"
}
