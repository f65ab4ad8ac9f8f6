package track

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/comfyrun/internal/comfy"
)

// pollStep is one scripted observation pair: what Status and Queue return
// on the same poll.
type pollStep struct {
	status    *comfy.JobStatus
	statusErr error
	queue     comfy.QueueSnapshot
	queueErr  error
}

// scriptedBackend replays a fixed poll script, holding the last step once
// the script runs out.
type scriptedBackend struct {
	steps []pollStep
	polls int
}

func (b *scriptedBackend) current() pollStep {
	i := b.polls
	if i >= len(b.steps) {
		i = len(b.steps) - 1
	}
	return b.steps[i]
}

func (b *scriptedBackend) Status(ctx context.Context, jobID string) (*comfy.JobStatus, error) {
	step := b.current()
	if step.statusErr != nil {
		return nil, step.statusErr
	}
	return step.status, nil
}

func (b *scriptedBackend) Queue(ctx context.Context, jobID string) (comfy.QueueSnapshot, error) {
	step := b.current()
	return step.queue, step.queueErr
}

// newTestTracker wires a tracker to the script with a synthetic clock:
// every sleep advances time by one tick, Status polls count steps.
func newTestTracker(backend *scriptedBackend, cfg Config) (*Tracker, *[]Status) {
	tr := New(backend, cfg)

	clock := time.Unix(0, 0)
	tr.now = func() time.Time { return clock }
	tr.sleep = func(time.Duration) {
		clock = clock.Add(time.Second)
		backend.polls++
	}

	var seen []Status
	return tr, &seen
}

func emptyStatus() *comfy.JobStatus {
	return &comfy.JobStatus{Outputs: map[string][]comfy.Artifact{}}
}

func statusWithOutput(nodeID string) *comfy.JobStatus {
	return &comfy.JobStatus{Outputs: map[string][]comfy.Artifact{
		nodeID: {{NodeID: nodeID, Filename: nodeID + ".png"}},
	}}
}

func TestWait_CompletesOnTerminalOutput(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	backend := &scriptedBackend{steps: []pollStep{
		{status: emptyStatus(), queue: comfy.QueueSnapshot{InQueue: true, Position: 2, Pending: 3}},
		{status: emptyStatus(), queue: comfy.QueueSnapshot{InQueue: true, Running: true}},
		{status: statusWithOutput("12"), queue: comfy.QueueSnapshot{InQueue: true, Running: true}},
		{status: statusWithOutput("30")},
	}}
	tr, seen := newTestTracker(backend, Config{TerminalNode: "30"})

	// --- Act ---
	st, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })

	// --- Assert ---
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.HasOutput("30"))

	require.Len(t, *seen, 4)
	assert.Equal(t, StateQueued, (*seen)[0].State)
	assert.Contains(t, (*seen)[0].Detail, "position 2 of 3")
	assert.Equal(t, StateRunning, (*seen)[1].State)
	assert.Equal(t, StateRunning, (*seen)[2].State,
		"an intermediate output does not complete the job")
	assert.Less(t, (*seen)[2].Progress, 100)

	final := (*seen)[3]
	assert.Equal(t, StateComplete, final.State)
	assert.Equal(t, 100, final.Progress)
}

func TestWait_IntermediateOutputIsNotCompletion(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Node 12 produces output well before terminal node 30. The tracker
	// must keep polling until 30 reports.
	withBoth := &comfy.JobStatus{Outputs: map[string][]comfy.Artifact{
		"12": {{NodeID: "12", Filename: "preview.png"}},
		"30": {{NodeID: "30", Filename: "final.mp4"}},
	}}
	backend := &scriptedBackend{steps: []pollStep{
		{status: statusWithOutput("12"), queue: comfy.QueueSnapshot{InQueue: true, Running: true}},
		{status: statusWithOutput("12"), queue: comfy.QueueSnapshot{InQueue: true, Running: true}},
		{status: withBoth},
	}}
	tr, seen := newTestTracker(backend, Config{TerminalNode: "30"})

	// --- Act ---
	_, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, *seen, 3)
	for _, s := range (*seen)[:2] {
		assert.Equal(t, StateRunning, s.State)
	}
	assert.Equal(t, StateComplete, (*seen)[2].State)
}

func TestWait_CompletedFlagWithoutTerminalNode(t *testing.T) {
	t.Parallel()

	// With no terminal node configured, the engine's completed flag is the
	// only completion signal.
	done := emptyStatus()
	done.Completed = true
	backend := &scriptedBackend{steps: []pollStep{
		{status: emptyStatus(), queue: comfy.QueueSnapshot{InQueue: true, Running: true}},
		{status: done},
	}}
	tr, _ := newTestTracker(backend, Config{})

	st, err := tr.Wait(context.Background(), "job-1", nil)
	require.NoError(t, err)
	assert.True(t, st.Completed)
}

func TestWait_QueueExitNeedsConsecutiveMisses(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The job vanishes from the queue but never shows outputs or an
	// executing node. Only after five consecutive misses does the tracker
	// conclude it is running.
	steps := []pollStep{
		{status: emptyStatus(), queue: comfy.QueueSnapshot{InQueue: true, Position: 1, Pending: 1}},
	}
	for i := 0; i < 6; i++ {
		steps = append(steps, pollStep{status: emptyStatus()})
	}
	steps = append(steps, pollStep{status: statusWithOutput("30")})
	backend := &scriptedBackend{steps: steps}
	tr, seen := newTestTracker(backend, Config{TerminalNode: "30"})

	// --- Act ---
	_, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })

	// --- Assert ---
	require.NoError(t, err)
	// Poll 0: queued. Polls 1-4: four misses, still queued. Poll 5: fifth
	// miss flips to running.
	for i := 0; i <= 4; i++ {
		assert.Equal(t, StateQueued, (*seen)[i].State, "poll %d", i)
	}
	assert.Equal(t, StateRunning, (*seen)[5].State)
}

func TestWait_ExecutingEvidenceResetsQueueMisses(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	executing := emptyStatus()
	executing.Executing = []string{"15"}
	steps := []pollStep{}
	// Nine queue misses, each with executing-node evidence contradicting
	// the miss: the exit counter must never trip.
	for i := 0; i < 9; i++ {
		steps = append(steps, pollStep{status: executing})
	}
	steps = append(steps, pollStep{status: statusWithOutput("30")})
	backend := &scriptedBackend{steps: steps}
	tr, seen := newTestTracker(backend, Config{TerminalNode: "30"})

	// --- Act ---
	_, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })

	// --- Assert ---
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		assert.Equal(t, StateQueued, (*seen)[i].State, "poll %d", i)
	}
}

func TestWait_RemoteError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	failed := emptyStatus()
	failed.Errored = true
	failed.Error = &comfy.NodeError{NodeID: "7", NodeType: "VAEDecode", Exception: "CUDA out of memory"}
	backend := &scriptedBackend{steps: []pollStep{
		{status: emptyStatus(), queue: comfy.QueueSnapshot{InQueue: true, Running: true}},
		{status: failed},
	}}
	tr, seen := newTestTracker(backend, Config{TerminalNode: "30"})

	// --- Act ---
	_, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })

	// --- Assert ---
	require.Error(t, err)
	var rerr *RemoteExecutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "7", rerr.NodeID)
	assert.Contains(t, rerr.Error(), "CUDA out of memory")

	final := (*seen)[len(*seen)-1]
	assert.Equal(t, StateErrored, final.State)
}

func TestWait_Timeout(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Each synthetic sleep advances one second; a two second budget
	// therefore expires on the third poll.
	backend := &scriptedBackend{steps: []pollStep{
		{status: emptyStatus(), queue: comfy.QueueSnapshot{InQueue: true, Position: 1, Pending: 1}},
	}}
	tr, seen := newTestTracker(backend, Config{TerminalNode: "30", Budget: 2 * time.Second})

	// --- Act ---
	_, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })

	// --- Assert ---
	require.Error(t, err)
	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 2*time.Second, terr.Budget)

	final := (*seen)[len(*seen)-1]
	assert.Equal(t, StateTimedOut, final.State)
}

func TestWait_FlakyStatusPollCostsOnePoll(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{steps: []pollStep{
		{statusErr: errors.New("connection reset"), queue: comfy.QueueSnapshot{InQueue: true, Position: 1, Pending: 1}},
		{status: statusWithOutput("30")},
	}}
	tr, seen := newTestTracker(backend, Config{TerminalNode: "30"})

	_, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })
	require.NoError(t, err)
	require.Len(t, *seen, 2)
	assert.Equal(t, StateQueued, (*seen)[0].State)
	assert.Equal(t, StateComplete, (*seen)[1].State)
}

func TestWait_PollIntervalGrowsToCap(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	backend := &scriptedBackend{steps: []pollStep{
		{status: emptyStatus(), queue: comfy.QueueSnapshot{InQueue: true, Position: 1, Pending: 1}},
	}}
	tr := New(backend, Config{
		TerminalNode: "30",
		InitialPoll:  4 * time.Second,
		MaxPoll:      6 * time.Second,
		PollGrowth:   1.5,
		Budget:       30 * time.Second,
	})
	clock := time.Unix(0, 0)
	var slept []time.Duration
	tr.now = func() time.Time { return clock }
	tr.sleep = func(d time.Duration) {
		slept = append(slept, d)
		clock = clock.Add(10 * time.Second)
		backend.polls++
	}

	// --- Act ---
	_, err := tr.Wait(context.Background(), "job-1", nil)

	// --- Assert ---
	require.Error(t, err, "the script never completes; the budget ends the loop")
	require.GreaterOrEqual(t, len(slept), 3)
	assert.Equal(t, 4*time.Second, slept[0])
	assert.Equal(t, 6*time.Second, slept[1])
	assert.Equal(t, 6*time.Second, slept[2], "the interval saturates at the cap")
}

func TestWait_StageDescriptions(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	executing := emptyStatus()
	executing.Executing = []string{"15"}
	backend := &scriptedBackend{steps: []pollStep{
		{status: executing, queue: comfy.QueueSnapshot{InQueue: true, Running: true}},
		{status: statusWithOutput("30")},
	}}
	tr, seen := newTestTracker(backend, Config{
		TerminalNode: "30",
		Descriptions: map[string]string{"15": "sampling"},
		Progress:     Estimator{Stages: map[string]int{"15": 60}},
	})

	// --- Act ---
	_, err := tr.Wait(context.Background(), "job-1", func(s Status) { *seen = append(*seen, s) })

	// --- Assert ---
	require.NoError(t, err)
	first := (*seen)[0]
	assert.Equal(t, StateRunning, first.State)
	assert.Equal(t, "sampling", first.Detail)
	assert.Equal(t, 60, first.Progress)
}
