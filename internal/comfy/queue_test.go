package comfy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueServer serves a fixed /queue body.
func queueServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/queue" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
}

func TestQueue_ArrayRows(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Queue rows as positional arrays: the job id sits at index 1.
	srv := queueServer(t, `{
		"queue_running": [[0, "job-a", {}, {}, []]],
		"queue_pending": [[1, "job-b", {}, {}, []], [2, "job-c", {}, {}, []]]
	}`)
	defer srv.Close()
	c, _ := newTestClient(t, srv)

	// --- Act / Assert ---
	snap, err := c.Queue(context.Background(), "job-a")
	require.NoError(t, err)
	assert.True(t, snap.Running)
	assert.True(t, snap.InQueue)
	assert.Equal(t, 0, snap.Position)

	snap, err = c.Queue(context.Background(), "job-c")
	require.NoError(t, err)
	assert.False(t, snap.Running)
	assert.True(t, snap.InQueue)
	assert.Equal(t, 2, snap.Position)
	assert.Equal(t, 2, snap.Pending)
}

func TestQueue_ObjectRows(t *testing.T) {
	t.Parallel()

	srv := queueServer(t, `{
		"queue_running": [{"prompt_id": "job-a"}],
		"queue_pending": [{"prompt_id": "job-b"}]
	}`)
	defer srv.Close()
	c, _ := newTestClient(t, srv)

	snap, err := c.Queue(context.Background(), "job-b")
	require.NoError(t, err)
	assert.True(t, snap.InQueue)
	assert.False(t, snap.Running)
	assert.Equal(t, 1, snap.Position)
}

func TestQueue_Absent(t *testing.T) {
	t.Parallel()

	srv := queueServer(t, `{"queue_running": [], "queue_pending": []}`)
	defer srv.Close()
	c, _ := newTestClient(t, srv)

	snap, err := c.Queue(context.Background(), "job-x")
	require.NoError(t, err)
	assert.False(t, snap.InQueue)
	assert.False(t, snap.Running)
}

func TestQueue_MalformedRowIsAnonymous(t *testing.T) {
	t.Parallel()

	// A numeric id slot cannot match any job, but must not break parsing.
	srv := queueServer(t, `{"queue_running": [[0, 123]], "queue_pending": []}`)
	defer srv.Close()
	c, _ := newTestClient(t, srv)

	snap, err := c.Queue(context.Background(), "job-x")
	require.NoError(t, err)
	assert.False(t, snap.InQueue)
}
