// Package track drives a submitted job to a terminal state by polling the
// remote engine and reconciling its partially consistent signals.
//
// The engine exposes two views of a job: the shared queue (pending and
// running entries) and the per-job history (explicit status plus recorded
// outputs). Neither alone is reliable: the queue reading can lag or flake
// for a poll or two, and the history may show outputs before the status
// flag flips. The tracker therefore treats the presence of the designated
// terminal node's output as the authoritative completion signal, lets
// recorded outputs override a stale "still queued" reading, and requires
// several consecutive missing-from-queue polls before concluding the job
// actually left the queue.
//
// Progress reporting is advisory only and flows through an explicit
// callback parameter; the tracker keeps no global state.
package track
