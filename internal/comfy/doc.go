// Package comfy is the HTTP client for the remote batch execution engine.
//
// It covers the four wire operations the driver needs: submitting a
// compiled workflow for execution, querying the shared queue, reading a
// job's status and recorded outputs, and fetching output artifacts.
// Authentication is a caller-supplied API key sent both as a header and as
// a session cookie; artifact fetches additionally rely on cookies set
// during a warm-up request, with a query-parameter credential as the
// fallback transport.
//
// Submission and artifact download retry transient failures with a small
// bounded budget; everything else is a single idempotent request whose
// failure propagates to the caller.
package comfy
