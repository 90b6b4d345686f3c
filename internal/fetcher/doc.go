// Package fetcher implements the per-tile download state machine and the
// worker pool that drives it over a coordinate space.
//
// # Per-tile flow
//
// Fetch runs one tile to a terminal outcome:
//
//	present on disk        → Skipped (no network call)
//	request/status failure → Failed, reason "request_error:..." or "status:<code>"
//	empty 200 body         → Empty (benign, not logged)
//	HTML/JSON body on 200  → retried with backoff, then Failed "html_or_json:<ct>"
//	clean body             → streamed to a temp file, atomically published, Saved
//
// Only the poisoned-payload case is retried here: the upstream sometimes
// "succeeds" with an error page under load, and a short backoff usually
// clears it. Transient network and 5xx conditions are already absorbed
// one layer down by the HTTP client's transport retries. Keep the two
// retry layers separate; they react to different failure classes.
//
// # Dispatch
//
// Run pulls coordinates lazily from a tiles.Space, fans them out to a
// fixed pool of workers, and aggregates outcomes in completion order.
package fetcher
