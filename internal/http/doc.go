// Package http provides the shared HTTP client for tile fetches.
//
// This package handles:
//   - Connection pooling sized for high worker parallelism
//   - Transport-level retry for connection errors and 429/5xx responses,
//     honoring Retry-After, with exponential backoff and jitter
//   - Fixed request headers (mobile browser user agent, protobuf Accept,
//     referer) expected by the tile server
//
// # Usage
//
//	client := http.NewClient(Options{
//	    PoolSize:   64,
//	    MaxRetries: 3,
//	})
//
//	resp, err := client.Get(ctx, url)
//	defer resp.Body.Close()
//
// A non-2xx status that survives the retry budget is returned as a
// *StatusError so the caller can format it into a failure reason.
// Deciding whether a 200 body is actually a tile is the fetcher's job,
// not this package's.
package http
