package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/fatimasalmancursor/tilegrab/internal/faillog"
	tilehttp "github.com/fatimasalmancursor/tilegrab/internal/http"
	"github.com/fatimasalmancursor/tilegrab/internal/store"
	"github.com/fatimasalmancursor/tilegrab/internal/tiles"
)

// Status is the terminal outcome of one tile.
type Status int

const (
	StatusSaved Status = iota
	StatusSkipped
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusSkipped:
		return "skipped"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is produced exactly once per coordinate.
type Result struct {
	Coord  tiles.Coord
	Status Status
	Reason string // set when Status is StatusFailed
	Bytes  int64  // bytes written when Status is StatusSaved
}

// sniffLimit bounds the first read used to classify the payload.
const sniffLimit = 64 * 1024

// Options configures per-tile fetch behavior.
type Options struct {
	// BaseURL is the tile server endpoint; "/z/x/y.pbf" is appended.
	BaseURL string

	// ContentRetries is the number of additional attempts made when a
	// 200 response carries an HTML or JSON error page. Other failures
	// get a single pass. Default: 3.
	ContentRetries int

	// ContentBackoff is the base delay before a poisoned-payload retry;
	// the wait grows as base * 2^attempt. Default: 500ms.
	ContentBackoff time.Duration

	// ContentJitter is the upper bound of the random addition to each
	// poisoned-payload backoff. Default: 250ms.
	ContentJitter time.Duration
}

func (o *Options) applyDefaults() {
	if o.ContentRetries <= 0 {
		o.ContentRetries = 3
	}
	if o.ContentBackoff <= 0 {
		o.ContentBackoff = 500 * time.Millisecond
	}
	if o.ContentJitter <= 0 {
		o.ContentJitter = 250 * time.Millisecond
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
}

// Fetcher downloads single tiles to a terminal outcome. Safe for
// concurrent use; all mutable state is per-call.
type Fetcher struct {
	client *tilehttp.Client
	store  *store.Store
	log    *faillog.Log
	opts   Options
}

// New creates a Fetcher. log may be nil, in which case failures are not
// recorded anywhere but the returned Result.
func New(client *tilehttp.Client, st *store.Store, log *faillog.Log, opts Options) *Fetcher {
	opts.applyDefaults()
	return &Fetcher{client: client, store: st, log: log, opts: opts}
}

// URL returns the request URL for a coordinate.
func (f *Fetcher) URL(c tiles.Coord) string {
	return f.opts.BaseURL + "/" + c.Path()
}

// Fetch runs the state machine for one tile.
func (f *Fetcher) Fetch(ctx context.Context, c tiles.Coord) Result {
	// Idempotence: completed work is never re-downloaded.
	if f.store.IsPresent(c) {
		return Result{Coord: c, Status: StatusSkipped}
	}

	var lastReason string

	for attempt := 0; attempt <= f.opts.ContentRetries; attempt++ {
		resp, err := f.client.Get(ctx, f.URL(c))
		if err != nil {
			var se *tilehttp.StatusError
			if errors.As(err, &se) {
				lastReason = se.Error()
			} else {
				lastReason = "request_error:" + err.Error()
			}
			break
		}

		first := make([]byte, sniffLimit)
		n, rerr := io.ReadAtLeast(resp.Body, first, 1)
		if n == 0 {
			resp.Body.Close()
			if rerr == io.EOF {
				// Benign: the server has no data for this tile.
				return Result{Coord: c, Status: StatusEmpty}
			}
			lastReason = "io_or_stream:" + rerr.Error()
			break
		}

		if looksLikeHTMLOrJSON(first[:n]) {
			resp.Body.Close()
			ct := resp.ContentType
			if ct == "" {
				ct = "unknown"
			}
			lastReason = "html_or_json:" + ct
			if attempt < f.opts.ContentRetries {
				if f.contentBackoff(ctx, attempt) != nil {
					break
				}
				continue
			}
			break
		}

		written, perr := f.store.Persist(c, io.MultiReader(bytes.NewReader(first[:n]), resp.Body))
		resp.Body.Close()
		if perr != nil {
			lastReason = "io_or_stream:" + perr.Error()
			break
		}

		// Desynchronize workers a little so saves don't land on the
		// upstream in lockstep.
		f.saveDelay(ctx)
		return Result{Coord: c, Status: StatusSaved, Bytes: written}
	}

	if lastReason == "" {
		lastReason = "unknown"
	}
	if f.log != nil && ctx.Err() == nil {
		if err := f.log.Append(c, lastReason); err != nil {
			lastReason = lastReason + " (faillog: " + err.Error() + ")"
		}
	}
	return Result{Coord: c, Status: StatusFailed, Reason: lastReason}
}

// looksLikeHTMLOrJSON reports whether the payload opens like an HTML
// document or a JSON object: leading whitespace trimmed, first 64 bytes,
// case-insensitive. Tile servers under load return such error pages with
// a 200 status.
func looksLikeHTMLOrJSON(b []byte) bool {
	s := bytes.TrimLeft(b, " \t\r\n")
	if len(s) > 64 {
		s = s[:64]
	}
	s = bytes.ToLower(s)
	return bytes.HasPrefix(s, []byte("<!doctype")) ||
		bytes.HasPrefix(s, []byte("<html")) ||
		bytes.HasPrefix(s, []byte("{"))
}

// contentBackoff waits base * 2^attempt plus jitter before the next
// poisoned-payload attempt.
func (f *Fetcher) contentBackoff(ctx context.Context, attempt int) error {
	delay := f.opts.ContentBackoff * time.Duration(1<<uint(attempt))
	delay += rand.N(f.opts.ContentJitter)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// saveDelay sleeps a few tens of milliseconds after a successful save.
func (f *Fetcher) saveDelay(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(10*time.Millisecond + rand.N(20*time.Millisecond)):
	}
}
