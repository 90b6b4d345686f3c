package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress lines.
	// Default: os.Stderr
	Output io.Writer

	// Every is how many completions pass between progress lines.
	// Default: 1000
	Every int
}

// Reporter accumulates tile outcomes and prints periodic progress.
type Reporter struct {
	opts Options

	saved   atomic.Int64
	skipped atomic.Int64
	empty   atomic.Int64
	failed  atomic.Int64

	start time.Time
}

// NewReporter creates a reporter and records the start time.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Every <= 0 {
		opts.Every = 1000
	}
	return &Reporter{opts: opts, start: time.Now()}
}

// TileSaved records a newly downloaded tile.
func (r *Reporter) TileSaved() { r.record(&r.saved) }

// TileSkipped records a tile that was already present.
func (r *Reporter) TileSkipped() { r.record(&r.skipped) }

// TileEmpty records a zero-length response body.
func (r *Reporter) TileEmpty() { r.record(&r.empty) }

// TileFailed records a tile that exhausted all retries.
func (r *Reporter) TileFailed() { r.record(&r.failed) }

func (r *Reporter) record(counter *atomic.Int64) {
	counter.Add(1)
	if total := r.Total(); total%int64(r.opts.Every) == 0 {
		r.printProgress(total)
	}
}

// Total returns the number of outcomes recorded so far.
func (r *Reporter) Total() int64 {
	return r.saved.Load() + r.skipped.Load() + r.empty.Load() + r.failed.Load()
}

func (r *Reporter) printProgress(total int64) {
	elapsed := time.Since(r.start).Seconds()
	if elapsed <= 0 {
		elapsed = 0.001
	}
	fmt.Fprintf(r.opts.Output, "[tilegrab] %s processed | saved=%s skipped=%s empty=%s failed=%s | %.1f tiles/s\n",
		formatCount(total),
		formatCount(r.saved.Load()),
		formatCount(r.skipped.Load()),
		formatCount(r.empty.Load()),
		formatCount(r.failed.Load()),
		float64(total)/elapsed,
	)
}

// Done prints the final summary.
func (r *Reporter) Done() {
	total := r.Total()
	elapsed := time.Since(r.start)
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 0.001
	}
	fmt.Fprintf(r.opts.Output, "[tilegrab] Done: total=%s saved=%s skipped=%s empty=%s failed=%s in %s (%.1f tiles/s)\n",
		formatCount(total),
		formatCount(r.saved.Load()),
		formatCount(r.skipped.Load()),
		formatCount(r.empty.Load()),
		formatCount(r.failed.Load()),
		formatDuration(elapsed),
		float64(total)/secs,
	)
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, d := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
