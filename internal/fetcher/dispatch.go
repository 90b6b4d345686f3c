package fetcher

import (
	"context"
	"sync"

	"github.com/fatimasalmancursor/tilegrab/internal/progress"
	"github.com/fatimasalmancursor/tilegrab/internal/tiles"
)

// DefaultWorkers is the default size of the fetch worker pool.
const DefaultWorkers = 12

// Counters aggregates outcomes across one run. Total always equals the
// sum of the other four.
type Counters struct {
	Total   int64
	Saved   int64
	Skipped int64
	Empty   int64
	Failed  int64
}

// RunOptions configures a dispatch run.
type RunOptions struct {
	// Workers is the fixed worker pool size. Default: 12.
	Workers int

	// Reporter receives per-outcome notifications. Optional.
	Reporter *progress.Reporter
}

// Run fetches every coordinate in the space using a fixed pool of
// workers. Coordinates are pulled from the space lazily, so arbitrarily
// large spaces never materialize in memory. Outcomes are accumulated in
// completion order at a single point; no ordering across coordinates is
// guaranteed. One tile's failure never stops the others: Run returns a
// non-nil error only when the context is cancelled.
func Run(ctx context.Context, space tiles.Space, f *Fetcher, opts RunOptions) (Counters, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	jobs := make(chan tiles.Coord)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				results <- f.Fetch(ctx, c)
			}
		}()
	}

	// Feed coordinates to the pool.
	go func() {
		defer close(jobs)
		it := space.Iter()
		for c, ok := it.Next(); ok; c, ok = it.Next() {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var counters Counters
	for res := range results {
		counters.Total++
		switch res.Status {
		case StatusSaved:
			counters.Saved++
			if opts.Reporter != nil {
				opts.Reporter.TileSaved()
			}
		case StatusSkipped:
			counters.Skipped++
			if opts.Reporter != nil {
				opts.Reporter.TileSkipped()
			}
		case StatusEmpty:
			counters.Empty++
			if opts.Reporter != nil {
				opts.Reporter.TileEmpty()
			}
		case StatusFailed:
			counters.Failed++
			if opts.Reporter != nil {
				opts.Reporter.TileFailed()
			}
		}
	}

	if opts.Reporter != nil {
		opts.Reporter.Done()
	}
	return counters, ctx.Err()
}
