// Package progress provides progress reporting for tile downloads.
//
// The reporter accumulates per-outcome counters and prints a
// human-readable line every N completed tiles, plus a final summary with
// throughput. It is purely observational: recording an outcome is a few
// atomic increments and never blocks the pipeline.
//
// # Output Format
//
//	[tilegrab] 12,000 processed | saved=11,204 skipped=702 empty=80 failed=14 | 231.4 tiles/s
//	[tilegrab] Done: total=48,400 saved=47,001 skipped=1,302 empty=83 failed=14 in 3m 29s (231.6 tiles/s)
package progress
