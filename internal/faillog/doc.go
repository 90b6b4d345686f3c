// Package faillog records tiles that exhausted all retries.
//
// Each failure is one human-readable line of the form
//
//	<zoom>/<x>/<y>  <reason>
//
// appended to a text file. Appends from concurrent workers are
// serialized so records never interleave, and each write is synced
// before returning. The log is write-only from the pipeline's
// perspective; nothing in the core reads it back.
package faillog
