package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatimasalmancursor/tilegrab/internal/store"
)

// runVerify audits a tile tree for zero-length tiles and orphaned .part
// files. Reads no tile contents, only directory entries and sizes.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)

	dir := fs.String("dir", "tiles", "Tile tree to audit")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: tilegrab verify [options]

Audit a tile tree. Empty tiles mean a write was interrupted outside the
pipeline; .part files mean a crash mid-stream. Either way the fix is the
same: delete the flagged files and re-run fetch over the range.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	st, err := store.New(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	res, err := st.Verify()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	fmt.Printf("Tree: %s\n", st.Root())
	fmt.Printf("Valid tiles: %d\n", res.Tiles)

	if res.Clean() {
		fmt.Println("Status: CLEAN")
		return ExitSuccess
	}

	fmt.Println("Status: DAMAGED")
	if len(res.EmptyTiles) > 0 {
		fmt.Printf("Empty tiles: %d\n", len(res.EmptyTiles))
		for _, p := range res.EmptyTiles {
			fmt.Printf("  - %s\n", p)
		}
	}
	if len(res.Partials) > 0 {
		fmt.Printf("Partial writes: %d\n", len(res.Partials))
		for _, p := range res.Partials {
			fmt.Printf("  - %s\n", p)
		}
	}
	return ExitValidationFailed
}
