package store

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatimasalmancursor/tilegrab/internal/tiles"
)

// PartSuffix marks an in-progress write. A .part file is never left
// behind by a successful Persist.
const PartSuffix = ".part"

// Store maps tile coordinates to files under a root directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating the directory if needed.
// Failure here aborts the whole run before any work is dispatched.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: root directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the final location for a tile. Distinct coordinates map to
// distinct paths.
func (s *Store) Path(c tiles.Coord) string {
	return filepath.Join(s.root, fmt.Sprintf("%d", c.Z), fmt.Sprintf("%d", c.X), fmt.Sprintf("%d.pbf", c.Y))
}

// IsPresent reports whether a tile is already durably stored: the file
// exists and has non-zero length. It only stats the path, never opens it.
func (s *Store) IsPresent(c tiles.Coord) bool {
	info, err := os.Stat(s.Path(c))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Persist streams r into a temporary .part file next to the final path
// and atomically renames it into place. On any error the temporary file
// is removed and the final path is left untouched. Returns the number of
// bytes written.
func (s *Store) Persist(c tiles.Coord, r io.Reader) (int64, error) {
	final := s.Path(c)
	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return 0, fmt.Errorf("store: create tile directory: %w", err)
	}

	tmp := final + PartSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("store: create temp file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return n, fmt.Errorf("store: write tile: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return n, fmt.Errorf("store: close temp file: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return n, fmt.Errorf("store: publish tile: %w", err)
	}
	return n, nil
}

// Walk visits every regular file under the root, passing the path
// relative to the root. Used by sync and verify.
func (s *Store) Walk(fn func(rel string, info fs.FileInfo) error) error {
	return filepath.Walk(s.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info)
	})
}

// VerifyResult summarizes a tree audit.
type VerifyResult struct {
	Tiles      int      // valid non-empty .pbf files
	EmptyTiles []string // zero-length .pbf files (relative paths)
	Partials   []string // leftover .part files (relative paths)
}

// Clean reports whether the tree has no empty tiles and no leftover
// partial writes.
func (r VerifyResult) Clean() bool {
	return len(r.EmptyTiles) == 0 && len(r.Partials) == 0
}

// Verify audits the tree for zero-length tiles and orphaned .part files.
// It reads no tile contents, only directory entries and sizes.
func (s *Store) Verify() (VerifyResult, error) {
	var res VerifyResult
	err := s.Walk(func(rel string, info fs.FileInfo) error {
		switch {
		case strings.HasSuffix(rel, PartSuffix):
			res.Partials = append(res.Partials, rel)
		case strings.HasSuffix(rel, ".pbf") && info.Size() == 0:
			res.EmptyTiles = append(res.EmptyTiles, rel)
		case strings.HasSuffix(rel, ".pbf"):
			res.Tiles++
		}
		return nil
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("store: verify: %w", err)
	}
	return res, nil
}
