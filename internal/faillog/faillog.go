package faillog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatimasalmancursor/tilegrab/internal/tiles"
)

// Log appends failure records to a text file. Safe for concurrent use.
type Log struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens (or creates) the failure log at path for appending, creating
// parent directories as needed.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("faillog: create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("faillog: open: %w", err)
	}
	return &Log{f: f}, nil
}

// Append records one failed coordinate with its reason. The record is
// durable when Append returns.
func (l *Log) Append(c tiles.Coord, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := fmt.Fprintf(l.f, "%s  %s\n", c, reason); err != nil {
		return fmt.Errorf("faillog: append: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("faillog: sync: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
