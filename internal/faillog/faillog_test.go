package faillog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatimasalmancursor/tilegrab/internal/tiles"
)

func TestAppendFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_tiles.txt")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	if err := log.Append(tiles.Coord{Z: 3, X: 1, Y: 1}, "html_or_json:text/html"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(tiles.Coord{Z: 10, X: 523, Y: 761}, "status:404"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "3/1/1  html_or_json:text/html" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "10/523/761  status:404" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestAppendAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_tiles.txt")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Append(tiles.Coord{Z: 1, X: 1, Y: 1}, "status:500"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	log.Close()

	log, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := log.Append(tiles.Coord{Z: 2, X: 2, Y: 2}, "status:502"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected records from both sessions, got %d lines", len(lines))
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_tiles.txt")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := tiles.Coord{Z: 9, X: i, Y: i}
			if err := log.Append(c, fmt.Sprintf("request_error:worker-%d", i)); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != n {
		t.Fatalf("expected %d lines, got %d", n, len(lines))
	}
	for _, line := range lines {
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], "9/") || !strings.HasPrefix(parts[1], "request_error:worker-") {
			t.Errorf("malformed record: %q", line)
		}
	}
}
