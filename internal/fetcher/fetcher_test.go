package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatimasalmancursor/tilegrab/internal/faillog"
	tilehttp "github.com/fatimasalmancursor/tilegrab/internal/http"
	"github.com/fatimasalmancursor/tilegrab/internal/store"
	"github.com/fatimasalmancursor/tilegrab/internal/tiles"
)

// tileBytes is a payload that does not sniff as HTML or JSON.
var tileBytes = []byte{0x1a, 0x0d, 0x78, 0x02, 0x0a, 0x05, 0x74, 0x69, 0x6c, 0x65, 0x73}

type testEnv struct {
	fetcher *Fetcher
	store   *store.Store
	logPath string
}

// newTestEnv wires a fetcher against serverURL with short backoffs.
func newTestEnv(t *testing.T, serverURL string, opts Options) *testEnv {
	t.Helper()

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "tiles"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	logPath := filepath.Join(dir, "failed_tiles.txt")
	log, err := faillog.Open(logPath)
	if err != nil {
		t.Fatalf("faillog.Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	client := tilehttp.NewClient(tilehttp.Options{
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
		RetryMaxBackoff: 5 * time.Millisecond,
	})

	opts.BaseURL = serverURL
	if opts.ContentBackoff == 0 {
		opts.ContentBackoff = time.Millisecond
	}
	if opts.ContentJitter == 0 {
		opts.ContentJitter = time.Millisecond
	}

	return &testEnv{
		fetcher: New(client, st, log, opts),
		store:   st,
		logPath: logPath,
	}
}

func (e *testEnv) failLogLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(e.logPath)
	if err != nil {
		t.Fatalf("read failure log: %v", err)
	}
	s := strings.TrimRight(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestFetchSavesTile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/5/10/20.pbf" {
			t.Errorf("unexpected request path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(tileBytes)
	}))
	defer server.Close()

	env := newTestEnv(t, server.URL, Options{})
	c := tiles.Coord{Z: 5, X: 10, Y: 20}

	res := env.fetcher.Fetch(context.Background(), c)
	if res.Status != StatusSaved {
		t.Fatalf("expected Saved, got %v (reason %q)", res.Status, res.Reason)
	}
	if res.Bytes != int64(len(tileBytes)) {
		t.Errorf("expected %d bytes, got %d", len(tileBytes), res.Bytes)
	}

	got, err := os.ReadFile(env.store.Path(c))
	if err != nil {
		t.Fatalf("read stored tile: %v", err)
	}
	if string(got) != string(tileBytes) {
		t.Error("stored bytes differ from response")
	}
	if lines := env.failLogLines(t); len(lines) != 0 {
		t.Errorf("expected empty failure log, got %v", lines)
	}
}

func TestFetchSkipsPresentWithoutNetwork(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(tileBytes)
	}))
	defer server.Close()

	env := newTestEnv(t, server.URL, Options{})
	c := tiles.Coord{Z: 5, X: 10, Y: 20}

	if _, err := env.store.Persist(c, strings.NewReader("already-here")); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	res := env.fetcher.Fetch(context.Background(), c)
	if res.Status != StatusSkipped {
		t.Fatalf("expected Skipped, got %v", res.Status)
	}
	if requests.Load() != 0 {
		t.Errorf("expected no network calls for a present tile, got %d", requests.Load())
	}

	got, _ := os.ReadFile(env.store.Path(c))
	if string(got) != "already-here" {
		t.Error("skip must not touch the stored bytes")
	}
}

func TestFetchEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(t, server.URL, Options{})
	c := tiles.Coord{Z: 2, X: 0, Y: 0}

	res := env.fetcher.Fetch(context.Background(), c)
	if res.Status != StatusEmpty {
		t.Fatalf("expected Empty, got %v (reason %q)", res.Status, res.Reason)
	}

	if _, err := os.Stat(env.store.Path(c)); !os.IsNotExist(err) {
		t.Error("empty outcome must leave no file")
	}
	if _, err := os.Stat(env.store.Path(c) + store.PartSuffix); !os.IsNotExist(err) {
		t.Error("empty outcome must leave no temp file")
	}
	if lines := env.failLogLines(t); len(lines) != 0 {
		t.Errorf("empty outcome must not be logged as a failure, got %v", lines)
	}
}

func TestFetchPoisonedRetryBound(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": {"code": 503, "message": "throttled"}}`))
	}))
	defer server.Close()

	env := newTestEnv(t, server.URL, Options{ContentRetries: 3})
	c := tiles.Coord{Z: 3, X: 1, Y: 1}

	res := env.fetcher.Fetch(context.Background(), c)
	if res.Status != StatusFailed {
		t.Fatalf("expected Failed, got %v", res.Status)
	}
	if !strings.HasPrefix(res.Reason, "html_or_json:") {
		t.Errorf("expected html_or_json reason, got %q", res.Reason)
	}
	if attempts.Load() != 4 { // 1 initial + 3 retries
		t.Errorf("expected exactly 4 attempts, got %d", attempts.Load())
	}

	lines := env.failLogLines(t)
	if len(lines) != 1 {
		t.Fatalf("expected exactly one failure log entry, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "3/1/1  html_or_json:") {
		t.Errorf("unexpected log line: %q", lines[0])
	}

	if _, err := os.Stat(env.store.Path(c)); !os.IsNotExist(err) {
		t.Error("poisoned outcome must leave no file")
	}
}

func TestFetchPoisonedThenClean(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Write([]byte("<!DOCTYPE html><html><body>Service busy</body></html>"))
			return
		}
		w.Write(tileBytes)
	}))
	defer server.Close()

	env := newTestEnv(t, server.URL, Options{ContentRetries: 3})

	res := env.fetcher.Fetch(context.Background(), tiles.Coord{Z: 4, X: 4, Y: 4})
	if res.Status != StatusSaved {
		t.Fatalf("expected Saved after one poisoned attempt, got %v (reason %q)", res.Status, res.Reason)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
	if lines := env.failLogLines(t); len(lines) != 0 {
		t.Errorf("recovered tile must not be logged, got %v", lines)
	}
}

func TestFetchStatusFailureNoContentRetry(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	env := newTestEnv(t, server.URL, Options{ContentRetries: 3})

	res := env.fetcher.Fetch(context.Background(), tiles.Coord{Z: 8, X: 0, Y: 0})
	if res.Status != StatusFailed {
		t.Fatalf("expected Failed, got %v", res.Status)
	}
	if res.Reason != "status:404" {
		t.Errorf("expected reason 'status:404', got %q", res.Reason)
	}
	// 404 is not retried at either layer.
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}

	lines := env.failLogLines(t)
	if len(lines) != 1 || lines[0] != "8/0/0  status:404" {
		t.Errorf("unexpected failure log: %v", lines)
	}
}

func TestFetchIdempotentRerun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tileBytes)
	}))
	defer server.Close()

	env := newTestEnv(t, server.URL, Options{})
	c := tiles.Coord{Z: 6, X: 33, Y: 44}

	first := env.fetcher.Fetch(context.Background(), c)
	if first.Status != StatusSaved {
		t.Fatalf("first run: expected Saved, got %v", first.Status)
	}
	before, _ := os.ReadFile(env.store.Path(c))

	second := env.fetcher.Fetch(context.Background(), c)
	if second.Status != StatusSkipped {
		t.Fatalf("second run: expected Skipped, got %v", second.Status)
	}
	after, _ := os.ReadFile(env.store.Path(c))
	if string(before) != string(after) {
		t.Error("stored bytes changed across an idempotent re-run")
	}
}

func TestLooksLikeHTMLOrJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"doctype", "<!DOCTYPE html><html>", true},
		{"doctype lowercase", "<!doctype html>", true},
		{"html tag", "<html lang=\"en\">", true},
		{"html uppercase", "<HTML>", true},
		{"json object", `{"error": "throttled"}`, true},
		{"leading whitespace", "  \r\n\t<html>", true},
		{"whitespace then json", "\n\n{\n  \"x\": 1\n}", true},
		{"json array", `[1, 2, 3]`, false},
		{"xml", "<?xml version=\"1.0\"?>", false},
		{"protobuf-ish binary", "\x1a\x0dsome binary", false},
		{"text", "plain text response", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeHTMLOrJSON([]byte(tt.body)); got != tt.want {
				t.Errorf("looksLikeHTMLOrJSON(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestFetchURL(t *testing.T) {
	env := newTestEnv(t, "https://tiles.example.com/tile/", Options{})
	got := env.fetcher.URL(tiles.Coord{Z: 7, X: 12, Y: 34})
	want := "https://tiles.example.com/tile/7/12/34.pbf"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}
