package store

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"gocloud.dev/blob"
	"golang.org/x/sync/semaphore"
)

// SyncOptions configures SyncToBucket.
type SyncOptions struct {
	// Workers bounds the number of concurrent uploads. Default: 8.
	Workers int

	// Prefix is prepended to every object key.
	Prefix string

	// ContentType is set on every uploaded object.
	// Default: application/x-protobuf.
	ContentType string
}

// SyncResult summarizes an upload pass.
type SyncResult struct {
	Uploaded int
	Skipped  int // .part leftovers and empty files, never uploaded
}

// SyncToBucket uploads every valid tile in the tree to an object storage
// bucket, keyed by the tile's relative path. Partial and zero-length
// files are skipped. Uploads run concurrently, bounded by a weighted
// semaphore.
func (s *Store) SyncToBucket(ctx context.Context, bucket *blob.Bucket, opts SyncOptions) (SyncResult, error) {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/x-protobuf"
	}

	var (
		sem     = semaphore.NewWeighted(int64(opts.Workers))
		wg      sync.WaitGroup
		mu      sync.Mutex
		res     SyncResult
		walkErr error
	)

	err := s.Walk(func(rel string, info fs.FileInfo) error {
		if strings.HasSuffix(rel, PartSuffix) || info.Size() == 0 {
			mu.Lock()
			res.Skipped++
			mu.Unlock()
			return nil
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			err := uploadFile(ctx, bucket, s.root, rel, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if walkErr == nil {
					walkErr = err
				}
				return
			}
			res.Uploaded++
		}()
		return nil
	})

	wg.Wait()

	if err != nil {
		return res, fmt.Errorf("store: sync walk: %w", err)
	}
	if walkErr != nil {
		return res, fmt.Errorf("store: sync upload: %w", walkErr)
	}
	return res, nil
}

func uploadFile(ctx context.Context, bucket *blob.Bucket, root, rel string, opts SyncOptions) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer f.Close()

	key := rel
	if opts.Prefix != "" {
		key = path.Join(opts.Prefix, rel)
	}

	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: opts.ContentType})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
